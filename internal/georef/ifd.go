package georef

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Tags read from the first image directory.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGeoDoubleParams = 34736
	tagGeoAsciiParams  = 34737
)

// TIFF field types, with their element sizes in bytes.
const (
	dtByte   = 1
	dtASCII  = 2
	dtShort  = 3
	dtLong   = 4
	dtFloat  = 11
	dtDouble = 12
	dtLong8  = 16
)

var fieldSize = map[uint16]int{
	dtByte: 1, dtASCII: 1, 6: 1, 7: 1,
	dtShort: 2, 8: 2,
	dtLong: 4, 9: 4, dtFloat: 4,
	5: 8, 10: 8, dtDouble: 8, dtLong8: 8, 17: 8, 18: 8,
}

// maxFieldBytes bounds the size of one out-of-line tag value.
const maxFieldBytes = 16 << 20

// ifd holds the georeferencing tags of a TIFF image file directory.
type ifd struct {
	Width           uint32
	Height          uint32
	ModelTiepoint   []float64
	ModelPixelScale []float64
	GeoKeys         []uint16
	GeoDoubleParams []float64
	GeoAsciiParams  string
}

// field is one directory entry with its value bytes loaded.
type field struct {
	tag   uint16
	typ   uint16
	count uint64
	value []byte
}

// tiffFile reads classic TIFF and BigTIFF, which differ only in the width
// of offsets and counts.
type tiffFile struct {
	r   io.ReadSeeker
	bo  binary.ByteOrder
	big bool
}

// word decodes an offset or count: 4 bytes in classic TIFF, 8 in BigTIFF.
func (f *tiffFile) word(b []byte) uint64 {
	if f.big {
		return f.bo.Uint64(b)
	}
	return uint64(f.bo.Uint32(b))
}

func (f *tiffFile) wordSize() int {
	if f.big {
		return 8
	}
	return 4
}

func (f *tiffFile) readAt(off uint64, n int) ([]byte, error) {
	if off > math.MaxInt64 {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	if _, err := f.r.Seek(int64(off), io.SeekStart); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(f.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// readFirstIFD parses the header and the first image directory of a TIFF
// or BigTIFF file. Overviews and pixel data are never touched.
func readFirstIFD(r io.ReadSeeker) (ifd, error) {
	head := make([]byte, 16)
	n, err := io.ReadFull(r, head)
	if n < 8 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return ifd{}, fmt.Errorf("reading TIFF header: %w", err)
	}

	f := &tiffFile{r: r}
	switch string(head[:2]) {
	case "II":
		f.bo = binary.LittleEndian
	case "MM":
		f.bo = binary.BigEndian
	default:
		return ifd{}, fmt.Errorf("invalid TIFF byte order: %x", head[:2])
	}

	var first uint64
	switch magic := f.bo.Uint16(head[2:4]); magic {
	case 42:
		first = uint64(f.bo.Uint32(head[4:8]))
	case 43:
		// Bytes 4-7 hold the offset size (8) and a zero pad.
		if n < 16 {
			return ifd{}, errors.New("truncated BigTIFF header")
		}
		f.big = true
		first = f.bo.Uint64(head[8:16])
	default:
		return ifd{}, fmt.Errorf("invalid TIFF magic: %d", magic)
	}
	if first == 0 {
		return ifd{}, errors.New("TIFF has no image directory")
	}

	d, err := f.directory(first)
	if err != nil {
		return ifd{}, fmt.Errorf("parsing IFD at offset %d: %w", first, err)
	}
	return d, nil
}

func (f *tiffFile) directory(off uint64) (ifd, error) {
	countSize, entrySize := 2, 12
	if f.big {
		countSize, entrySize = 8, 20
	}
	b, err := f.readAt(off, countSize)
	if err != nil {
		return ifd{}, err
	}
	var count uint64
	if f.big {
		count = f.bo.Uint64(b)
	} else {
		count = uint64(f.bo.Uint16(b))
	}
	if count > math.MaxUint16 {
		return ifd{}, fmt.Errorf("implausible entry count %d", count)
	}

	entries, err := f.readAt(off+uint64(countSize), int(count)*entrySize)
	if err != nil {
		return ifd{}, err
	}

	var d ifd
	for i := range int(count) {
		e := entries[i*entrySize : (i+1)*entrySize]
		fl := field{tag: f.bo.Uint16(e[0:2]), typ: f.bo.Uint16(e[2:4])}
		switch fl.tag {
		case tagImageWidth, tagImageLength, tagModelPixelScale, tagModelTiepoint,
			tagGeoKeyDirectory, tagGeoDoubleParams, tagGeoAsciiParams:
		default:
			// Other entries may point anywhere and are left unread.
			continue
		}
		fl.count = f.word(e[4 : 4+f.wordSize()])
		if err := f.load(&fl, e[4+f.wordSize():]); err != nil {
			return ifd{}, fmt.Errorf("tag %d: %w", fl.tag, err)
		}
		d.set(fl, f.bo)
	}
	return d, nil
}

// load fills fl.value from the inline bytes of the entry or from the
// offset they hold.
func (f *tiffFile) load(fl *field, inline []byte) error {
	size, ok := fieldSize[fl.typ]
	if !ok {
		size = 1
	}
	if fl.count > maxFieldBytes/uint64(size) {
		return fmt.Errorf("value of %d elements is too large", fl.count)
	}
	n := int(fl.count) * size
	if n <= len(inline) {
		fl.value = append([]byte(nil), inline[:n]...)
		return nil
	}
	b, err := f.readAt(f.word(inline), n)
	if err != nil {
		return err
	}
	fl.value = b
	return nil
}

func (d *ifd) set(fl field, bo binary.ByteOrder) {
	switch fl.tag {
	case tagImageWidth:
		d.Width = fl.uint(bo)
	case tagImageLength:
		d.Height = fl.uint(bo)
	case tagModelTiepoint:
		d.ModelTiepoint = fl.floats(bo)
	case tagModelPixelScale:
		d.ModelPixelScale = fl.floats(bo)
	case tagGeoKeyDirectory:
		d.GeoKeys = fl.shorts(bo)
	case tagGeoDoubleParams:
		d.GeoDoubleParams = fl.floats(bo)
	case tagGeoAsciiParams:
		d.GeoAsciiParams = string(fl.value)
	}
}

func (fl field) uint(bo binary.ByteOrder) uint32 {
	switch {
	case len(fl.value) == 0:
		return 0
	case fl.typ == dtShort && len(fl.value) >= 2:
		return uint32(bo.Uint16(fl.value))
	case fl.typ == dtLong && len(fl.value) >= 4:
		return bo.Uint32(fl.value)
	case fl.typ == dtLong8 && len(fl.value) >= 8:
		return uint32(bo.Uint64(fl.value))
	}
	return uint32(fl.value[0])
}

func (fl field) shorts(bo binary.ByteOrder) []uint16 {
	if fl.typ != dtShort {
		return nil
	}
	out := make([]uint16, len(fl.value)/2)
	for i := range out {
		out[i] = bo.Uint16(fl.value[2*i:])
	}
	return out
}

// floats decodes DOUBLE or FLOAT values; other types yield zeros.
func (fl field) floats(bo binary.ByteOrder) []float64 {
	switch fl.typ {
	case dtDouble:
		out := make([]float64, len(fl.value)/8)
		for i := range out {
			out[i] = math.Float64frombits(bo.Uint64(fl.value[8*i:]))
		}
		return out
	case dtFloat:
		out := make([]float64, len(fl.value)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(bo.Uint32(fl.value[4*i:])))
		}
		return out
	}
	return nil
}
