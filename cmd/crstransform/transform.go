package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pspoerri/crstransform/internal/crs"
	"github.com/pspoerri/crstransform/internal/transform"
)

func newTransformCmd(a *app) *cobra.Command {
	var (
		from, to      string
		fromXY, toXY  bool
		geojsonPath   string
		describeChain bool
	)
	cmd := &cobra.Command{
		Use:   "transform [flags] [x,y[,z] ...]",
		Short: "Transform coordinates from one CRS to another.",
		Long: `transform converts coordinate tuples from the --from CRS to the --to CRS.

Tuples are read from the arguments, or from standard input when there are
none, one tuple per line with components separated by commas or spaces.
Lines starting with # are skipped. Each tuple is written on its own line in
the axis order of the target CRS.

With --geojson, a FeatureCollection is read from the given file ("-" for
standard input) and written back with every vertex transformed. GeoJSON is
always easting first, so --from-xy and --to-xy are implied.`,
		Example: `  crstransform transform --from EPSG:4326 --to EPSG:25832 47.85,9.43
  crstransform transform --from EPSG:31467 --to EPSG:4258 --to-xy < points.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			if geojsonPath != "" {
				fromXY, toXY = true, true
			}
			source, err := reg.LookupContext(ctx, from, fromXY)
			if err != nil {
				return err
			}
			target, err := reg.LookupContext(ctx, to, toXY)
			if err != nil {
				return err
			}
			t := transform.New(target, a.transformOptions())
			out := cmd.OutOrStdout()

			if describeChain {
				d, err := t.Describe(source)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.ErrOrStderr(), d)
			}

			if geojsonPath != "" {
				return transformGeoJSON(cmd, t, source, geojsonPath)
			}

			var points [][]float64
			if len(args) > 0 {
				for _, arg := range args {
					p, err := parseTuple(arg)
					if err != nil {
						return err
					}
					points = append(points, p)
				}
			} else {
				points, err = readTuples(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			res, err := t.TransformContext(ctx, source, points)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(out)
			for _, p := range res {
				w.WriteString(formatTuple(p))
				w.WriteByte('\n')
			}
			a.log.WithFields(logrus.Fields{
				"source": source.Identifier(),
				"target": target.Identifier(),
				"points": len(res),
			}).Debug("transformed points")
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "source CRS identifier")
	f.StringVar(&to, "to", "", "target CRS identifier")
	f.BoolVar(&fromXY, "from-xy", false, "read source tuples easting first")
	f.BoolVar(&toXY, "to-xy", false, "write target tuples easting first")
	f.StringVar(&geojsonPath, "geojson", "", "transform a GeoJSON FeatureCollection file (\"-\" for stdin)")
	f.BoolVar(&describeChain, "describe", false, "print the transformation steps to stderr")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func splitTuple(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// parseTuple parses "x,y" or "x,y,z". NaN is accepted in any position.
func parseTuple(s string) ([]float64, error) {
	fields := splitTuple(s)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("tuple %q: expected 2 or 3 components, got %d", s, len(fields))
	}
	p := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("tuple %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}

func readTuples(r io.Reader) ([][]float64, error) {
	var points [][]float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		p, err := parseTuple(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
	return points, sc.Err()
}

func formatTuple(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// transformGeoJSON rewrites every feature geometry of a FeatureCollection.
func transformGeoJSON(cmd *cobra.Command, t *transform.Transformer, source *crs.CRS, path string) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, f := range fc.Features {
		g, err := t.Geometry(source, f.Geometry)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		f.Geometry = g
		f.BBox = nil
	}
	fc.BBox = nil
	out, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
