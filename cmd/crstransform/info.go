package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pspoerri/crstransform/internal/coord"
	"github.com/pspoerri/crstransform/internal/crs"
	"github.com/pspoerri/crstransform/internal/georef"
	"github.com/pspoerri/crstransform/internal/wkt"
)

func newInfoCmd(a *app) *cobra.Command {
	var xy bool
	cmd := &cobra.Command{
		Use:   "info ID",
		Short: "Describe the CRS registered under an identifier.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			c, err := reg.LookupContext(cmd.Context(), args[0], xy)
			if err != nil {
				return err
			}
			printCRS(cmd.OutOrStdout(), c, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&xy, "xy", false, "force easting-first axis order")
	return cmd
}

func newParseCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a WKT definition and describe the resulting CRS.",
		Long: `parse reads a WKT 1 definition from FILE ("-" for standard input) and
prints the CRS it defines. With --strict, AXIS and AUTHORITY blocks are
required and unknown projection parameters are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			c, err := wkt.Parser{Strict: strict}.Parse(string(data))
			if err != nil {
				return err
			}
			a.log.WithField("crs", c.Identifier()).Debug("parsed definition")
			printCRS(cmd.OutOrStdout(), c, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject incomplete definitions")
	return cmd
}

func newCodesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List the identifiers the configured stores can resolve offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range reg.AvailableCodes() {
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}
}

func newGeorefCmd(a *app) *cobra.Command {
	var to string
	var toXY bool
	cmd := &cobra.Command{
		Use:   "georef FILE",
		Short: "Show the georeferencing of a GeoTIFF and its reprojected bounds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := georef.Open(args[0])
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			src, err := g.CRS(ctx, reg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:       %s\n", g.Path)
			fmt.Fprintf(out, "Size:       %d x %d\n", g.Width, g.Height)
			fmt.Fprintf(out, "Pixel size: %g x %g (from %s)\n", g.PixelSizeX, g.PixelSizeY, g.TransformSource)
			fmt.Fprintf(out, "CRS:        %s (from %s)\n", src.Identifier(), g.CRSSource)
			if g.Citation != "" {
				fmt.Fprintf(out, "Citation:   %s\n", g.Citation)
			}
			minX, minY, maxX, maxY := g.BoundsInCRS()
			fmt.Fprintf(out, "Bounds:     %.6f %.6f %.6f %.6f\n", minX, minY, maxX, maxY)

			if to == "" {
				return nil
			}
			target, err := reg.LookupContext(ctx, to, toXY)
			if err != nil {
				return err
			}
			b, err := g.Bounds(ctx, reg, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Bounds in %s: %.9f %.9f %.9f %.9f\n",
				target.Identifier(), b.Min[0], b.Min[1], b.Max[0], b.Max[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "reproject the bounds into this CRS")
	cmd.Flags().BoolVar(&toXY, "to-xy", false, "report reprojected bounds easting first")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crstransform %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

// printCRS writes a human-readable summary of c, recursing into the parts
// of compound CRSs.
func printCRS(w io.Writer, c *crs.CRS, indent string) {
	fmt.Fprintf(w, "%sIdentifier: %s\n", indent, c.Identifier())
	fmt.Fprintf(w, "%sName:       %s\n", indent, c.Name())
	fmt.Fprintf(w, "%sKind:       %s\n", indent, c.Kind())

	if c.Kind() == crs.Compound {
		fmt.Fprintf(w, "%sDefault height: %g\n", indent, c.DefaultHeight())
		fmt.Fprintf(w, "%sHorizontal:\n", indent)
		printCRS(w, c.Horizontal(), indent+"  ")
		fmt.Fprintf(w, "%sVertical:\n", indent)
		printCRS(w, c.VerticalCRS(), indent+"  ")
		return
	}

	fmt.Fprintf(w, "%sAxes:\n", indent)
	for i, ax := range c.Axes() {
		fmt.Fprintf(w, "%s  %d: %s\n", indent, i, ax)
	}
	if d := c.Datum(); d != nil {
		fmt.Fprintf(w, "%sDatum:      %s", indent, d.Name)
		if d.Code != "" {
			fmt.Fprintf(w, " (%s)", d.Code)
		}
		fmt.Fprintln(w)
		e := d.Ellipsoid
		fmt.Fprintf(w, "%s  Ellipsoid:      %s a=%.3f 1/f=%.9f\n", indent, e.Name, e.SemiMajorAxis, e.InverseFlattening)
		fmt.Fprintf(w, "%s  Prime meridian: %s %.9f deg\n", indent, d.PrimeMeridian.Name, d.PrimeMeridian.Longitude*coord.RadToDeg)
		if !d.ToWGS84.IsIdentity() {
			p := d.ToWGS84.TOWGS84()
			parts := make([]string, len(p))
			for i, v := range p {
				parts[i] = fmt.Sprintf("%g", v)
			}
			fmt.Fprintf(w, "%s  TOWGS84:        %s\n", indent, strings.Join(parts, ", "))
		}
	}
	if base := c.Base(); base != nil {
		fmt.Fprintf(w, "%sBase:       %s\n", indent, base.Identifier())
	}
	if p := c.Projection(); p != nil {
		prm := p.Params()
		fmt.Fprintf(w, "%sProjection: %s\n", indent, p.Kind())
		fmt.Fprintf(w, "%s  central_meridian:   %.9f\n", indent, prm.CentralMeridian*coord.RadToDeg)
		fmt.Fprintf(w, "%s  latitude_of_origin: %.9f\n", indent, prm.LatitudeOfOrigin*coord.RadToDeg)
		if p.Kind() == coord.LambertConformalConic2SP {
			fmt.Fprintf(w, "%s  standard_parallel_1: %.9f\n", indent, prm.StandardParallel1*coord.RadToDeg)
			fmt.Fprintf(w, "%s  standard_parallel_2: %.9f\n", indent, prm.StandardParallel2*coord.RadToDeg)
		}
		fmt.Fprintf(w, "%s  scale_factor:       %g\n", indent, prm.ScaleFactor)
		fmt.Fprintf(w, "%s  false_easting:      %g\n", indent, prm.FalseEasting)
		fmt.Fprintf(w, "%s  false_northing:     %g\n", indent, prm.FalseNorthing)
	}
}
