package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/drawing"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine/rig"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/mastercactapus/cncdrill/tour"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flipX     bool
	optimize  bool
	homeFirst bool
	outPath   string
	keep      bool
	band      float64
	export    = drawing.DefaultExport
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices that can be opened",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp := newBridge(settings)
		if sp != nil {
			defer sp.Close()
		}
		ids, err := rig.Enumerate(cmd.Context(), rigOptions(settings, sp))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Find the origin using the X and Y min switches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStation(settings)
		defer st.Close()

		out, err := st.run(cmd.Context(), sequence.Home(settings.HomingOptions()))
		if err != nil {
			return err
		}
		if serr := st.save(settings, configPath); serr != nil {
			log.WithError(serr).Error("save settings")
		}
		return outcomeErr(out)
	},
}

var drillCmd = &cobra.Command{
	Use:   "drill <file>",
	Short: "Drill every hole of a drawing",
	Long: `Loads a drawing (.vdx, or a G-code drill program) and drills every hole in
order, starting from the current logical zero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDrawing(args[0])
		if err != nil {
			return err
		}

		st := openStation(settings)
		defer st.Close()
		defer func() {
			if serr := st.save(settings, configPath); serr != nil {
				log.WithError(serr).Error("save settings")
			}
		}()

		if homeFirst {
			out, err := st.run(cmd.Context(), sequence.Home(settings.HomingOptions()))
			if err != nil {
				return err
			}
			if err := outcomeErr(out); err != nil {
				return errors.Wrap(err, "home")
			}
		}

		points := d.Points
		if optimize {
			res := tour.Optimize(st.ctl.CurrentLocation(), job.New(points).Targets(), tour.Options{Band: band})
			points = tourPoints(res.Best)
			log.WithFields(logrus.Fields{
				"tour":     res.Best.Name,
				"length":   fmt.Sprintf("%.3f", res.Best.Length),
				"original": fmt.Sprintf("%.3f", res.Original.Length),
			}).Info("optimized")
		}
		if err := st.engine.Load(points); err != nil {
			return err
		}

		out, err := st.run(cmd.Context(), sequence.DrillAll(settings.DrillOptions()))
		if err != nil {
			return err
		}
		return outcomeErr(out)
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file>",
	Short: "Compare tours of a drawing and optionally write the best as G-code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDrawing(args[0])
		if err != nil {
			return err
		}

		res := tour.Optimize(coord.Point{}, job.New(d.Points).Targets(), tour.Options{Band: band})

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TOUR\tLENGTH\t")
		for _, c := range res.Candidates {
			mark := ""
			if c.Name == res.Best.Name {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%.3f\t%s\n", c.Name, c.Length, mark)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if keep {
			if err := keepProgram(args[0], tourPoints(res.Best)); err != nil {
				return err
			}
		}
		if outPath == "" {
			return nil
		}
		return writeProgram(outPath, tourPoints(res.Best))
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Convert a drawing to a G-code drill program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDrawing(args[0])
		if err != nil {
			return err
		}
		if keep {
			if err := keepProgram(args[0], d.Points); err != nil {
				return err
			}
			if outPath == "" {
				return nil
			}
		}
		if outPath == "" || outPath == "-" {
			return drawing.WriteGCode(cmd.OutOrStdout(), d.Points, export)
		}
		return writeProgram(outPath, d.Points)
	},
}

func init() {
	for _, c := range []*cobra.Command{drillCmd, optimizeCmd, exportCmd} {
		c.Flags().BoolVar(&flipX, "flip-x", false, "Mirror VDX drawings left to right.")
	}
	for _, c := range []*cobra.Command{drillCmd, optimizeCmd} {
		c.Flags().Float64Var(&band, "band", tour.DefaultBand, "Scan-line grouping tolerance in inches.")
	}
	drillCmd.Flags().BoolVar(&optimize, "optimize", true, "Reorder holes to shorten travel.")
	drillCmd.Flags().BoolVar(&homeFirst, "home", false, "Home the rig before drilling.")

	for _, c := range []*cobra.Command{optimizeCmd, exportCmd} {
		c.Flags().StringVarP(&outPath, "out", "o", "", "Write a G-code program to this file.")
		c.Flags().BoolVar(&keep, "save", false, "Keep the G-code program in the data directory.")
		c.Flags().Float64Var(&export.Depth, "depth", drawing.DefaultExport.Depth, "Hole bottom Z in inches.")
		c.Flags().Float64Var(&export.Retract, "retract", drawing.DefaultExport.Retract, "Retract Z in inches.")
		c.Flags().Float64Var(&export.Feed, "feed", drawing.DefaultExport.Feed, "Plunge feed rate in inches per minute.")
	}
}

func tourPoints(t tour.Tour) []coord.Point {
	res := make([]coord.Point, len(t.Order))
	for i, tg := range t.Order {
		res[i] = tg.Location
	}
	return res
}

// readDrawing picks the loader from the file name.
func readDrawing(name string, r io.Reader) (*drawing.Drawing, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vdx", ".xml":
		return drawing.LoadVDX(r, flipX)
	}
	return drawing.LoadGCode(r)
}

func loadDrawing(name string) (*drawing.Drawing, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := readDrawing(name, f)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	log.WithFields(logrus.Fields{
		"file":         name,
		"holes":        len(d.Points),
		"shapes":       d.Stats.Shapes,
		"non_ellipses": d.Stats.NonEllipses,
		"zeros":        d.Stats.Zeros,
		"duplicates":   d.Stats.Duplicates,
	}).Info("loaded drawing")
	return d, nil
}

func writeProgram(name string, points []coord.Point) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	return finishProgram(f, points)
}

// keepProgram writes points into the data store as <drawing>.drill.nc.
func keepProgram(src string, points []coord.Point) error {
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".drill.nc"
	f, err := newDataStore(settings.DataDir).create(name)
	if err != nil {
		return err
	}
	if err := finishProgram(f, points); err != nil {
		return errors.Wrap(err, name)
	}
	log.WithFields(logrus.Fields{"name": name, "dir": settings.DataDir}).Info("saved program")
	return nil
}

func finishProgram(f *os.File, points []coord.Point) error {
	err := drawing.WriteGCode(f, points, export)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
