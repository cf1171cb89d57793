package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/contour"
)

// contoursCmd represents the contours command
var contoursCmd = &cobra.Command{
	Use:   "contours",
	Short: "Export contour lines of an area as GeoJSON",
	Long: `Trace contour lines over the tiles covering a bounding box and write
them as a GeoJSON feature collection, one MultiLineString feature per level.

Examples:
  terrainer contours --south 46 --west 9 --north 47 --east 10 --interval 100
  terrainer contours --south 46 --west 9 --north 47 --east 10 --levels 500,1000,1500 --out alps.geojson`,
	Run: func(cmd *cobra.Command, args []string) {
		south, west, north, east := readBounds(cmd)
		levelsCSV, _ := cmd.Flags().GetString("levels")
		interval, _ := cmd.Flags().GetFloat64("interval")
		out, _ := cmd.Flags().GetString("out")

		// Load configuration
		cfg := LoadConfig(cmd)

		// Create engine
		engine, err := cfg.CreateEngine()
		if err != nil {
			log.Fatalf("Failed to create engine: %v", err)
		}
		defer engine.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := engine.WaitForArea(ctx, south, west, north, east); err != nil {
			log.Fatalf("Tiles did not settle: %v", err)
		}
		g, err := engine.Snapshot(south, west, north, east)
		if err != nil {
			log.Fatal(err)
		}

		// Resolve contour levels
		var levels []float64
		switch {
		case levelsCSV != "":
			for _, p := range strings.Split(levelsCSV, ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					log.Fatalf("Invalid level %q", p)
				}
				levels = append(levels, v)
			}
		case interval > 0:
			lo, hi, ok := g.MinMax()
			if !ok {
				log.Fatal("Area has no elevation data")
			}
			for v := math.Ceil(float64(lo)/interval) * interval; v <= float64(hi); v += interval {
				levels = append(levels, v)
			}
		default:
			log.Fatal("Either --levels or --interval is required")
		}

		isolines, err := contour.Lines(ctx, g, levels)
		if err != nil {
			log.Fatalf("Failed to trace contours: %v", err)
		}

		fc := geojson.NewFeatureCollection()
		for _, iso := range isolines {
			lines := contour.Join(iso.Segments)
			if len(lines) == 0 {
				continue
			}
			f := geojson.NewFeature(orb.MultiLineString(lines))
			f.Properties["level"] = iso.Level
			fc.Append(f)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			log.Fatal(err)
		}

		// Output results
		if out == "-" {
			os.Stdout.Write(data)
			fmt.Println()
			return
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Wrote %d contour features to %s\n", len(fc.Features), out)
	},
}

// readBounds returns the shared bounding box flags.
func readBounds(cmd *cobra.Command) (south, west, north, east float64) {
	south, _ = cmd.Flags().GetFloat64("south")
	west, _ = cmd.Flags().GetFloat64("west")
	north, _ = cmd.Flags().GetFloat64("north")
	east, _ = cmd.Flags().GetFloat64("east")
	if south >= north || west >= east {
		log.Fatal("Bounding box is empty")
	}
	return south, west, north, east
}

// addBoundsFlags registers the shared bounding box flags.
func addBoundsFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("south", 0, "South edge of the box (required)")
	cmd.Flags().Float64("west", 0, "West edge of the box (required)")
	cmd.Flags().Float64("north", 0, "North edge of the box (required)")
	cmd.Flags().Float64("east", 0, "East edge of the box (required)")
	cmd.MarkFlagRequired("south")
	cmd.MarkFlagRequired("west")
	cmd.MarkFlagRequired("north")
	cmd.MarkFlagRequired("east")
}

func init() {
	rootCmd.AddCommand(contoursCmd)
	addBoundsFlags(contoursCmd)

	contoursCmd.Flags().String("levels", "", "Comma-separated contour levels in meters")
	contoursCmd.Flags().Float64("interval", 0, "Contour interval in meters, expanded over the elevation range")
	contoursCmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
}
