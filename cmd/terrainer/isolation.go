package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/saddle"
)

// isolationCmd represents the isolation command
var isolationCmd = &cobra.Command{
	Use:   "isolation",
	Short: "Find the nearest higher ground around a summit",
	Long: `Find the nearest strictly higher raster cell around a coordinate and
the great-circle distance to it. A summit with no higher cell within the
radius is the highest point of the search area.

Examples:
  terrainer isolation --lat 45.9325 --lon 7.8664
  terrainer isolation --lat 45.9325 --lon 7.8664 --radius 2`,
	Run: func(cmd *cobra.Command, args []string) {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		radius, _ := cmd.Flags().GetFloat64("radius")
		if radius <= 0 || radius > 4 {
			log.Fatal("Radius must be in (0, 4] degrees")
		}

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

		if err := engine.WaitForArea(ctx, lat-radius, lon-radius, lat+radius, lon+radius); err != nil {
			log.Fatalf("Tiles did not settle: %v", err)
		}
		g, err := engine.Snapshot(lat-radius, lon-radius, lat+radius, lon+radius)
		if err != nil {
			log.Fatal(err)
		}

		res, err := saddle.Isolation(ctx, g, lat, lon)
		if errors.Is(err, saddle.ErrHighestPoint) {
			fmt.Printf("Origin: %.6f, %.6f\n", lat, lon)
			fmt.Println("No higher ground within the search radius")
			return
		}
		if err != nil {
			log.Fatalf("Isolation search failed: %v", err)
		}

		// Output results
		fmt.Printf("Origin: %.6f, %.6f (%d m)\n", res.Origin.Lat, res.Origin.Lon, res.Origin.Elevation)
		fmt.Printf("Nearest higher: %.6f, %.6f (%d m)\n", res.Nearest.Lat, res.Nearest.Lon, res.Nearest.Elevation)
		fmt.Printf("Isolation: %.2f km\n", res.DistanceKm)
	},
}

func init() {
	rootCmd.AddCommand(isolationCmd)

	// Required flags
	isolationCmd.Flags().Float64("lat", 0, "Latitude of the summit (required)")
	isolationCmd.Flags().Float64("lon", 0, "Longitude of the summit (required)")
	isolationCmd.MarkFlagRequired("lat")
	isolationCmd.MarkFlagRequired("lon")

	isolationCmd.Flags().Float64("radius", 1, "Search radius in degrees")
}
