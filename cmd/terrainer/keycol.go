package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/saddle"
)

// keycolCmd represents the keycol command
var keycolCmd = &cobra.Command{
	Use:   "keycol",
	Short: "Find the key col between two summits",
	Long: `Find the key col between two summits: the highest pass over which
the two are connected. The prominence of the lower summit is its height
over the key col.

Examples:
  terrainer keycol --a-lat 45.9325 --a-lon 7.8664 --b-lat 45.9766 --b-lon 7.6583
  terrainer keycol --a-lat 45.9325 --a-lon 7.8664 --b-lat 45.9766 --b-lon 7.6583 --connectivity 4`,
	Run: func(cmd *cobra.Command, args []string) {
		aLat, _ := cmd.Flags().GetFloat64("a-lat")
		aLon, _ := cmd.Flags().GetFloat64("a-lon")
		bLat, _ := cmd.Flags().GetFloat64("b-lat")
		bLon, _ := cmd.Flags().GetFloat64("b-lon")
		connFlag, _ := cmd.Flags().GetInt("connectivity")

		var conn saddle.Connectivity
		switch connFlag {
		case 4:
			conn = saddle.Conn4
		case 8:
			conn = saddle.Conn8
		default:
			log.Fatal("Connectivity must be 4 or 8")
		}

		// Область поиска: охват обеих вершин с запасом
		const pad = 0.2
		south := math.Min(aLat, bLat) - pad
		north := math.Max(aLat, bLat) + pad
		west := math.Min(aLon, bLon) - pad
		east := math.Max(aLon, bLon) + pad

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

		res, err := saddle.KeyCol(ctx, g, aLat, aLon, bLat, bLon, conn)
		if err != nil {
			log.Fatalf("Key col search failed: %v", err)
		}

		// Output results
		lower := res.PeakA.Elevation
		if res.PeakB.Elevation < lower {
			lower = res.PeakB.Elevation
		}
		fmt.Printf("Peak A: %.6f, %.6f (%d m)\n", res.PeakA.Lat, res.PeakA.Lon, res.PeakA.Elevation)
		fmt.Printf("Peak B: %.6f, %.6f (%d m)\n", res.PeakB.Lat, res.PeakB.Lon, res.PeakB.Elevation)
		fmt.Printf("Key col: %.6f, %.6f (%d m)\n", res.Col.Lat, res.Col.Lon, res.Col.Elevation)
		fmt.Printf("Prominence of the lower peak: %d m\n", int(lower)-int(res.Col.Elevation))
	},
}

func init() {
	rootCmd.AddCommand(keycolCmd)

	// Required flags
	keycolCmd.Flags().Float64("a-lat", 0, "Latitude of the first summit (required)")
	keycolCmd.Flags().Float64("a-lon", 0, "Longitude of the first summit (required)")
	keycolCmd.Flags().Float64("b-lat", 0, "Latitude of the second summit (required)")
	keycolCmd.Flags().Float64("b-lon", 0, "Longitude of the second summit (required)")
	keycolCmd.MarkFlagRequired("a-lat")
	keycolCmd.MarkFlagRequired("a-lon")
	keycolCmd.MarkFlagRequired("b-lat")
	keycolCmd.MarkFlagRequired("b-lon")

	keycolCmd.Flags().Int("connectivity", 8, "Cell connectivity for the flood: 4 or 8")
}
