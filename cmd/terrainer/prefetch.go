package main

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/terrain"
)

// prefetchCmd represents the prefetch command
var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Load or download every tile of an area",
	Long: `Load every HGT tile covering a bounding box, downloading missing
tiles when downloads are configured. Useful for warming a data directory
before going offline.

Examples:
  terrainer prefetch --south 45 --west 5 --north 48 --east 11
  terrainer prefetch --south 45 --west 5 --north 48 --east 11 \
    --auto-download --srtm1-url "https://tiles.example.com/{tile}.hgt.gz"`,
	Run: func(cmd *cobra.Command, args []string) {
		south, _ := cmd.Flags().GetFloat64("south")
		west, _ := cmd.Flags().GetFloat64("west")
		north, _ := cmd.Flags().GetFloat64("north")
		east, _ := cmd.Flags().GetFloat64("east")
		if south >= north || west >= east {
			log.Fatal("Bounding box is empty")
		}

		// Load configuration
		cfg := LoadConfig(cmd)

		// Create engine
		engine, err := cfg.CreateEngine()
		if err != nil {
			log.Fatalf("Failed to create engine: %v", err)
		}
		defer engine.Close()

		// Enumerate the tiles of the box
		var ids []hgt.TileID
		for lat := int(math.Floor(south)); lat < int(math.Ceil(north)); lat++ {
			for lon := int(math.Floor(west)); lon < int(math.Ceil(east)); lon++ {
				ids = append(ids, hgt.TileID{LatDeg: lat, LonDeg: lon})
			}
		}

		if err := engine.EnsureArea(south, west, north, east); err != nil {
			log.Fatal(err)
		}

		// Track progress until every tile settles
		bar := progressbar.Default(int64(len(ids)), "prefetch")
		done := make(map[hgt.TileID]terrain.Status, len(ids))
		seen := make(map[hgt.TileID]bool, len(ids))
		for len(done) < len(ids) {
			resched := false
			for _, id := range ids {
				if _, ok := done[id]; ok {
					continue
				}
				st, ok := engine.TileStatus(id)
				if !ok {
					if seen[id] {
						// загружен и уже вытеснен из кэша — готово
						done[id] = terrain.StatusValid
						_ = bar.Add(1)
					} else {
						// заявка не влезла в очередь, повторим
						resched = true
					}
					continue
				}
				seen[id] = true
				if st.Terminal() {
					done[id] = st
					_ = bar.Add(1)
				}
			}
			if resched {
				_ = engine.EnsureArea(south, west, north, east)
			}
			time.Sleep(200 * time.Millisecond)
		}
		_ = bar.Finish()

		// Summarize
		var valid, missing, failed int
		for _, st := range done {
			switch st {
			case terrain.StatusValid:
				valid++
			case terrain.StatusFileMissing:
				missing++
			default:
				failed++
			}
		}
		fmt.Printf("Tiles: %d valid, %d missing, %d failed\n", valid, missing, failed)
	},
}

func init() {
	rootCmd.AddCommand(prefetchCmd)

	// Required flags
	prefetchCmd.Flags().Float64("south", 0, "South edge of the box (required)")
	prefetchCmd.Flags().Float64("west", 0, "West edge of the box (required)")
	prefetchCmd.Flags().Float64("north", 0, "North edge of the box (required)")
	prefetchCmd.Flags().Float64("east", 0, "East edge of the box (required)")
	prefetchCmd.MarkFlagRequired("south")
	prefetchCmd.MarkFlagRequired("west")
	prefetchCmd.MarkFlagRequired("north")
	prefetchCmd.MarkFlagRequired("east")
}
