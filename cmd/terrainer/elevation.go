package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/westphae/geomag/pkg/egm96"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/terrain"
)

// elevationCmd represents the elevation command
var elevationCmd = &cobra.Command{
	Use:   "elevation",
	Short: "Get terrain elevation at a location",
	Long: `Get terrain elevation at a specific geographic coordinate.

Examples:
  terrainer elevation --lat 46.8 --lon 9.8
  terrainer elevation --lat 46.8 --lon 9.8 --raw
  terrainer elevation --lat 46.8 --lon 9.8 --datum ellipsoid
  terrainer elevation --lat 27.988056 --lon 86.925278 --data-dir /srtm

The command will output the elevation in meters along with tile information.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Parse required flags
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		raw, _ := cmd.Flags().GetBool("raw")
		datum, _ := cmd.Flags().GetString("datum")

		// Validate
		if lat < -90 || lat >= 90 {
			log.Fatal("Latitude must be in [-90, 90)")
		}
		if lon < -180 || lon >= 180 {
			log.Fatal("Longitude must be in [-180, 180)")
		}
		if datum != "msl" && datum != "ellipsoid" {
			log.Fatal("Datum must be msl or ellipsoid")
		}

		// Load configuration
		cfg := LoadConfig(cmd)

		// Create engine
		engine, err := cfg.CreateEngine()
		if err != nil {
			log.Fatalf("Failed to create engine: %v", err)
		}
		defer engine.Close()

		// Wait for the owning tile to settle
		id := hgt.TileIDOf(lat, lon)
		engine.ElevationAt(lat, lon) // планирует загрузку при промахе
		st, ok := awaitTile(engine, id, 2*time.Minute)
		if !ok {
			log.Fatalf("Tile %s did not settle in time", id)
		}
		if st != terrain.StatusValid {
			log.Fatalf("No data for tile %s: %s", id, st)
		}

		var elev float64
		if raw {
			v := engine.ElevationAt(lat, lon)
			if v == hgt.VoidElevation {
				log.Fatal("Void elevation at this location")
			}
			elev = float64(v)
		} else {
			elev, err = engine.InterpolatedElevationAt(lat, lon)
			if err != nil {
				log.Fatalf("Failed to get elevation: %v", err)
			}
		}

		if datum == "ellipsoid" {
			// SRTM отсчитывается от геоида EGM96; поднимаем до эллипсоида WGS84
			loc := egm96.NewLocationGeodetic(lat, lon, 0)
			undulation, err := loc.HeightAboveMSL()
			if err != nil {
				log.Fatalf("No geoid data for this location: %v", err)
			}
			elev -= undulation
		}

		// Output results
		fmt.Printf("Location: %.6f, %.6f\n", lat, lon)
		fmt.Printf("Elevation: %.2f meters (%s)\n", elev, datum)
		fmt.Printf("Tile: %s\n", id)
	},
}

// awaitTile polls until the tile reaches a terminal status.
func awaitTile(engine *terrain.Engine, id hgt.TileID, timeout time.Duration) (terrain.Status, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st, ok := engine.TileStatus(id); ok && st.Terminal() {
			return st, true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return 0, false
}

func init() {
	rootCmd.AddCommand(elevationCmd)

	// Required flags
	elevationCmd.Flags().Float64("lat", 0, "Latitude (required)")
	elevationCmd.Flags().Float64("lon", 0, "Longitude (required)")
	elevationCmd.MarkFlagRequired("lat")
	elevationCmd.MarkFlagRequired("lon")

	elevationCmd.Flags().Bool("raw", false, "Nearest raster sample instead of bilinear interpolation")
	elevationCmd.Flags().String("datum", "msl", "Vertical datum: msl or ellipsoid")
}
