package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/hillshade"
)

// hillshadeCmd represents the hillshade command
var hillshadeCmd = &cobra.Command{
	Use:   "hillshade",
	Short: "Render shaded relief of an area as PNG",
	Long: `Render a grayscale hillshade over the tiles covering a bounding box
using the Horn gradient method.

Examples:
  terrainer hillshade --south 46 --west 9 --north 47 --east 10
  terrainer hillshade --south 46 --west 9 --north 47 --east 10 --altitude 30 --azimuth 270 --out relief.png`,
	Run: func(cmd *cobra.Command, args []string) {
		south, west, north, east := readBounds(cmd)
		altitude, _ := cmd.Flags().GetFloat64("altitude")
		azimuth, _ := cmd.Flags().GetFloat64("azimuth")
		zFactor, _ := cmd.Flags().GetFloat64("z-factor")
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

		img, err := hillshade.Render(ctx, g, hillshade.Options{
			AltitudeDeg: altitude,
			AzimuthDeg:  azimuth,
			ZFactor:     zFactor,
		})
		if err != nil {
			log.Fatalf("Failed to render: %v", err)
		}

		// Output results
		f, err := os.Create(out)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			log.Fatal(err)
		}
		b := img.Bounds()
		fmt.Printf("Wrote %dx%d hillshade to %s\n", b.Dx(), b.Dy(), out)
	},
}

func init() {
	rootCmd.AddCommand(hillshadeCmd)
	addBoundsFlags(hillshadeCmd)

	hillshadeCmd.Flags().Float64("altitude", 45, "Sun altitude above the horizon in degrees")
	hillshadeCmd.Flags().Float64("azimuth", 315, "Sun azimuth in degrees clockwise from north")
	hillshadeCmd.Flags().Float64("z-factor", 1, "Vertical exaggeration")
	hillshadeCmd.Flags().StringP("out", "o", "hillshade.png", "Output PNG file")
}
