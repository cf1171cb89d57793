/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "terrainer",
	Short: "SRTM elevation tile engine and terrain analysis service",
	Long: `Terrainer serves elevation data from SRTM HGT tiles.

It provides both CLI commands and HTTP API endpoints for:
- Elevation Lookup: bilinear-interpolated elevation at any coordinate
- Contour Lines: marching-squares isolines exported as GeoJSON
- Hillshade: shaded relief rendered as PNG
- Key Col Search: the highest pass connecting two summits
- Isolation: distance to the nearest higher ground

Tiles load from a local directory and can be fetched over HTTP on demand.
Configuration can be set via environment variables or command-line flags.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Directory with HGT tile files")
	rootCmd.PersistentFlags().String("resolution", "srtm1", "Tile resolution: srtm1 or srtm3")
	rootCmd.PersistentFlags().Int("cache-mb", 0, "Tile cache limit in megabytes (0 = unbounded)")
	rootCmd.PersistentFlags().Bool("auto-download", false, "Download missing tiles over HTTP")
	rootCmd.PersistentFlags().String("srtm1-url", "", "URL template for SRTM1 tiles, {tile} expands to the tile name")
	rootCmd.PersistentFlags().String("srtm3-url", "", "URL template for SRTM3 tiles, {tile} expands to the tile name")
	rootCmd.PersistentFlags().String("auth-mode", "none", "Download auth: none, bearer or basic")
	rootCmd.PersistentFlags().String("auth-token", "", "Bearer token for tile downloads")
	rootCmd.PersistentFlags().String("auth-user", "", "Basic auth user for tile downloads")
	rootCmd.PersistentFlags().String("auth-password", "", "Basic auth password for tile downloads")
	rootCmd.PersistentFlags().Int("download-workers", 2, "Concurrent tile downloads")
	rootCmd.PersistentFlags().Float64("rate-limit", 0, "Download rate limit in requests per second (0 = unlimited)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of text")
}
