package main

import (
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavletto/terrainer/terrain"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start an HTTP server that provides REST API endpoints for:
  - /api/v1/elevation - Elevation at a coordinate
  - /api/v1/contours - Contour lines over an area as GeoJSON
  - /api/v1/hillshade - Shaded relief over an area as PNG
  - /api/v1/keycol - Key col between two summits
  - /api/v1/isolation - Distance to the nearest higher ground
  - /api/v1/status - Engine statistics and per-tile states
  - /healthz - Health check endpoint

Configuration can be provided via environment variables or command-line flags.
Flags take precedence over environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Load configuration
		cfg := LoadConfig(cmd)

		// Create engine
		engine, err := cfg.CreateEngine()
		if err != nil {
			log.Fatal(err)
		}
		defer engine.Close()

		// Create server
		s, err := terrain.NewServer(engine, cfg.Logger())
		if err != nil {
			log.Fatal(err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		srv := &http.Server{
			Addr:         addr,
			Handler:      s.Routes(),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		}

		log.Printf("Starting server on %s", addr)
		log.Printf("  Data dir: %s", cfg.DataDir)
		log.Printf("  Resolution: %s", cfg.Resolution)
		log.Printf("  Download: %v", cfg.AutoDownload)
		log.Fatal(srv.ListenAndServe())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
