package terrain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/westphae/geomag/pkg/egm96"

	"github.com/pavletto/terrainer/contour"
	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/hillshade"
	"github.com/pavletto/terrainer/saddle"
)

const (
	defaultWaitTimeout = 15 * time.Second
	shadeCacheSize     = 64
	maxAreaTiles       = 64 // ограничение площади запроса в тайлах
)

// ElevationResponse описывает JSON-ответ HandleElevation.
type ElevationResponse struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Elevation    float64 `json:"elevation"`
	Datum        string  `json:"datum"`
	Interpolated bool    `json:"interpolated"`
	Tile         string  `json:"tile"`
}

// TileStatusResponse описывает JSON-ответ HandleStatus для одного тайла.
type TileStatusResponse struct {
	Tile   string `json:"tile"`
	Cached bool   `json:"cached"`
	Status string `json:"status,omitempty"`
}

// StatusResponse описывает сводный JSON-ответ HandleStatus.
type StatusResponse struct {
	Stats           Stats `json:"stats"`
	DownloadEnabled bool  `json:"download_enabled"`
}

// PointResponse is one georeferenced sample in saddle and isolation
// responses.
type PointResponse struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation int16   `json:"elevation"`
}

// KeyColResponse описывает JSON-ответ HandleKeyCol.
type KeyColResponse struct {
	PeakA  PointResponse `json:"peak_a"`
	PeakB  PointResponse `json:"peak_b"`
	KeyCol PointResponse `json:"key_col"`
	// Prominence is the lower peak's elevation over the key col.
	Prominence int `json:"prominence"`
}

// IsolationResponse описывает JSON-ответ HandleIsolation.
type IsolationResponse struct {
	Origin        PointResponse `json:"origin"`
	NearestHigher PointResponse `json:"nearest_higher"`
	DistanceKm    float64       `json:"distance_km"`
}

var errTilesNotReady = errors.New("tiles not ready")

// shadeKey memoizes hillshade renders by rounded request parameters.
type shadeKey struct {
	south, west, north, east int32 // градусы * 1e4
	altitude, azimuth        int16
}

// Server exposes the engine over HTTP. WaitTimeout bounds how long a
// request may wait for tiles to settle before answering.
type Server struct {
	Engine      *Engine
	Log         *slog.Logger
	WaitTimeout time.Duration

	shade *otter.Cache[shadeKey, []byte]
}

// NewServer wires a Server around the engine.
func NewServer(e *Engine, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	shade, err := otter.New(&otter.Options[shadeKey, []byte]{
		MaximumSize: shadeCacheSize,
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		Engine:      e,
		Log:         log,
		WaitTimeout: defaultWaitTimeout,
		shade:       shade,
	}, nil
}

// Routes returns the handler tree of the elevation API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/elevation", s.HandleElevation)
	mux.HandleFunc("/api/v1/contours", s.HandleContours)
	mux.HandleFunc("/api/v1/hillshade", s.HandleHillshade)
	mux.HandleFunc("/api/v1/keycol", s.HandleKeyCol)
	mux.HandleFunc("/api/v1/isolation", s.HandleIsolation)
	mux.HandleFunc("/api/v1/status", s.HandleStatus)
	mux.HandleFunc("/healthz", s.HandleHealth)
	return s.withLog(mux)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.Log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code,
			"duration", time.Since(start).Round(time.Microsecond).String())
	})
}

func parseFloatParam(q string) (float64, bool) {
	v, err := strconv.ParseFloat(q, 64)
	return v, err == nil
}

// waitTile schedules the tile owning the coordinate and waits until it
// settles or the context ends.
func (s *Server) waitTile(ctx context.Context, lat, lon float64) (Status, bool) {
	id := hgt.TileIDOf(lat, lon)
	s.Engine.ElevationAt(lat, lon) // планирует загрузку при промахе
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if st, ok := s.Engine.TileStatus(id); ok && st.Terminal() {
			return st, true
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
		}
	}
}

func (s *Server) waitTimeout() time.Duration {
	if s.WaitTimeout > 0 {
		return s.WaitTimeout
	}
	return defaultWaitTimeout
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) HandleElevation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, ok := parseFloatParam(q.Get("lat"))
	if !ok {
		http.Error(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lon, ok := parseFloatParam(q.Get("lon"))
	if !ok {
		http.Error(w, "invalid lon", http.StatusBadRequest)
		return
	}
	if lat < -90 || lat >= 90 || lon < -180 || lon >= 180 {
		http.Error(w, "coordinate out of range", http.StatusBadRequest)
		return
	}
	datum := q.Get("datum")
	if datum == "" {
		datum = "msl"
	}
	if datum != "msl" && datum != "ellipsoid" {
		http.Error(w, "datum must be msl or ellipsoid", http.StatusBadRequest)
		return
	}
	interpolate := q.Get("interpolate") != "false"

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout())
	defer cancel()

	st, settled := s.waitTile(ctx, lat, lon)
	if !settled {
		http.Error(w, "tile not ready", http.StatusGatewayTimeout)
		return
	}
	if st != StatusValid {
		http.Error(w, "no tile data: "+st.String(), http.StatusNotFound)
		return
	}

	var elev float64
	if interpolate {
		v, err := s.Engine.InterpolatedElevationAt(lat, lon)
		if err != nil {
			switch {
			case errors.Is(err, ErrVoidValue):
				http.Error(w, "void elevation", http.StatusNotFound)
			case errors.Is(err, ErrNotResident):
				// тайл вытеснили между ожиданием и запросом
				http.Error(w, "tile evicted, retry", http.StatusServiceUnavailable)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		elev = v
	} else {
		v := s.Engine.ElevationAt(lat, lon)
		if v == hgt.VoidElevation {
			http.Error(w, "void elevation", http.StatusNotFound)
			return
		}
		elev = float64(v)
	}

	if datum == "ellipsoid" {
		// SRTM отсчитывается от геоида EGM96; поднимаем до эллипсоида WGS84
		loc := egm96.NewLocationGeodetic(lat, lon, 0)
		undulation, err := loc.HeightAboveMSL()
		if err != nil {
			// вне сетки геоида отдаём как есть, в MSL
			datum = "msl"
		} else {
			elev -= undulation
		}
	}

	writeJSON(w, ElevationResponse{
		Lat:          lat,
		Lon:          lon,
		Elevation:    elev,
		Datum:        datum,
		Interpolated: interpolate,
		Tile:         hgt.TileIDOf(lat, lon).String(),
	})
}

// parseBounds reads and validates the south/west/north/east box of an area
// request.
func parseBounds(q map[string][]string) (south, west, north, east float64, err error) {
	get := func(k string) (float64, error) {
		vs := q[k]
		if len(vs) == 0 {
			return 0, fmt.Errorf("missing %s", k)
		}
		return strconv.ParseFloat(vs[0], 64)
	}
	if south, err = get("south"); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid south")
	}
	if west, err = get("west"); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid west")
	}
	if north, err = get("north"); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid north")
	}
	if east, err = get("east"); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid east")
	}
	if south >= north || west >= east {
		return 0, 0, 0, 0, fmt.Errorf("empty bounds")
	}
	tiles := (math.Ceil(north) - math.Floor(south)) * (math.Ceil(east) - math.Floor(west))
	if tiles > maxAreaTiles {
		return 0, 0, 0, 0, fmt.Errorf("area spans %.0f tiles, limit %d", tiles, maxAreaTiles)
	}
	return south, west, north, east, nil
}

// areaGrid waits for the tiles of the box and snapshots them.
func (s *Server) areaGrid(ctx context.Context, south, west, north, east float64) (*Grid, int, error) {
	if err := s.Engine.WaitForArea(ctx, south, west, north, east); err != nil {
		return nil, http.StatusGatewayTimeout, errTilesNotReady
	}
	g, err := s.Engine.Snapshot(south, west, north, east)
	if err != nil {
		if errors.Is(err, ErrNoValidTiles) {
			return nil, http.StatusNotFound, err
		}
		return nil, http.StatusInternalServerError, err
	}
	return g, http.StatusOK, nil
}

// parseLevels reads either an explicit levels CSV or an interval that is
// expanded over the grid's elevation range.
func parseLevels(q map[string][]string, g *Grid) ([]float64, error) {
	if vs := q["levels"]; len(vs) > 0 && vs[0] != "" {
		parts := strings.Split(vs[0], ",")
		levels := make([]float64, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid levels")
			}
			levels = append(levels, v)
		}
		return levels, nil
	}
	if vs := q["interval"]; len(vs) > 0 {
		step, err := strconv.ParseFloat(vs[0], 64)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid interval")
		}
		lo, hi, ok := g.MinMax()
		if !ok {
			return nil, fmt.Errorf("no elevation data")
		}
		first := math.Ceil(float64(lo)/step) * step
		var levels []float64
		for v := first; v <= float64(hi); v += step {
			levels = append(levels, v)
		}
		return levels, nil
	}
	return nil, fmt.Errorf("levels or interval required")
}

func (s *Server) HandleContours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	south, west, north, east, err := parseBounds(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout())
	defer cancel()

	g, code, err := s.areaGrid(ctx, south, west, north, east)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	levels, err := parseLevels(q, g)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	isolines, err := contour.Lines(ctx, g, levels)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
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
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func shadeKeyOf(south, west, north, east, altitude, azimuth float64) shadeKey {
	round := func(v float64) int32 { return int32(math.Round(v * 1e4)) }
	return shadeKey{
		south:    round(south),
		west:     round(west),
		north:    round(north),
		east:     round(east),
		altitude: int16(math.Round(altitude)),
		azimuth:  int16(math.Round(azimuth)),
	}
}

func (s *Server) HandleHillshade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	south, west, north, east, err := parseBounds(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	altitude := 45.0
	if v := q.Get("altitude"); v != "" {
		if altitude, err = strconv.ParseFloat(v, 64); err != nil || altitude <= 0 || altitude > 90 {
			http.Error(w, "invalid altitude", http.StatusBadRequest)
			return
		}
	}
	azimuth := 315.0
	if v := q.Get("azimuth"); v != "" {
		if azimuth, err = strconv.ParseFloat(v, 64); err != nil || azimuth < 0 || azimuth >= 360 {
			http.Error(w, "invalid azimuth", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout())
	defer cancel()

	key := shadeKeyOf(south, west, north, east, altitude, azimuth)
	data, err := s.shade.Get(ctx, key, otter.LoaderFunc[shadeKey, []byte](func(ctx context.Context, _ shadeKey) ([]byte, error) {
		g, _, err := s.areaGrid(ctx, south, west, north, east)
		if err != nil {
			return nil, err
		}
		img, err := hillshade.Render(ctx, g, hillshade.Options{
			AltitudeDeg: altitude,
			AzimuthDeg:  azimuth,
		})
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrNoValidTiles) {
			code = http.StatusNotFound
		} else if errors.Is(err, errTilesNotReady) || errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

func (s *Server) HandleKeyCol(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aLat, okALat := parseFloatParam(q.Get("a_lat"))
	aLon, okALon := parseFloatParam(q.Get("a_lon"))
	bLat, okBLat := parseFloatParam(q.Get("b_lat"))
	bLon, okBLon := parseFloatParam(q.Get("b_lon"))
	if !okALat || !okALon || !okBLat || !okBLon {
		http.Error(w, "a_lat, a_lon, b_lat, b_lon required", http.StatusBadRequest)
		return
	}
	conn := saddle.Conn8
	switch q.Get("connectivity") {
	case "", "8":
	case "4":
		conn = saddle.Conn4
	default:
		http.Error(w, "connectivity must be 4 or 8", http.StatusBadRequest)
		return
	}

	// по умолчанию область — охват обеих вершин с запасом
	const pad = 0.2
	south := math.Min(aLat, bLat) - pad
	north := math.Max(aLat, bLat) + pad
	west := math.Min(aLon, bLon) - pad
	east := math.Max(aLon, bLon) + pad
	tiles := (math.Ceil(north) - math.Floor(south)) * (math.Ceil(east) - math.Floor(west))
	if tiles > maxAreaTiles {
		http.Error(w, fmt.Sprintf("peaks span %.0f tiles, limit %d", tiles, maxAreaTiles), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout())
	defer cancel()

	g, code, err := s.areaGrid(ctx, south, west, north, east)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}

	job := uuid.New()
	s.Engine.events.publish(Event{Type: EventAnalysisStarted, Job: job, Tool: "keycol"})
	res, err := saddle.KeyCol(ctx, g, aLat, aLon, bLat, bLon, conn)
	if err != nil {
		s.Engine.events.publish(Event{Type: EventAnalysisFailed, Job: job, Tool: "keycol", Err: err})
		code := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = http.StatusGatewayTimeout
		}
		http.Error(w, err.Error(), code)
		return
	}
	s.Engine.events.publish(Event{Type: EventAnalysisSucceeded, Job: job, Tool: "keycol"})

	lower := res.PeakA.Elevation
	if res.PeakB.Elevation < lower {
		lower = res.PeakB.Elevation
	}
	writeJSON(w, KeyColResponse{
		PeakA:      PointResponse(res.PeakA),
		PeakB:      PointResponse(res.PeakB),
		KeyCol:     PointResponse(res.Col),
		Prominence: int(lower) - int(res.Col.Elevation),
	})
}

func (s *Server) HandleIsolation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, okLat := parseFloatParam(q.Get("lat"))
	lon, okLon := parseFloatParam(q.Get("lon"))
	if !okLat || !okLon {
		http.Error(w, "lat and lon required", http.StatusBadRequest)
		return
	}
	radius := 1.0
	if v := q.Get("radius"); v != "" {
		var err error
		if radius, err = strconv.ParseFloat(v, 64); err != nil || radius <= 0 || radius > 4 {
			http.Error(w, "invalid radius", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout())
	defer cancel()

	g, code, err := s.areaGrid(ctx, lat-radius, lon-radius, lat+radius, lon+radius)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}

	job := uuid.New()
	s.Engine.events.publish(Event{Type: EventAnalysisStarted, Job: job, Tool: "isolation"})
	res, err := saddle.Isolation(ctx, g, lat, lon)
	if err != nil {
		s.Engine.events.publish(Event{Type: EventAnalysisFailed, Job: job, Tool: "isolation", Err: err})
		if errors.Is(err, saddle.ErrHighestPoint) {
			http.Error(w, "no higher ground within search area", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.Engine.events.publish(Event{Type: EventAnalysisSucceeded, Job: job, Tool: "isolation"})
	writeJSON(w, IsolationResponse{
		Origin:        PointResponse(res.Origin),
		NearestHigher: PointResponse(res.Nearest),
		DistanceKm:    res.DistanceKm,
	})
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("tile"); name != "" {
		id, err := hgt.ParseTileID(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := TileStatusResponse{Tile: id.String()}
		if st, ok := s.Engine.TileStatus(id); ok {
			resp.Cached = true
			resp.Status = st.String()
		}
		writeJSON(w, resp)
		return
	}
	writeJSON(w, StatusResponse{
		Stats:           s.Engine.Stats(),
		DownloadEnabled: s.Engine.DownloadEnabled(),
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
