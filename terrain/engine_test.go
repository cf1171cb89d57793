package terrain_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/terrain"
)

// tileBytes builds a raw HGT payload with per-sample values from fill.
func tileBytes(res hgt.Resolution, fill func(row, col int) int16) []byte {
	side := res.SideLen()
	data := make([]byte, res.ByteSize())
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			v := uint16(fill(row, col))
			i := 2 * (row*side + col)
			data[i] = byte(v >> 8)
			data[i+1] = byte(v)
		}
	}
	return data
}

func writeTile(t *testing.T, dir, name string, fill func(row, col int) int16) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), tileBytes(hgt.SRTM3, fill), 0o644); err != nil {
		t.Fatal(err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, dir string, mutate func(*terrain.Config)) *terrain.Engine {
	t.Helper()
	cfg := terrain.Config{
		DataDir:    dir,
		Resolution: hgt.SRTM3,
		Logger:     discardLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := terrain.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func awaitEvent(t *testing.T, ch <-chan terrain.Event, want terrain.EventType) terrain.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("no %v event within 5s", want)
		}
	}
}

func TestElevationMissThenValid(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 { return int16(row) })
	e := newEngine(t, dir, nil)

	if got := e.ElevationAt(37.5, -104.5); got != hgt.VoidElevation {
		t.Errorf("first ElevationAt() = %d, want void before load", got)
	}
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	if got := e.ElevationAt(37.0, -105.0); got != 1200 {
		t.Errorf("ElevationAt(37, -105) = %d, want 1200", got)
	}

	st := e.Stats()
	if st.Loads != 1 {
		t.Errorf("Stats().Loads = %d, want 1", st.Loads)
	}
	if st.CacheTiles != 1 || st.CacheBytes != hgt.SRTM3.ByteSize() {
		t.Errorf("cache stats = %d tiles %d bytes, want 1 tile of %d bytes",
			st.CacheTiles, st.CacheBytes, hgt.SRTM3.ByteSize())
	}
}

func TestConcurrentMissLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 { return int16(row) })
	e := newEngine(t, dir, nil)

	events, cancel := e.Subscribe(16)
	defer cancel()

	// второй промах до завершения загрузки не ставит вторую задачу
	e.ElevationAt(37.5, -104.5)
	e.ElevationAt(37.5, -104.5)

	awaitEvent(t, events, terrain.EventTileLoaded)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	if st := e.Stats(); st.Loads != 1 {
		t.Errorf("Stats().Loads = %d, want 1", st.Loads)
	}
}

func TestInvalidFileIsTerminal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "N37W105.hgt"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, dir, nil)

	e.ElevationAt(37.5, -104.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}

	id := hgt.TileID{LatDeg: 37, LonDeg: -105}
	if st, ok := e.TileStatus(id); !ok || st != terrain.StatusFileInvalid {
		t.Errorf("TileStatus() = (%v, %v), want (file-invalid, true)", st, ok)
	}
	if got := e.ElevationAt(37.5, -104.5); got != hgt.VoidElevation {
		t.Errorf("ElevationAt() over invalid file = %d, want void", got)
	}
	if st := e.Stats(); st.LoadFailures != 1 {
		t.Errorf("Stats().LoadFailures = %d, want 1", st.LoadFailures)
	}
}

func TestMissingFileWithoutDownload(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)

	e.ElevationAt(37.5, -104.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	id := hgt.TileID{LatDeg: 37, LonDeg: -105}
	if st, ok := e.TileStatus(id); !ok || st != terrain.StatusFileMissing {
		t.Errorf("TileStatus() = (%v, %v), want (file-missing, true)", st, ok)
	}
}

func TestInterpolatedElevation(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 {
		if row == 600 && col == 600 {
			return hgt.VoidElevation
		}
		return int16(row)
	})
	e := newEngine(t, dir, nil)

	cell := 1.0 / 1200

	if _, err := e.InterpolatedElevationAt(37.5, -104.9); !errors.Is(err, terrain.ErrNotResident) {
		t.Fatalf("InterpolatedElevationAt() before load error = %v, want ErrNotResident", err)
	}
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}

	// точка между рядами 1198 и 1199, значения равны номеру ряда
	got, err := e.InterpolatedElevationAt(37.0+1.5*cell, -104.9)
	if err != nil {
		t.Fatalf("InterpolatedElevationAt() error = %v", err)
	}
	if math.Abs(got-1198.5) > 1e-9 {
		t.Errorf("InterpolatedElevationAt() = %v, want 1198.5", got)
	}

	// пустая ячейка в одном из четырёх углов
	_, err = e.InterpolatedElevationAt(37.0+600.5*cell, -105.0+599.5*cell)
	if !errors.Is(err, terrain.ErrVoidValue) {
		t.Errorf("InterpolatedElevationAt() over void corner error = %v, want ErrVoidValue", err)
	}
}

func TestWaitForAreaCancelled(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.WaitForArea(ctx, 37.1, -104.9, 37.2, -104.8); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForArea() error = %v, want context.Canceled", err)
	}
}

func TestWaitForAreaBadBounds(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)
	if err := e.WaitForArea(waitCtx(t), 38, -104, 37, -105); err == nil {
		t.Error("WaitForArea() with inverted bounds returned nil error")
	}
}

func TestForgetAllowsRetry(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir, nil)
	id := hgt.TileID{LatDeg: 37, LonDeg: -105}

	e.ElevationAt(37.5, -104.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	if st, _ := e.TileStatus(id); st != terrain.StatusFileMissing {
		t.Fatalf("TileStatus() = %v, want file-missing", st)
	}

	// файл появился позже: забываем запись и пробуем заново
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 { return 7 })
	if !e.Forget(id) {
		t.Fatal("Forget() = false for cached tile")
	}
	e.ElevationAt(37.5, -104.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() after retry error = %v", err)
	}
	if got := e.ElevationAt(37.5, -104.5); got != 7 {
		t.Errorf("ElevationAt() after retry = %d, want 7", got)
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 { return int16(row) })
	e := newEngine(t, dir, nil)

	if _, err := e.Snapshot(37.1, -104.9, 37.2, -104.8); !errors.Is(err, terrain.ErrNoValidTiles) {
		t.Errorf("Snapshot() before load error = %v, want ErrNoValidTiles", err)
	}
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	g, err := e.Snapshot(37.1, -104.9, 37.2, -104.8)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	rows, cols := g.Dims()
	if rows != 1201 || cols != 1201 {
		t.Errorf("Dims() = (%d, %d), want (1201, 1201)", rows, cols)
	}
	if got := g.Sample(5, 100); got != 5 {
		t.Errorf("Sample(5, 100) = %d, want 5", got)
	}

	if _, err := e.Snapshot(38, -104, 37, -105); err == nil {
		t.Error("Snapshot() with inverted bounds returned nil error")
	}
}

func TestEvictionEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W105.hgt", func(row, col int) int16 { return 1 })
	writeTile(t, dir, "N37W104.hgt", func(row, col int) int16 { return 2 })
	e := newEngine(t, dir, func(cfg *terrain.Config) {
		cfg.CacheBytes = hgt.SRTM3.ByteSize()
	})

	events, cancel := e.Subscribe(16)
	defer cancel()

	e.ElevationAt(37.5, -104.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -104.9, 37.2, -104.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}
	e.ElevationAt(37.5, -103.5)
	if err := e.WaitForArea(waitCtx(t), 37.1, -103.9, 37.2, -103.8); err != nil {
		t.Fatalf("WaitForArea() error = %v", err)
	}

	ev := awaitEvent(t, events, terrain.EventTileEvicted)
	want := hgt.TileID{LatDeg: 37, LonDeg: -105}
	if ev.Tile != want {
		t.Errorf("evicted tile = %v, want %v", ev.Tile, want)
	}
	st := e.Stats()
	if st.Evictions != 1 || st.CacheTiles != 1 {
		t.Errorf("stats after eviction = %d evictions %d tiles, want 1 and 1", st.Evictions, st.CacheTiles)
	}
}

func TestSetDownloadEnabledNeedsTemplate(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)
	e.SetDownloadEnabled(true)
	if e.DownloadEnabled() {
		t.Error("downloads enabled without a url template")
	}
}

func TestTileStatusUnknown(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)
	if _, ok := e.TileStatus(hgt.TileID{LatDeg: 1, LonDeg: 1}); ok {
		t.Error("TileStatus() = ok for never-touched tile")
	}
}

func TestCloseIdempotent(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)
	e.Close()
	e.Close()
}
