package terrain

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/pavletto/terrainer/hgt"
)

// Download errors by HTTP class. Callers distinguish them with errors.Is;
// an expired token (401) wants different handling than a tile the server
// simply does not have (404).
var (
	ErrUnauthorized = errors.New("terrain: unauthorized (401)")
	ErrForbidden    = errors.New("terrain: forbidden (403)")
	ErrNotFound     = errors.New("terrain: tile not found (404)")

	errDownloadQueueFull = errors.New("terrain: download queue full")
)

// HTTPStatusError reports any other unexpected response status.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("terrain: unexpected http status %d", e.Code)
}

// AuthMode selects how download requests authenticate.
type AuthMode uint8

const (
	AuthNone AuthMode = iota
	AuthBearer
	AuthBasic
)

// AuthConfig carries the credentials for the selected mode.
type AuthConfig struct {
	Mode     AuthMode
	Token    string // AuthBearer
	User     string // AuthBasic
	Password string // AuthBasic
}

func (a AuthConfig) apply(req *http.Request) {
	switch a.Mode {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		req.SetBasicAuth(a.User, a.Password)
	}
}

// downloader runs a fixed pool of workers fetching tile files over HTTP.
// Jobs arrive as download-scheduled placeholders; a worker advances the
// tile to downloading, fetches, persists through the file store and
// finishes at valid or download-failed. There is no automatic retry.
type downloader struct {
	store   *FileStore
	cache   *TileCache
	events  *hub
	log     *slog.Logger
	client  *http.Client
	limiter *rate.Limiter // nil when unlimited
	auth    AuthConfig

	srtm1URL string
	srtm3URL string
	res      hgt.Resolution

	queue chan hgt.TileID
	wg    sync.WaitGroup
}

type downloaderConfig struct {
	srtm1URL string
	srtm3URL string
	res      hgt.Resolution
	auth     AuthConfig
	rateRPS  float64
	timeout  time.Duration
	depth    int
}

func newDownloader(store *FileStore, cache *TileCache, events *hub, log *slog.Logger, cfg downloaderConfig) *downloader {
	if cfg.depth <= 0 {
		cfg.depth = 1024
	}
	d := &downloader{
		store:    store,
		cache:    cache,
		events:   events,
		log:      log,
		client:   newDownloadClient(cfg.timeout),
		auth:     cfg.auth,
		srtm1URL: cfg.srtm1URL,
		srtm3URL: cfg.srtm3URL,
		res:      cfg.res,
		queue:    make(chan hgt.TileID, cfg.depth),
	}
	if cfg.rateRPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.rateRPS), 1)
	}
	return d
}

// newDownloadClient builds a pooled HTTP/2-capable client for tile hosts.
func newDownloadClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	http2.ConfigureTransport(transport)
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func (d *downloader) start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

func (d *downloader) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.fetch(ctx, id)
		}
	}
}

func (d *downloader) enqueue(id hgt.TileID) bool {
	select {
	case d.queue <- id:
		return true
	default:
		return false
	}
}

// urlFor expands the template of the configured resolution; if only the
// other template is set, that one serves instead.
func (d *downloader) urlFor(id hgt.TileID) (string, hgt.Resolution) {
	tpl, res := d.srtm3URL, hgt.SRTM3
	if d.res == hgt.SRTM1 {
		tpl, res = d.srtm1URL, hgt.SRTM1
	}
	if tpl == "" {
		if d.srtm1URL != "" {
			tpl, res = d.srtm1URL, hgt.SRTM1
		} else {
			tpl, res = d.srtm3URL, hgt.SRTM3
		}
	}
	return strings.ReplaceAll(tpl, "{tile}", id.String()), res
}

func (d *downloader) fetch(ctx context.Context, id hgt.TileID) {
	t := d.cache.Get(id)
	if t == nil || t.Status() != StatusDownloadScheduled {
		return // устаревшее задание
	}
	d.cache.PutOrUpdate(id, nil, StatusDownloading)

	job := uuid.New()
	url, res := d.urlFor(id)
	d.events.publish(Event{Type: EventDownloadStarted, Tile: id, Job: job})
	d.log.Debug("download started", "tile", id.String(), "job", job.String(), "resolution", res.String())

	body, err := d.get(ctx, url)
	if err != nil {
		d.finishFailed(id, job, err)
		return
	}

	payload, err := d.store.WriteDownloaded(id, body)
	if err != nil {
		d.finishFailed(id, job, err)
		return
	}
	raster, err := hgt.DecodeRaster(payload)
	if err != nil {
		d.finishFailed(id, job, err)
		return
	}

	// тайл могли убрать, пока шла загрузка — файл уже на диске, в кэш не пишем
	cur := d.cache.Get(id)
	if cur == nil || cur.Status() != StatusDownloading {
		d.log.Debug("download finished for forgotten tile", "tile", id.String())
		return
	}
	d.cache.PutOrUpdate(id, raster, StatusValid)
	d.events.publish(Event{Type: EventDownloadSucceeded, Tile: id, Job: job, Bytes: int64(len(body))})
	d.log.Info("tile downloaded", "tile", id.String(), "bytes", len(body), "resolution", raster.Res().String())
}

func (d *downloader) finishFailed(id hgt.TileID, job uuid.UUID, err error) {
	cur := d.cache.Get(id)
	if cur != nil && cur.Status() == StatusDownloading {
		d.cache.PutOrUpdate(id, nil, StatusDownloadFailed)
	}
	d.events.publish(Event{Type: EventDownloadFailed, Tile: id, Job: job, Err: err})
	d.log.Warn("download failed", "tile", id.String(), "job", job.String(), "err", err)
}

func (d *downloader) get(ctx context.Context, url string) ([]byte, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	d.auth.apply(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("terrain: download %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("terrain: download %s: %w", url, err)
	}
	return body, nil
}
