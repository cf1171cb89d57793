package terrain

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/pavletto/terrainer/hgt"
)

// FileStore reads and writes tile files in one flat directory. Three
// spellings are accepted per tile: N37W105.hgt, N37W105.hgt.zip (first .hgt
// member) and N37W105.hgt.gz. SRTM1 and SRTM3 share the naming; the decoded
// byte size tells them apart.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("terrain: data dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("terrain: create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id hgt.TileID, ext string) string {
	return filepath.Join(s.dir, id.String()+ext)
}

var tileExtensions = []string{".hgt", ".hgt.zip", ".hgt.gz"}

// Exists probes all accepted spellings without reading the payload.
func (s *FileStore) Exists(id hgt.TileID) bool {
	for _, ext := range tileExtensions {
		if _, err := os.Stat(s.path(id, ext)); err == nil {
			return true
		}
	}
	return false
}

// Read returns the raw HGT payload of the tile, trying the plain file, the
// zip archive, then the gzip file. A missing tile reports os.ErrNotExist;
// an unreadable archive is a distinct error the loader maps to the
// file-invalid state.
func (s *FileStore) Read(id hgt.TileID) ([]byte, error) {
	if raw, err := os.ReadFile(s.path(id, ".hgt")); err == nil {
		return raw, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("terrain: read %s: %w", id, err)
	}

	if raw, err := os.ReadFile(s.path(id, ".hgt.zip")); err == nil {
		payload, zerr := unwrapZip(raw)
		if zerr != nil {
			return nil, fmt.Errorf("terrain: unzip %s: %w", id, zerr)
		}
		return payload, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("terrain: read %s: %w", id, err)
	}

	if raw, err := os.ReadFile(s.path(id, ".hgt.gz")); err == nil {
		payload, gerr := unwrapGzip(raw)
		if gerr != nil {
			return nil, fmt.Errorf("terrain: gunzip %s: %w", id, gerr)
		}
		return payload, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("terrain: read %s: %w", id, err)
	}

	return nil, fmt.Errorf("terrain: tile %s: %w", id, os.ErrNotExist)
}

// Write persists a plain .hgt payload.
func (s *FileStore) Write(id hgt.TileID, data []byte) error {
	return os.WriteFile(s.path(id, ".hgt"), data, 0o644)
}

// WriteDownloaded persists a downloaded body under the extension its bytes
// call for, so zipped server responses land as .hgt.zip and stay readable
// on the next start. It returns the unwrapped HGT payload.
func (s *FileStore) WriteDownloaded(id hgt.TileID, body []byte) ([]byte, error) {
	switch payloadKind(body) {
	case kindZip:
		if err := os.WriteFile(s.path(id, ".hgt.zip"), body, 0o644); err != nil {
			return nil, err
		}
		payload, err := unwrapZip(body)
		if err != nil {
			return nil, fmt.Errorf("terrain: unzip download %s: %w", id, err)
		}
		return payload, nil
	case kindGzip:
		if err := os.WriteFile(s.path(id, ".hgt.gz"), body, 0o644); err != nil {
			return nil, err
		}
		payload, err := unwrapGzip(body)
		if err != nil {
			return nil, fmt.Errorf("terrain: gunzip download %s: %w", id, err)
		}
		return payload, nil
	default:
		if err := s.Write(id, body); err != nil {
			return nil, err
		}
		return body, nil
	}
}

type payloadFormat uint8

const (
	kindPlain payloadFormat = iota
	kindZip
	kindGzip
)

// по магическим байтам: PK для zip, 1f 8b для gzip
func payloadKind(body []byte) payloadFormat {
	if len(body) >= 2 {
		if body[0] == 'P' && body[1] == 'K' {
			return kindZip
		}
		if body[0] == 0x1f && body[1] == 0x8b {
			return kindGzip
		}
	}
	return kindPlain
}

func unwrapZip(raw []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".hgt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return payload, nil
	}
	return nil, fmt.Errorf("no .hgt member in archive")
}

func unwrapGzip(raw []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
