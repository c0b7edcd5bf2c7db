package statcast

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Cache stores raw range responses between runs.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, data []byte) error
}

// FileCache keeps zstd-compressed responses as one file per key.
// A disabled FileCache never hits and never writes.
type FileCache struct {
	dir     string
	enabled bool
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// NewFileCache creates the cache directory when enabled.
func NewFileCache(dir string, enabled bool) (*FileCache, error) {
	c := &FileCache{dir: dir, enabled: enabled}
	if !enabled {
		return c, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required when the cache is enabled")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	c.enc, c.dec = enc, dec
	return c, nil
}

// Enabled reports whether the cache reads and writes.
func (c *FileCache) Enabled() bool { return c.enabled }

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".csv.zst")
}

// Get returns the cached body for key.
func (c *FileCache) Get(key string) ([]byte, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}
	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return data, true, nil
}

// Put stores data under key, replacing any previous entry atomically.
func (c *FileCache) Put(key string, data []byte) error {
	if !c.enabled {
		return nil
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(c.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Close releases the codec resources.
func (c *FileCache) Close() error {
	if c.dec != nil {
		c.dec.Close()
	}
	if c.enc != nil {
		return c.enc.Close()
	}
	return nil
}
