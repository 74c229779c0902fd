package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"labsentinel/internal/domain/audits"
)

// Key prefixes inside the persisted map. Audit verdicts and memoized vision
// descriptions share one file but never collide.
const (
	auditPrefix  = "audit:"
	visionPrefix = "vision:"
)

// FileCache is the persistent result store: a single JSON file mapping
// fingerprint keys to serialized values. Writes go through a temp file and
// rename so a crash can never leave a torn cache on disk, and an entry is
// write-once: the first recorded value for a key always wins.
type FileCache struct {
	mu      sync.Mutex
	path    string
	log     *zap.Logger
	entries map[string]json.RawMessage
}

// New loads the cache at path. An unreadable or corrupt store degrades to an
// empty cache with a warning; it never fails the pipeline.
func New(path string, log *zap.Logger) *FileCache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &FileCache{path: path, log: log, entries: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("result cache unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Warn("result cache corrupt, starting empty", zap.String("path", path), zap.Error(err))
		c.entries = make(map[string]json.RawMessage)
	}
	return c
}

// Get returns the stored result for a fingerprint or audits.ErrNotFound.
func (c *FileCache) Get(ctx context.Context, fingerprint string) (*audits.AuditResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries[auditPrefix+fingerprint]
	if !ok {
		return nil, audits.ErrNotFound
	}
	var res audits.AuditResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("cached entry undecodable, treating as miss",
			zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, audits.ErrNotFound
	}
	return &res, nil
}

// Put stores a result exactly once per fingerprint. Re-storing an identical
// value is a no-op; a differing value is a consistency violation and the
// original stays authoritative.
func (c *FileCache) Put(ctx context.Context, fingerprint string, res *audits.AuditResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := auditPrefix + fingerprint
	if existing, ok := c.entries[key]; ok {
		if bytes.Equal(existing, b) {
			return nil
		}
		c.log.Error("refusing to overwrite cached result with differing value",
			zap.String("fingerprint", fingerprint))
		return fmt.Errorf("%s: %w", fingerprint, audits.ErrCacheConflict)
	}

	c.entries[key] = b
	return c.persistLocked()
}

// Description returns a memoized vision-stage text by evidence key.
func (c *FileCache) Description(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries[visionPrefix+key]
	if !ok {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	return text, true
}

// SaveDescription memoizes vision output. Like results, the first stored
// text for an evidence key wins; replays reuse it.
func (c *FileCache) SaveDescription(ctx context.Context, key, text string) error {
	b, err := json.Marshal(text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[visionPrefix+key]; ok {
		return nil
	}
	c.entries[visionPrefix+key] = b
	return c.persistLocked()
}

// Clear destroys all entries. This is the only path that removes anything;
// the audit pipeline itself never deletes.
func (c *FileCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]json.RawMessage)
	return c.persistLocked()
}

// persistLocked writes the whole map atomically: temp file in the same
// directory, then rename over the target. Caller holds c.mu.
func (c *FileCache) persistLocked() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".labsentinel-cache-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}
