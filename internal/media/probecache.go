package media

import (
	"context"
	"os"
	"sync"
)

// Prober reads metadata of a media file.
type Prober interface {
	Probe(ctx context.Context, source string) (*ProbeResult, error)
}

type probeKey struct {
	path  string
	size  int64
	mtime int64
}

// ProbeCache memoizes probes per path, size and modification time.
type ProbeCache struct {
	prober Prober

	mu      sync.Mutex
	entries map[string]probeEntry
}

type probeEntry struct {
	key    probeKey
	result *ProbeResult
}

func NewProbeCache(prober Prober) *ProbeCache {
	return &ProbeCache{prober: prober, entries: make(map[string]probeEntry)}
}

func (c *ProbeCache) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	key := probeKey{path: source, size: info.Size(), mtime: info.ModTime().UnixNano()}

	c.mu.Lock()
	if e, ok := c.entries[source]; ok && e.key == key {
		c.mu.Unlock()
		return e.result, nil
	}
	c.mu.Unlock()

	result, err := c.prober.Probe(ctx, source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[source] = probeEntry{key: key, result: result}
	c.mu.Unlock()
	return result, nil
}

// Forget drops the cached probe for source.
func (c *ProbeCache) Forget(source string) {
	c.mu.Lock()
	delete(c.entries, source)
	c.mu.Unlock()
}
