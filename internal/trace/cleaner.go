package trace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ddscore/internal/logging"
)

// RetentionPolicy bounds how many trace bundles, and for how long, a
// Cleaner keeps on disk.
type RetentionPolicy struct {
	MaxBundles int
	MaxAge     time.Duration
}

// StorageStats summarises the on-disk footprint of retained trace bundles.
type StorageStats struct {
	Bundles   int
	Bytes     int64
	LastSweep time.Time
}

// Cleaner periodically prunes trace bundles according to a RetentionPolicy,
// grounded on the teacher's replay.Cleaner but operating on *.trace.json.gz
// and *.header.json files instead of gameplay replay directories. Files are
// grouped by name stem, so a trace file (domain tag plus timestamp) and its
// header (domain tag only) count as separate bundles.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a Cleaner for the trace directory dir.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps at interval until ctx is cancelled. It sweeps
// once immediately so retention applies on startup, matching the teacher's
// eager-first-sweep behaviour.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep synchronously, primarily for tests.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats reports the statistics recorded by the most recent sweep.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type bundle struct {
	name    string // file name without its .trace.json.gz or .header.json suffix
	paths   []string
	modTime time.Time
	size    int64
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("trace retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	bundles := c.collect(entries)
	now := c.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	for _, b := range bundles {
		if remove, reason := c.shouldRemove(b, now, kept); remove {
			if err := c.remove(b); err != nil {
				c.log.Warn("trace retention removal failed", logging.Error(err), logging.String("bundle", b.name))
				kept++
				stats.Bundles++
				stats.Bytes += b.size
				continue
			}
			c.log.Info("trace retention removed bundle", logging.String("bundle", b.name), logging.String("reason", reason))
			continue
		}
		kept++
		stats.Bundles++
		stats.Bytes += b.size
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

func (c *Cleaner) collect(entries []os.DirEntry) []*bundle {
	bundles := make(map[string]*bundle, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := name
		switch {
		case strings.HasSuffix(name, ".trace.json.gz"):
			stem = strings.TrimSuffix(name, ".trace.json.gz")
		case strings.HasSuffix(name, ".header.json"):
			stem = strings.TrimSuffix(name, ".header.json")
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("trace retention stat failed", logging.Error(err), logging.String("path", filepath.Join(c.dir, name)))
			continue
		}
		b := bundles[stem]
		if b == nil {
			b = &bundle{name: stem}
			bundles[stem] = b
		}
		if info.ModTime().After(b.modTime) {
			b.modTime = info.ModTime()
		}
		b.paths = append(b.paths, filepath.Join(c.dir, name))
		b.size += info.Size()
	}
	list := make([]*bundle, 0, len(bundles))
	for _, b := range bundles {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].modTime.After(list[j].modTime) })
	return list
}

func (c *Cleaner) shouldRemove(b *bundle, now time.Time, kept int) (bool, string) {
	var reasons []string
	if c.policy.MaxAge > 0 && now.Sub(b.modTime) > c.policy.MaxAge {
		reasons = append(reasons, "age")
	}
	if c.policy.MaxBundles > 0 && kept >= c.policy.MaxBundles {
		reasons = append(reasons, "count")
	}
	return len(reasons) > 0, strings.Join(reasons, ",")
}

func (c *Cleaner) remove(b *bundle) error {
	var errs error
	for _, path := range b.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
