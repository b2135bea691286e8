// Package libcache assembles the accrs core into a ready-to-use two-tier
// cache.
//
// A Cache owns a raw/comp tier pair sharing one memory budget. Lookups hit
// the raw tier first, fall through to the comp tier (decompressing and
// promoting on a hit), and report a miss only when neither tier holds the
// page; the caller then loads from disk and inserts.
package libcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/quay/accrs"
	"github.com/quay/accrs/internal/log"
)

// Cache is a two-tier compressed buffer cache.
type Cache struct {
	name string
	cc   *accrs.CacheContext
	raw  *accrs.List
	comp *accrs.List

	searches atomic.Uint64
	hits     atomic.Uint64
}

// Stats is a point-in-time snapshot of a Cache's counters.
type Stats struct {
	Name      string
	Raw, Comp accrs.ListStats
	Searches  uint64
	Hits      uint64
}

// New creates a Cache.
func New(ctx context.Context, opts *Options) (*Cache, error) {
	if opts == nil || opts.TotalMemory <= 0 {
		return nil, fmt.Errorf("libcache: total memory is required")
	}
	if err := opts.fillDefaults(); err != nil {
		return nil, fmt.Errorf("libcache: %w", err)
	}
	name := opts.Name
	if name == "" {
		name = uuid.New().String()
	}
	cc := accrs.NewContext(opts.Codec, opts.MaxLocks)
	raw, comp, err := accrs.NewPair(cc, opts.TotalMemory, opts.RawRatio)
	if err != nil {
		return nil, fmt.Errorf("libcache: creating tier pair: %w", err)
	}
	c := &Cache{
		name: name,
		cc:   cc,
		raw:  raw,
		comp: comp,
	}
	ctx = log.With(ctx, "instance", name)
	slog.DebugContext(ctx, "cache created",
		"total", opts.TotalMemory,
		"ratio", opts.RawRatio,
		"codec", opts.Codec.ID().String())
	return c, nil
}

// Name reports the instance label.
func (c *Cache) Name() string { return c.name }

// Context reports the cache's shared context, for callers constructing
// buffers themselves.
func (c *Cache) Context() *accrs.CacheContext { return c.cc }

// Search looks up id across both tiers.
//
// A successful result is pinned; the caller must call
// [accrs.Buffer.ReleasePin] when done with the payload.
func (c *Cache) Search(ctx context.Context, id accrs.BufferID) (*accrs.Buffer, error) {
	_, span := tracer.Start(ctx, "Search")
	defer span.End()
	c.searches.Add(1)
	b, err := c.raw.Search(id)
	if err != nil {
		return nil, err
	}
	c.hits.Add(1)
	return b, nil
}

// Insert adds a page to the raw tier, copying data.
//
// Empty pages are refused: a page with no bytes could never satisfy the
// comp tier's compressed-payload invariant when it ages out.
func (c *Cache) Insert(ctx context.Context, id accrs.BufferID, data []byte) error {
	_, span := tracer.Start(ctx, "Insert")
	defer span.End()
	if len(data) == 0 {
		return accrs.ErrBufferMissingData
	}
	return c.raw.Add(accrs.NewBuffer(c.cc, id, data))
}

// InsertFile adds a page to the raw tier by reading filespec.
func (c *Cache) InsertFile(ctx context.Context, id accrs.BufferID, filespec string) error {
	_, span := tracer.Start(ctx, "Insert")
	defer span.End()
	b, err := accrs.NewBufferFromFile(c.cc, id, filespec)
	if err != nil {
		return err
	}
	if b.DataLength() == 0 {
		return accrs.ErrBufferMissingData
	}
	return c.raw.Add(b)
}

// Remove drops id from whichever tier holds it.
func (c *Cache) Remove(ctx context.Context, id accrs.BufferID) error {
	_, span := tracer.Start(ctx, "Remove")
	defer span.End()
	err := c.raw.Remove(id)
	if errors.Is(err, accrs.ErrBufferNotFound) {
		return c.comp.Remove(id)
	}
	return err
}

// Update replaces a pinned buffer's payload copy-on-write.
func (c *Cache) Update(ctx context.Context, b *accrs.Buffer, data []byte) error {
	_, span := tracer.Start(ctx, "Update")
	defer span.End()
	return c.raw.Update(b, data)
}

// Balance moves the raw/comp memory split to ratio percent raw.
func (c *Cache) Balance(ctx context.Context, ratio int) error {
	ctx, span := tracer.Start(ctx, "Balance")
	defer span.End()
	err := c.raw.Balance(ratio)
	if err != nil {
		return err
	}
	slog.DebugContext(log.With(ctx, "instance", c.name), "cache rebalanced", "ratio", ratio)
	return nil
}

// Stats snapshots the cache's counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Name:     c.name,
		Raw:      c.raw.Stats(),
		Comp:     c.comp.Stats(),
		Searches: c.searches.Load(),
		Hits:     c.hits.Load(),
	}
}

// Close drains both tiers, blocking until every outstanding pin is released.
func (c *Cache) Close(ctx context.Context) error {
	c.raw.Destroy()
	c.comp.Destroy()
	slog.DebugContext(log.With(ctx, "instance", c.name), "cache closed")
	return nil
}
