package libcache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quay/accrs"
	"github.com/quay/accrs/codec"
)

func testCache(t *testing.T, total int64, ratio int) *Cache {
	t.Helper()
	ctx := context.Background()
	c, err := New(ctx, &Options{
		TotalMemory: total,
		RawRatio:    ratio,
		Name:        t.Name(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	return c
}

func TestNewDefaults(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, &Options{TotalMemory: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(ctx)
	if c.Name() == "" {
		t.Error("expected a generated instance name")
	}
	s := c.Stats()
	if got, want := s.Raw.MaxSize, int64(1<<20)*DefaultRawRatio/100; got != want {
		t.Errorf("got raw budget %d, want %d", got, want)
	}
	if got, want := s.Raw.MaxSize+s.Comp.MaxSize, int64(1<<20); got != want {
		t.Errorf("budgets sum to %d, want %d", got, want)
	}
}

func TestNewBadOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, nil); err == nil {
		t.Error("expected error for nil options")
	}
	if _, err := New(ctx, &Options{}); err == nil {
		t.Error("expected error for missing total memory")
	}
	if _, err := New(ctx, &Options{TotalMemory: 1 << 20, RawRatio: 100}); err == nil {
		t.Error("expected error for out-of-range ratio")
	}
}

func TestInsertSearchRemove(t *testing.T) {
	ctx := context.Background()
	c := testCache(t, 1<<20, 80)

	payload := []byte("cache me if you can")
	if err := c.Insert(ctx, 42, payload); err != nil {
		t.Fatal(err)
	}
	b, err := c.Search(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Data(); !cmp.Equal(got, payload) {
		t.Error(cmp.Diff(got, payload))
	}
	b.ReleasePin()

	if err := c.Remove(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Search(ctx, 42); !errors.Is(err, accrs.ErrBufferNotFound) {
		t.Errorf("got %v, want %v", err, accrs.ErrBufferNotFound)
	}

	s := c.Stats()
	if got, want := s.Searches, uint64(2); got != want {
		t.Errorf("got %d searches, want %d", got, want)
	}
	if got, want := s.Hits, uint64(1); got != want {
		t.Errorf("got %d hits, want %d", got, want)
	}
}

func TestSearchPromotesFromComp(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, &Options{
		TotalMemory: 4096 + 65536,
		RawRatio:    6, // about 4KiB raw
		Name:        t.Name(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(ctx)

	// Overflow the raw tier so early pages migrate to comp.
	for id := accrs.BufferID(1); id <= 10; id++ {
		if err := c.Insert(ctx, id, bytes.Repeat([]byte{byte(id)}, 1024)); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	s := c.Stats()
	if s.Comp.Count == 0 {
		t.Fatal("nothing migrated to the comp tier")
	}
	if got, want := s.Raw.Count+s.Comp.Count, 10; got != want {
		t.Errorf("got %d buffers across tiers, want %d", got, want)
	}

	// Id 1 went out in the first generation; searching it must hit.
	b, err := c.Search(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.Data(), bytes.Repeat([]byte{1}, 1024); !cmp.Equal(got, want) {
		t.Error("promoted payload does not match the original")
	}
	b.ReleasePin()

	if got := c.Stats().Raw.Restores; got == 0 {
		t.Error("restore counter did not advance")
	}
}

func TestUpdateThroughCache(t *testing.T) {
	ctx := context.Background()
	c := testCache(t, 1<<20, 80)
	if err := c.Insert(ctx, 7, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	b, err := c.Search(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	defer b.ReleasePin()
	if err := c.Update(ctx, b, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got, want := b.Data(), []byte("v2"); !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
	if err := c.Update(ctx, b, []byte("v3")); !errors.Is(err, accrs.ErrBufferIsDirty) {
		t.Errorf("got %v, want %v", err, accrs.ErrBufferIsDirty)
	}
}

func TestBalanceThroughCache(t *testing.T) {
	ctx := context.Background()
	c := testCache(t, 1<<20, 80)
	if err := c.Balance(ctx, 50); err != nil {
		t.Fatal(err)
	}
	s := c.Stats()
	if got, want := s.Raw.MaxSize, int64(1<<20)*50/100; got != want {
		t.Errorf("got raw budget %d, want %d", got, want)
	}
	if err := c.Balance(ctx, 0); !errors.Is(err, accrs.ErrBadArgs) {
		t.Errorf("got %v, want %v", err, accrs.ErrBadArgs)
	}
}

func TestNoCompressionCodec(t *testing.T) {
	ctx := context.Background()
	nc, err := codec.New(codec.None)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(ctx, &Options{
		TotalMemory: 4096 + 65536,
		RawRatio:    6,
		Codec:       nc,
		Name:        t.Name(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(ctx)
	for id := accrs.BufferID(1); id <= 10; id++ {
		if err := c.Insert(ctx, id, bytes.Repeat([]byte{byte(id)}, 1024)); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	b, err := c.Search(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer b.ReleasePin()
	if got, want := b.Data(), bytes.Repeat([]byte{1}, 1024); !cmp.Equal(got, want) {
		t.Error("identity-codec payload does not round-trip")
	}
}
