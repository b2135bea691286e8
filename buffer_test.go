package accrs

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/quay/accrs/codec"
)

func testContext(t *testing.T) *CacheContext {
	t.Helper()
	c, err := codec.New(codec.LZ4)
	if err != nil {
		t.Fatal(err)
	}
	return NewContext(c, 64)
}

func TestBufferInitialize(t *testing.T) {
	cc := testContext(t)

	t.Run("Bytes", func(t *testing.T) {
		in := []byte("page payload")
		b := NewBuffer(cc, 7, in)
		if got, want := b.Data(), in; !cmp.Equal(got, want) {
			t.Error(cmp.Diff(got, want))
		}
		if got, want := b.DataLength(), uint32(len(in)); got != want {
			t.Errorf("got data length %d, want %d", got, want)
		}
		// The payload must be a copy, not an alias.
		in[0] = 'X'
		if b.Data()[0] == 'X' {
			t.Error("payload aliases the caller's slice")
		}
	})
	t.Run("Empty", func(t *testing.T) {
		b := NewBuffer(cc, 8, nil)
		if b.Data() != nil || b.DataLength() != 0 {
			t.Error("expected an empty buffer")
		}
	})
	t.Run("LockIDAssigned", func(t *testing.T) {
		a, b := NewBuffer(cc, 1, nil), NewBuffer(cc, 2, nil)
		if a.lockID == 0 || b.lockID == 0 {
			t.Error("lock id 0 is reserved")
		}
	})
}

func TestBufferCompressRoundtrip(t *testing.T) {
	cc := testContext(t)
	in := bytes.Repeat([]byte("accrs "), 1024)
	b := NewBuffer(cc, 1, in)

	if err := b.compress(); err != nil {
		t.Fatal(err)
	}
	if b.CompLength() == 0 {
		t.Fatal("comp length still zero after compress")
	}
	if got, want := b.DataLength(), uint32(len(in)); got != want {
		t.Errorf("data length not preserved: got %d, want %d", got, want)
	}
	if err := b.compress(); !errors.Is(err, ErrBufferAlreadyCompressed) {
		t.Errorf("got %v, want %v", err, ErrBufferAlreadyCompressed)
	}

	if err := b.decompress(); err != nil {
		t.Fatal(err)
	}
	if b.CompLength() != 0 {
		t.Error("comp length nonzero after decompress")
	}
	if got := b.Data(); !cmp.Equal(got, in) {
		t.Error("payload did not round-trip")
	}
	if err := b.decompress(); !errors.Is(err, ErrBufferAlreadyDecompressed) {
		t.Errorf("got %v, want %v", err, ErrBufferAlreadyDecompressed)
	}
}

func TestBufferCompressMissingData(t *testing.T) {
	cc := testContext(t)
	b := NewBuffer(cc, 1, nil)
	if err := b.compress(); !errors.Is(err, ErrBufferMissingData) {
		t.Errorf("got %v, want %v", err, ErrBufferMissingData)
	}
	if err := b.decompress(); !errors.Is(err, ErrBufferMissingData) {
		t.Errorf("got %v, want %v", err, ErrBufferMissingData)
	}
}

func TestBufferRefCounting(t *testing.T) {
	cc := testContext(t)
	b := NewBuffer(cc, 1, []byte("x"))

	b.Lock()
	if err := b.updateRef(1); err != nil {
		t.Fatal(err)
	}
	b.Unlock()
	if got, want := b.RefCount(), 1; got != want {
		t.Errorf("got ref count %d, want %d", got, want)
	}
	b.ReleasePin()
	if got, want := b.RefCount(), 0; got != want {
		t.Errorf("got ref count %d, want %d", got, want)
	}
}

func TestBufferVictimize(t *testing.T) {
	cc := testContext(t)
	b := NewBuffer(cc, 1, []byte("x"))

	// Take a pin, then victimize from another goroutine; the victimizer must
	// block until the pin is released.
	b.Lock()
	b.updateRef(1)
	b.Unlock()

	victimized := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.victimize()
		b.Unlock()
		close(victimized)
	}()

	select {
	case <-victimized:
		t.Fatal("victimize returned while a pin was outstanding")
	case <-time.After(10 * time.Millisecond):
	}

	// New pins must be refused once the flag is set. Poll for the flag: the
	// victimizer goroutine may not have acquired the lock yet.
	for {
		err := b.Lock()
		if errors.Is(err, ErrBufferIsVictimized) {
			if pinErr := b.updateRef(1); !errors.Is(pinErr, ErrBufferIsVictimized) {
				t.Errorf("got %v, want %v", pinErr, ErrBufferIsVictimized)
			}
			b.Unlock()
			break
		}
		b.Unlock()
		time.Sleep(time.Millisecond)
	}

	b.ReleasePin()
	wg.Wait()
	select {
	case <-victimized:
	default:
		t.Error("victimize did not return after the last pin drained")
	}
}

func TestBufferPoofed(t *testing.T) {
	var b *Buffer
	if err := b.Lock(); !errors.Is(err, ErrBufferPoofed) {
		t.Errorf("got %v, want %v", err, ErrBufferPoofed)
	}
	// ReleasePin on a poofed buffer is a no-op, not a crash.
	b.ReleasePin()
}

func TestBufferClone(t *testing.T) {
	cc := testContext(t)
	in := []byte("clone me")
	b := NewBuffer(cc, 9, in)
	b.popularity.Store(5)

	t.Run("CopyData", func(t *testing.T) {
		n := b.clone(true)
		if got, want := n.Data(), in; !cmp.Equal(got, want) {
			t.Error(cmp.Diff(got, want))
		}
		n.Data()[0] = 'X'
		if b.Data()[0] == 'X' {
			t.Error("clone aliases the source payload")
		}
		if got, want := n.popularity.Load(), uint32(5); got != want {
			t.Errorf("got popularity %d, want %d", got, want)
		}
		if n.lockID == b.lockID && cc.locks.Size() > 2 {
			// Round-robin assignment makes collisions possible but the ids
			// must at least be freshly assigned; poke at the next one.
			m := b.clone(true)
			if m.lockID == n.lockID {
				t.Error("clones are not receiving fresh lock ids")
			}
		}
	})
	t.Run("ShareData", func(t *testing.T) {
		n := b.clone(false)
		n.Data()[0] = 'Y'
		if b.Data()[0] != 'Y' {
			t.Error("shallow clone should alias the source payload")
		}
		b.Data()[0] = 'c'
	})
}

func TestPopularitySaturation(t *testing.T) {
	cc := testContext(t)
	b := NewBuffer(cc, 1, []byte("x"))

	for i := 0; i < MaxPopularity+10; i++ {
		b.bumpPopularity()
	}
	if got, want := b.popularity.Load(), uint32(MaxPopularity); got != want {
		t.Errorf("got popularity %d, want ceiling %d", got, want)
	}

	b.popularity.Store(0)
	b.decayGeneration()
	if got := b.popularity.Load(); got != 0 {
		t.Errorf("decay underflowed to %d", got)
	}
}
