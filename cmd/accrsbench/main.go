// Accrsbench generates load against a two-tier cache from a directory of
// page files.
//
// Workers pick random pages, search the cache, insert on miss, and release
// their pins, until the configured duration expires. It exists to exercise
// the sweep/pop/restore machinery under real contention and report the
// resulting hit ratios.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quay/accrs"
	"github.com/quay/accrs/codec"
	"github.com/quay/accrs/internal/log"
	"github.com/quay/accrs/libcache"
	"github.com/quay/accrs/pkg/cachestats"
	"github.com/quay/accrs/pkg/pagesource"
)

type config struct {
	PageDir    string
	MaxMemory  int64
	FixedRatio int
	Duration   time.Duration
	Workers    int
	PageLimit  int
	DatasetMax int64
	Compressor string
	Listen     string
	Quiet      bool
}

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer done()

	var cfg config
	fs := flag.NewFlagSet("accrsbench", flag.ExitOnError)
	fs.StringVar(&cfg.PageDir, "p", "sample_data", "directory scanned recursively for page files")
	fs.Int64Var(&cfg.MaxMemory, "m", 10*1024*1024, "shared memory budget in bytes")
	fs.IntVar(&cfg.FixedRatio, "f", libcache.DefaultRawRatio, "percent of the budget assigned to the raw tier")
	fs.DurationVar(&cfg.Duration, "d", 5*time.Second, "how long to run the workers")
	fs.IntVar(&cfg.Workers, "w", 0, "worker count (0 means one per CPU)")
	fs.IntVar(&cfg.PageLimit, "n", 0, "max pages to use (0 means all)")
	fs.Int64Var(&cfg.DatasetMax, "b", 0, "max cumulative dataset bytes (0 means unbounded)")
	fs.StringVar(&cfg.Compressor, "c", "lz4", "compressor: none, lz4, zlib, zstd, xz")
	fs.StringVar(&cfg.Listen, "listen", "", "serve prometheus metrics on this address while running")
	fs.BoolVar(&cfg.Quiet, "q", false, "log warnings and errors only")
	fs.Parse(os.Args[1:])

	lvl := slog.LevelDebug
	if cfg.Quiet {
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(log.WrapHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))))

	if err := run(ctx, &cfg); err != nil {
		slog.ErrorContext(ctx, "benchmark failed", "error", err)
		exit = 1
	}
}

var compressors = map[string]codec.ID{
	"none": codec.None,
	"lz4":  codec.LZ4,
	"zlib": codec.Zlib,
	"zstd": codec.Zstd,
	"xz":   codec.XZ,
}

func run(ctx context.Context, cfg *config) error {
	id, ok := compressors[cfg.Compressor]
	if !ok {
		return fmt.Errorf("unknown compressor %q", cfg.Compressor)
	}
	cmp, err := codec.New(id)
	if err != nil {
		return err
	}

	set, err := pagesource.Scan(cfg.PageDir, pagesource.Limits{
		MaxPages:   cfg.PageLimit,
		MaxDataset: cfg.DatasetMax,
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "scanned pages",
		"count", len(set.Pages),
		"dataset", set.DatasetSize,
		"smallest", set.SmallestPage,
		"biggest", set.BiggestPage)

	cache, err := libcache.New(ctx, &libcache.Options{
		TotalMemory: cfg.MaxMemory,
		RawRatio:    cfg.FixedRatio,
		Codec:       cmp,
		MaxLocks:    len(set.Pages),
	})
	if err != nil {
		return err
	}
	defer cache.Close(ctx)
	ctx = log.With(ctx, "instance", cache.Name())

	if cfg.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(cachestats.NewCollector(cache, cache.Name()))
		srv := &http.Server{Addr: cfg.Listen, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go srv.ListenAndServe()
		defer srv.Shutdown(context.Background())
		slog.InfoContext(ctx, "serving metrics", "addr", cfg.Listen)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtimeWorkers()
	}
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	eg, egCtx := errgroup.WithContext(runCtx)
	for i := 0; i < workers; i++ {
		seed := int64(i) + start.UnixNano()
		eg.Go(func() error { return worker(egCtx, cache, set, seed) })
	}
	err = eg.Wait()
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	s := cache.Stats()
	fmt.Printf("duration:  %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("workers:   %d\n", workers)
	fmt.Printf("searches:  %d\n", s.Searches)
	if s.Searches > 0 {
		fmt.Printf("hit ratio: %.2f%%\n", 100*float64(s.Hits)/float64(s.Searches))
	}
	fmt.Printf("raw:  %d buffers, %d/%d bytes, %d sweeps\n",
		s.Raw.Count, s.Raw.CurrentSize, s.Raw.MaxSize, s.Raw.Sweeps)
	fmt.Printf("comp: %d buffers, %d/%d bytes, %d offloaded, %d restored, %d popped\n",
		s.Comp.Count, s.Comp.CurrentSize, s.Comp.MaxSize, s.Raw.Offloaded, s.Raw.Restores, s.Comp.Popped)
	return nil
}

// Worker hammers the cache with random lookups until the context expires,
// loading pages from disk on miss like a real consumer would.
func worker(ctx context.Context, cache *libcache.Cache, set *pagesource.Set, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := rng.Intn(len(set.Pages))
		id := accrs.BufferID(i)
		buf, err := cache.Search(ctx, id)
		switch {
		case err == nil:
			// Pretend to do some work with the payload, then release.
			_ = buf.Data()
			buf.ReleasePin()
		case errors.Is(err, accrs.ErrBufferNotFound):
			if err := cache.InsertFile(ctx, id, set.Pages[i].Filespec); err != nil {
				// Someone beat us to it; loop around for something else.
				if errors.Is(err, accrs.ErrBufferAlreadyExists) {
					continue
				}
				return err
			}
		default:
			return err
		}
	}
}

func runtimeWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
