package runners

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/engine"
	"github.com/jessegalley/fileserver/internal/layout"
	"github.com/jessegalley/fileserver/internal/logger"
	"github.com/jessegalley/fileserver/internal/stats"
)

// statsInterval is how often jobs publish running totals
const statsInterval = 500 * time.Millisecond

// Options carries the parts of a run that are not configuration
type Options struct {
	// Workload selects the timed phase pattern
	Workload Workload

	// Fs is the filesystem holding the shard tree, the OS filesystem when nil
	Fs afero.Fs

	// Metrics is shared by every engine of the run when set
	Metrics *engine.Metrics

	// RunID labels logs and results, generated when empty
	RunID string

	// Seed makes random workloads reproducible, time based when zero
	Seed uint64
}

// Run executes one benchmark: an optional prefill pass followed by the timed
// phase. every job owns its own engine. collector is started when the timed
// phase begins and is always stopped before Run returns.
//
// the first fatal error of any job (a structural filesystem error or a
// rejected submission) stops every job; in-flight requests are drained and
// the engines torn down before the error is returned.
func Run(ctx context.Context, cfg *config.Config, collector *stats.Collector, opts Options) (*Result, error) {
	defer collector.Stop()

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	log := logger.With(logger.KeyRunID, opts.RunID)

	if err := prepareRoot(opts.Fs, cfg); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     opts.RunID,
		Workload:  opts.Workload,
		Engine:    cfg.Engine,
		Jobs:      cfg.NumJobs,
		IODepth:   cfg.IODepth,
		BlockSize: uint64(cfg.BlockSize),
	}

	engOpts := cfg.EngineOptions()
	engOpts.Fs = opts.Fs
	engOpts.Metrics = opts.Metrics

	if cfg.Prefill {
		log.Info("prefilling", logger.KeyPath, cfg.Directory, "bytes", uint64(cfg.Size))
		written, err := prefill(ctx, cfg, engOpts)
		if err != nil {
			return nil, fmt.Errorf("prefill: %w", err)
		}
		result.Prefilled = written
	}

	log.Info("starting run",
		"workload", opts.Workload.String(),
		logger.KeyEngine, cfg.Engine,
		"jobs", cfg.NumJobs,
		"iodepth", cfg.IODepth,
		"runtime", cfg.Runtime)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Runtime)
	defer cancel()

	collector.Start()

	g, gctx := errgroup.WithContext(runCtx)
	for id := range cfg.NumJobs {
		g.Go(func() error {
			return runTimedJob(gctx, id, cfg, engOpts, opts, collector)
		})
	}
	err := g.Wait()

	collector.Stop()
	result.Stats = collector.FinalStats()

	if err != nil {
		return result, err
	}

	log.Info("run complete", "duration", result.Duration().Round(time.Millisecond))
	return result, nil
}

// prepareRoot makes sure the shard tree root is usable before any engine
// touches it
func prepareRoot(fsys afero.Fs, cfg *config.Config) error {
	if cfg.ReadOnly {
		return layout.CheckRoot(fsys, cfg.Directory)
	}
	return layout.EnsureWritableRoot(fsys, cfg.Directory)
}

// runTimedJob runs one job of the timed phase and tears its engine down
func runTimedJob(ctx context.Context, id int, cfg *config.Config, engOpts engine.Options, opts Options, collector *stats.Collector) error {
	eng, err := newEngine(cfg.Engine, engOpts)
	if err != nil {
		return fmt.Errorf("job %d: %w", id, err)
	}
	defer eng.Shutdown()

	size, block := uint64(cfg.Size), uint64(cfg.BlockSize)

	var gen generator
	switch opts.Workload {
	case Sequential:
		start, end := jobRange(id, cfg.NumJobs, size, block)
		if end-start < block {
			start, end = 0, size/block*block
		}
		gen = newSequentialGen(start, end, block, engine.Read)
	default:
		gen = newRandomGen(opts.Seed+uint64(id), size, block, cfg.RWMix)
	}

	j := newJob(id, eng, gen, cfg.IODepth, int(block), cfg.DirectIO)
	j.fsyncFreq = cfg.FsyncFreq
	j.tracker = stats.NewTracker(id, collector, statsInterval, true)
	defer j.tracker.Finalize()

	j.log.Info("job started", logger.KeyEngine, cfg.Engine)
	if err := j.run(ctx); err != nil {
		return fmt.Errorf("job %d: %w", id, err)
	}
	j.log.Info("job finished", "requests", j.submitted)

	return nil
}

// prefill writes every block of [0, size) once, each job covering its own
// slice. it returns the number of bytes written.
func prefill(ctx context.Context, cfg *config.Config, engOpts engine.Options) (int64, error) {
	size, block := uint64(cfg.Size), uint64(cfg.BlockSize)
	written := make([]int64, cfg.NumJobs)

	g, gctx := errgroup.WithContext(ctx)
	for id := range cfg.NumJobs {
		start, end := jobRange(id, cfg.NumJobs, size, block)
		if end-start < block {
			continue
		}

		g.Go(func() error {
			eng, err := newEngine(cfg.Engine, engOpts)
			if err != nil {
				return err
			}
			defer eng.Shutdown()

			j := newJob(id, eng, newSequentialGen(start, end, block, engine.Write), cfg.IODepth, int(block), cfg.DirectIO)
			j.limit = int64((end - start) / block)

			err = j.run(gctx)
			written[id] = j.written
			if err != nil {
				return fmt.Errorf("job %d: %w", id, err)
			}
			if gctx.Err() == nil && j.submitted < j.limit {
				return fmt.Errorf("job %d: stopped after %d of %d blocks", id, j.submitted, j.limit)
			}
			return nil
		})
	}

	err := g.Wait()

	var total int64
	for _, n := range written {
		total += n
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return total, err
}
