// Package pipeline turns a stream of prediction records into evaluator
// batches on several workers and feeds them, in input order, to a single
// accumulating consumer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	cveval "github.com/jamesainslie/go-cveval"
	"github.com/jamesainslie/go-cveval/internal/records"
)

// ErrNoScorer is returned when records carry features but no scorer is set.
var ErrNoScorer = errors.New("pipeline: records need scoring but no model is configured")

// Scorer computes class scores from feature vectors.
type Scorer interface {
	Scores(ctx context.Context, features [][]float32) ([][]float64, error)
}

// Source yields chunks of records; it returns io.EOF when exhausted.
type Source interface {
	Next(n int) ([]records.Record, error)
}

// Config configures a Pipeline.
type Config struct {
	Task      cveval.TaskType
	BatchSize int
	Workers   int
	Scorer    Scorer // optional
	Logger    *slog.Logger
}

// Stats summarizes a completed run.
type Stats struct {
	Batches int
	Images  int
	Scored  int
}

// Pipeline runs record conversion concurrently.
type Pipeline struct {
	task      cveval.TaskType
	batchSize int
	workers   int
	scorer    Scorer
	logger    *slog.Logger
}

// New creates a Pipeline. Non-positive sizes default to 1.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		task:      cfg.Task,
		batchSize: max(cfg.BatchSize, 1),
		workers:   max(cfg.Workers, 1),
		scorer:    cfg.Scorer,
		logger:    cfg.Logger,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

type job struct {
	seq  int
	recs []records.Record
}

type result struct {
	seq    int
	batch  cveval.Batch
	scored int
}

// Run reads src to the end and accumulates every batch into ev. It stops at
// the first read, conversion or evaluation error; batches accepted before
// the error stay in ev.
func (p *Pipeline) Run(ctx context.Context, src Source, ev cveval.Evaluator) (Stats, error) {
	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan job, p.workers)
	results := make(chan result, p.workers)
	batches := make(chan cveval.Batch, p.workers)

	// reader
	g.Go(func() error {
		defer close(jobs)
		for seq := 0; ; seq++ {
			recs, err := src.Next(p.batchSize)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading records: %w", err)
			}
			select {
			case jobs <- job{seq: seq, recs: recs}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	// workers
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				res, err := p.convert(ctx, j)
				if err != nil {
					return err
				}
				select {
				case results <- res:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// reorder
	var stats Stats
	g.Go(func() error {
		defer close(batches)
		pending := make(map[int]result)
		next := 0
		for res := range results {
			pending[res.seq] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				select {
				case batches <- r.batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				stats.Batches++
				stats.Images += r.batch.Len()
				stats.Scored += r.scored
			}
		}
		return nil
	})

	// consumer
	g.Go(func() error {
		return cveval.Accumulate(ctx, ev, batches)
	})

	err := g.Wait()
	return stats, err
}

// convert scores records that need it and builds the batch.
func (p *Pipeline) convert(ctx context.Context, j job) (result, error) {
	scored, err := p.score(ctx, j.recs)
	if err != nil {
		return result{}, fmt.Errorf("chunk %d: %w", j.seq, err)
	}
	b, err := records.ToBatch(p.task, j.recs)
	if err != nil {
		return result{}, fmt.Errorf("chunk %d: %w", j.seq, err)
	}
	p.logger.Debug("chunk converted", "chunk", j.seq, "images", len(j.recs), "scored", scored)
	return result{seq: j.seq, batch: b, scored: scored}, nil
}

func (p *Pipeline) score(ctx context.Context, recs []records.Record) (int, error) {
	var idx []int
	var features [][]float32
	for i := range recs {
		if recs[i].NeedsScoring() {
			idx = append(idx, i)
			features = append(features, recs[i].Features)
		}
	}
	if len(idx) == 0 {
		return 0, nil
	}
	if p.scorer == nil {
		return 0, ErrNoScorer
	}

	scores, err := p.scorer.Scores(ctx, features)
	if err != nil {
		return 0, fmt.Errorf("scoring features: %w", err)
	}
	if len(scores) != len(idx) {
		return 0, fmt.Errorf("scoring features: got %d rows, want %d", len(scores), len(idx))
	}
	for k, i := range idx {
		recs[i].Scores = scores[k]
	}
	return len(idx), nil
}
