package refs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/rootline/rootline/pkg/observability"
)

// DefaultConcurrency bounds the number of lookups in flight per batch.
const DefaultConcurrency = 8

// Report summarizes one [Resolver.Resolve] batch.
type Report struct {
	Requested int         // unique keys not already labelled
	Resolved  int         // lookups that produced a label
	Failed    int         // lookups that returned an error
	Errors    map[Key]error
}

// Resolver fires one lookup per unique key and records the labels.
type Resolver struct {
	lookup      Lookup
	concurrency int
	logger      *log.Logger
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithConcurrency sets the maximum number of lookups in flight.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Resolve looks up every key not yet in labels, at most once each, and adds
// each label as soon as its lookup completes.
//
// Lookup failures are soft: they are counted in the report and logged, and
// the key keeps rendering as its raw id. The only error returned is ctx's,
// when the batch was cancelled; labels are never written after that.
func (r *Resolver) Resolve(ctx context.Context, keys []Key, labels *Labels) (Report, error) {
	var pending []Key
	for _, k := range Dedupe(keys) {
		if !labels.Has(k) {
			pending = append(pending, k)
		}
	}
	report := Report{Requested: len(pending)}
	if len(pending) == 0 {
		return report, ctx.Err()
	}

	start := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, k := range pending {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			t0 := time.Now()
			label, err := r.lookupOne(gctx, k)
			observability.Resolve().OnLookup(ctx, string(k.Kind), k.ID, time.Since(t0), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				report.Failed++
				if report.Errors == nil {
					report.Errors = make(map[Key]error)
				}
				report.Errors[k] = err
				r.logger.Warn("reference lookup failed", "key", k.String(), "err", err)
				return nil
			}
			if labels.setLive(ctx, k, label) {
				report.Resolved++
			}
			return nil
		})
	}
	_ = g.Wait()

	observability.Resolve().OnBatch(ctx, report.Resolved, report.Failed, time.Since(start))
	r.logger.Debug("references resolved",
		"requested", report.Requested,
		"resolved", report.Resolved,
		"failed", report.Failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return report, ctx.Err()
}

func (r *Resolver) lookupOne(ctx context.Context, k Key) (string, error) {
	switch k.Kind {
	case KindPlace:
		p, err := r.lookup.Place(ctx, k.ID)
		if err != nil {
			return "", err
		}
		return p.Label(), nil
	case KindCemetery:
		c, err := r.lookup.Cemetery(ctx, k.ID)
		if err != nil {
			return "", err
		}
		return c.Label(), nil
	case KindEthnicity:
		e, err := r.lookup.Ethnicity(ctx, k.ID)
		if err != nil {
			return "", err
		}
		return e.Label(), nil
	}
	return "", fmt.Errorf("unknown reference kind %q", k.Kind)
}
