// Package publish implements the Publisher Fan-out: a sequential
// set of sinks that each receive the day's rendered Digest, with a hard/
// soft failure distinction per sink.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
)

// Metrics records one sink's publish attempt. A nil Metrics (the
// default) disables this instrumentation.
type Metrics interface {
	RecordPublish(sink, status string, durationSeconds float64)
}

// Publisher is any sink that can emit a Digest.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, digest *aggregate.Digest) error
}

type sink struct {
	publisher Publisher
	hard      bool
}

// Group runs its sinks in registration order. A hard sink's failure
// aborts the remaining fan-out and is returned to the caller; a soft
// sink's failure is logged and fan-out continues.
type Group struct {
	sinks   []sink
	metrics Metrics
}

// NewGroup creates an empty Group.
func NewGroup() *Group {
	return &Group{}
}

// SetMetrics attaches per-sink publish instrumentation.
func (g *Group) SetMetrics(metrics Metrics) *Group {
	g.metrics = metrics
	return g
}

// AddHard registers p as a hard-failure sink: its error aborts fan-out.
func (g *Group) AddHard(p Publisher) *Group {
	g.sinks = append(g.sinks, sink{publisher: p, hard: true})
	return g
}

// AddSoft registers p as a soft-failure sink: its error is logged and
// swallowed.
func (g *Group) AddSoft(p Publisher) *Group {
	g.sinks = append(g.sinks, sink{publisher: p, hard: false})
	return g
}

// Len reports how many sinks are registered.
func (g *Group) Len() int {
	return len(g.sinks)
}

// PublishAll runs every registered sink in order over digest. It returns
// the first hard-sink error encountered, aborting any sinks after it. An
// empty Group is itself a configuration error: at least one publisher
// must be enabled.
func (g *Group) PublishAll(ctx context.Context, digest *aggregate.Digest) error {
	if len(g.sinks) == 0 {
		return fmt.Errorf("publish: no publishers configured")
	}

	for _, s := range g.sinks {
		start := time.Now()
		err := s.publisher.Publish(ctx, digest)
		if g.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			g.metrics.RecordPublish(s.publisher.Name(), status, time.Since(start).Seconds())
		}
		if err != nil {
			if s.hard {
				return fmt.Errorf("publish: %s: %w", s.publisher.Name(), err)
			}
			slog.ErrorContext(ctx, "publisher failed, continuing fan-out", "sink", s.publisher.Name(), "error", err)
		}
	}
	return nil
}
