// Package publisher writes a weather report into the state tree.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clambin/wunderground/internal/store"
	"golang.org/x/sync/errgroup"
)

// A Sink receives the flattened report.
type Sink interface {
	Write(ctx context.Context, entries Entries) error
}

// Publisher writes the entries to every sink. Sinks run concurrently and must write disjoint destinations.
type Publisher struct {
	Sinks  []Sink
	Logger *slog.Logger
}

func (p Publisher) Publish(ctx context.Context, entries Entries) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range p.Sinks {
		g.Go(func() error {
			return sink.Write(ctx, entries)
		})
	}
	err := g.Wait()
	if err == nil && p.Logger != nil {
		p.Logger.Debug("report published", "entries", len(entries), "sinks", len(p.Sinks))
	}
	return err
}

var _ Sink = StoreSink{}

// StoreSink writes each entry to a store, with a JSON-encoded value.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Write(ctx context.Context, entries Entries) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", entry.Path, err)
		}
		if err = s.Store.Set(ctx, entry.Path, string(value)); err != nil {
			return fmt.Errorf("store %s: %w", entry.Path, err)
		}
	}
	return nil
}

// Encoder writes a document. Both *json.Encoder and *yaml.Encoder qualify.
type Encoder interface {
	Encode(any) error
}

var _ Sink = EncoderSink{}

// EncoderSink writes the entries as one document.
type EncoderSink struct {
	Encoder Encoder
}

func (s EncoderSink) Write(_ context.Context, entries Entries) error {
	if err := s.Encoder.Encode(entries); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
