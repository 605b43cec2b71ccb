package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/config"
	"github.com/oliverames/ames-consulting/content"
	"github.com/oliverames/ames-consulting/fetch"
	"github.com/oliverames/ames-consulting/journal"
	"github.com/oliverames/ames-consulting/source"
)

// journalRetention is how long ingestion events are kept.
const journalRetention = 7 * 24 * time.Hour

// newSelector wires the fetch client, the dataset filesystem and diag into a
// selector for c.
func newSelector(c config.Config, diag source.Diagnostics, logger *zap.Logger) *source.Selector {
	client := fetch.NewClient(&http.Client{Transport: fetch.NewTransport(content.FS(c.DataDir))}, logger)
	return source.NewSelector(c.Sources(), client, diag, logger)
}

// journalDiagnostics adapts journal.Store to source.Diagnostics.
type journalDiagnostics struct {
	store  *journal.Store
	logger *zap.Logger
}

func (d journalDiagnostics) Record(ctx context.Context, e source.Event) {
	entry := journal.Entry{
		Provider: e.Provider,
		Stage:    e.Stage,
		URL:      e.URL,
		Posts:    e.Posts,
		Duration: e.Duration,
	}
	if e.Err != nil {
		entry.Kind = errorKind(e.Err)
		entry.Error = e.Err.Error()
	}
	// A cancelled request still gets its events journaled.
	if err := d.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("failed to journal ingestion event", zap.Error(err))
	}
}

func errorKind(err error) string {
	if errors.Is(err, source.ErrSourcesExhausted) {
		return "exhausted"
	}
	return fetch.KindOf(err).String()
}

// probe runs the pipeline once, journals every event and prunes entries
// older than journalRetention.
func probe(ctx context.Context, c config.Config, store *journal.Store, logger *zap.Logger) (source.Listing, error) {
	diag := source.Tee{
		source.LogDiagnostics{Logger: logger},
		journalDiagnostics{store: store, logger: logger},
	}
	listing, err := newSelector(c, diag, logger).List(ctx)

	if n, perr := store.Prune(ctx, time.Now().Add(-journalRetention)); perr != nil {
		logger.Warn("failed to prune journal", zap.Error(perr))
	} else if n > 0 {
		logger.Debug("pruned journal", zap.Int64("removed", n))
	}

	fields := []zap.Field{
		zap.String("provider", listing.Provider),
		zap.Int("posts", len(listing.Posts)),
		zap.Bool("degraded", listing.Degraded),
	}
	if err != nil {
		logger.Warn("probe found no posts", append(fields, zap.Error(err))...)
		return listing, err
	}
	logger.Info("probe completed", fields...)
	return listing, nil
}
