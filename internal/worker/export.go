package worker

import (
	"context"
	"log/slog"

	"github.com/mtlprog/airdrop/internal/domain"
)

// StateExporter publishes a committed price state somewhere outside the process.
type StateExporter interface {
	Export(ctx context.Context, state domain.PriceState) error
}

// ExportWorker hands committed snapshots to an exporter without blocking the price store.
// Only the most recent pending state is kept.
type ExportWorker struct {
	exporter StateExporter
	pending  chan domain.PriceState
}

// NewExportWorker creates a new ExportWorker.
func NewExportWorker(exporter StateExporter) *ExportWorker {
	return &ExportWorker{
		exporter: exporter,
		pending:  make(chan domain.PriceState, 1),
	}
}

// Notify queues st for export if it carries a freshly committed snapshot.
// It is meant to be registered as a price store listener.
func (w *ExportWorker) Notify(st domain.PriceState) {
	if st.Status != domain.StatusReady || st.Refreshing || st.Snapshot == nil {
		return
	}

	select {
	case <-w.pending:
	default:
	}
	select {
	case w.pending <- st:
	default:
	}
}

// Run starts the export loop. It blocks until the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context) {
	slog.Info("ExportWorker: starting")

	for {
		select {
		case <-ctx.Done():
			slog.Info("ExportWorker: shutting down")
			return
		case st := <-w.pending:
			if err := w.exporter.Export(ctx, st); err != nil {
				slog.Error("ExportWorker: export failed", "error", err)
			} else {
				slog.Info("ExportWorker: export completed", "currency", st.Snapshot.Currency)
			}
		}
	}
}
