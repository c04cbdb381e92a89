package runlog

import (
	"context"
	"log/slog"

	"auto_marketing_agency/workflow"
)

// Observer records every finished run into a Store. Ledger failures are
// logged and never affect the run.
type Observer struct {
	workflow.NoopObserver

	store  Store
	logger *slog.Logger
}

var _ workflow.Observer = (*Observer)(nil)

func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

func (o *Observer) OnWorkflowCompleted(ctx context.Context, inv *workflow.Invocation) {
	o.record(ctx, inv)
}

func (o *Observer) OnWorkflowFailed(ctx context.Context, inv *workflow.Invocation, err error) {
	o.record(ctx, inv)
}

func (o *Observer) record(ctx context.Context, inv *workflow.Invocation) {
	run, err := FromInvocation(inv)
	if err == nil {
		// Record even when the run itself was cancelled.
		err = o.store.Record(context.WithoutCancel(ctx), run)
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "recording run failed",
			slog.String("run_id", inv.ID),
			slog.Any("error", err),
		)
	}
}
