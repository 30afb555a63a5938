package notification

import (
	"context"

	"promowheel/pkg/config"
	"promowheel/pkg/task"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier hands customer messages off for delivery. Callers treat every
// error as best-effort.
type Notifier interface {
	SendPrizeNotification(ctx context.Context, n PrizeNotification) error
	SendApprovalNotification(ctx context.Context, tenantID, userID, comment string) error
	SendRejectionNotification(ctx context.Context, tenantID, userID, comment string) error
}

type queueNotifier struct {
	enqueuer task.Enqueuer
	queue    string
}

type NotifierParams struct {
	fx.In
	Enqueuer task.Enqueuer
	Config   *config.Config
}

// NewNotifier enqueues one asynq task per message; the worker delivers them.
func NewNotifier(p NotifierParams) Notifier {
	queue := p.Config.Notification.Queue
	if queue == "" {
		queue = task.DefaultQueue
	}
	return &queueNotifier{enqueuer: p.Enqueuer, queue: queue}
}

func logger(ctx context.Context, tenantID string) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.String("tenant_id", tenantID),
	)
}

func (n *queueNotifier) SendPrizeNotification(ctx context.Context, p PrizeNotification) error {
	t, err := NewPrizeTask(p, n.queue)
	if err != nil {
		return err
	}
	info, err := n.enqueuer.Enqueue(ctx, t)
	if err != nil {
		return err
	}
	logger(ctx, p.TenantID).Debug("prize notification enqueued", zap.String("task_id", info.ID))
	return nil
}

func (n *queueNotifier) SendApprovalNotification(ctx context.Context, tenantID, userID, comment string) error {
	t, err := NewApprovalTask(DecisionPayload{TenantID: tenantID, UserID: userID, Comment: comment}, n.queue)
	if err != nil {
		return err
	}
	_, err = n.enqueuer.Enqueue(ctx, t)
	return err
}

func (n *queueNotifier) SendRejectionNotification(ctx context.Context, tenantID, userID, comment string) error {
	t, err := NewRejectionTask(DecisionPayload{TenantID: tenantID, UserID: userID, Comment: comment}, n.queue)
	if err != nil {
		return err
	}
	_, err = n.enqueuer.Enqueue(ctx, t)
	return err
}
