package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"promowheel/pkg/errutil"
	"promowheel/pkg/taskname"
	"promowheel/services/customer"
	"promowheel/services/tenant"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var delivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promowheel_notifications_total",
	Help: "WhatsApp notifications processed by type and outcome.",
}, []string{"type", "outcome"})

type Tenants interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
}

type Users interface {
	GetInTenant(ctx context.Context, tenantID, userID string) (*customer.EndUser, error)
}

// Handler is the worker side: it turns queued notifications into WhatsApp
// messages using the tenant's own gateway settings.
type Handler struct {
	tenants Tenants
	users   Users
	sender  Sender
}

type HandlerParams struct {
	fx.In
	Tenants Tenants
	Users   Users
	Sender  Sender
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{tenants: p.Tenants, users: p.Users, sender: p.Sender}
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.NotificationPrize, h.HandlePrize)
	mux.HandleFunc(taskname.NotificationApproval, h.HandleApproval)
	mux.HandleFunc(taskname.NotificationRejection, h.HandleRejection)
}

// whatsAppConfig returns nil when the tenant has no usable gateway.
func (h *Handler) whatsAppConfig(ctx context.Context, tenantID string) (*tenant.Tenant, *tenant.WhatsAppConfig, error) {
	t, err := h.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		if errutil.StatusOf(err) == errutil.StatusNotFound {
			return nil, nil, fmt.Errorf("tenant %s: %v: %w", tenantID, err, asynq.SkipRetry)
		}
		return nil, nil, err
	}
	cfg := t.WhatsAppConfig.Data()
	if !cfg.Usable() {
		return t, nil, nil
	}
	return t, &cfg, nil
}

func (h *Handler) HandlePrize(ctx context.Context, task *asynq.Task) error {
	var p PrizeNotification
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode prize notification: %v: %w", err, asynq.SkipRetry)
	}
	zapLog := logger(ctx, p.TenantID).With(zap.String("task_type", task.Type()))

	t, cfg, err := h.whatsAppConfig(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if cfg == nil {
		delivered.WithLabelValues(task.Type(), "disabled").Inc()
		zapLog.Debug("whatsapp disabled for tenant, skipping")
		return nil
	}

	if p.Phone == "" && p.UserID != "" {
		u, err := h.users.GetInTenant(ctx, p.TenantID, p.UserID)
		if err != nil {
			return err
		}
		if u != nil {
			p.Phone, p.UserName = u.Phone, u.Name
		}
	}
	if p.Phone == "" {
		delivered.WithLabelValues(task.Type(), "no_recipient").Inc()
		return fmt.Errorf("prize notification without recipient: %w", asynq.SkipRetry)
	}

	msg := render(cfg.PrizeTemplate, defaultPrizeTemplate, map[string]string{
		"name":   p.UserName,
		"prize":  p.PrizeName,
		"code":   p.CouponCode,
		"tenant": t.Name,
	})
	return h.send(ctx, zapLog, task.Type(), *cfg, p.Phone, msg)
}

func (h *Handler) HandleApproval(ctx context.Context, task *asynq.Task) error {
	return h.handleDecision(ctx, task, func(cfg *tenant.WhatsAppConfig) (string, string) {
		return cfg.ApprovalTemplate, defaultApprovalTemplate
	})
}

func (h *Handler) HandleRejection(ctx context.Context, task *asynq.Task) error {
	return h.handleDecision(ctx, task, func(cfg *tenant.WhatsAppConfig) (string, string) {
		return cfg.RejectionTemplate, defaultRejectionTemplate
	})
}

func (h *Handler) handleDecision(ctx context.Context, task *asynq.Task, templates func(*tenant.WhatsAppConfig) (string, string)) error {
	var p DecisionPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode decision notification: %v: %w", err, asynq.SkipRetry)
	}
	zapLog := logger(ctx, p.TenantID).With(zap.String("task_type", task.Type()), zap.String("user_id", p.UserID))

	t, cfg, err := h.whatsAppConfig(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if cfg == nil {
		delivered.WithLabelValues(task.Type(), "disabled").Inc()
		zapLog.Debug("whatsapp disabled for tenant, skipping")
		return nil
	}

	u, err := h.users.GetInTenant(ctx, p.TenantID, p.UserID)
	if err != nil {
		return err
	}
	if u == nil || u.Phone == "" {
		delivered.WithLabelValues(task.Type(), "no_recipient").Inc()
		return fmt.Errorf("user %s has no phone in tenant: %w", p.UserID, asynq.SkipRetry)
	}

	tmpl, fallback := templates(cfg)
	msg := render(tmpl, fallback, map[string]string{
		"name":    u.Name,
		"comment": p.Comment,
		"tenant":  t.Name,
	})
	return h.send(ctx, zapLog, task.Type(), *cfg, u.Phone, msg)
}

func (h *Handler) send(ctx context.Context, zapLog *zap.Logger, taskType string, cfg tenant.WhatsAppConfig, phone, msg string) error {
	if err := h.sender.Send(ctx, cfg, phone, msg); err != nil {
		delivered.WithLabelValues(taskType, "failed").Inc()
		zapLog.Warn("failed to deliver whatsapp message", zap.String("phone_last4", customer.Last4(phone)), zap.Error(err))
		return err
	}
	delivered.WithLabelValues(taskType, "sent").Inc()
	zapLog.Info("whatsapp message delivered", zap.String("phone_last4", customer.Last4(phone)))
	return nil
}
