package quota

import (
	"context"
	"errors"

	"promowheel/pkg/config"
	"promowheel/pkg/featureflags"

	"go.uber.org/zap"
)

const strictConsumeFlag = "quota_strict_consume"

// Policy decides whether a tenant runs the atomic reserve path instead of
// check-then-consume.
type Policy interface {
	StrictConsume(ctx context.Context, tenantID string) bool
}

type policy struct {
	flags    featureflags.FeatureFlag
	fallback bool
}

func NewPolicy(cfg *config.Config, flags featureflags.FeatureFlag) Policy {
	return &policy{flags: flags, fallback: cfg.Quota.StrictConsume}
}

func (p *policy) StrictConsume(ctx context.Context, tenantID string) bool {
	if p.flags == nil {
		return p.fallback
	}
	enabled, err := p.flags.IsEnabled(ctx, tenantID, strictConsumeFlag)
	if err != nil {
		if !errors.Is(err, featureflags.ErrNotConfigured) {
			zap.L().Warn("failed to evaluate quota flag, using default", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return p.fallback
	}
	return enabled
}

// StaticPolicy always answers the same way.
type StaticPolicy bool

func (s StaticPolicy) StrictConsume(context.Context, string) bool { return bool(s) }
