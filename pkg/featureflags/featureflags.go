package featureflags

import (
	"context"
	"errors"

	"promowheel/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// ErrNotConfigured is returned when no Flagsmith key is set; callers fall
// back to their configured defaults.
var ErrNotConfigured = errors.New("featureflags: flagsmith not configured")

type FeatureFlag interface {
	IsEnabled(ctx context.Context, identifier, feature string) (bool, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

// IsEnabled evaluates feature for the identity (a tenant id).
func (s *featureflag) IsEnabled(ctx context.Context, identifier, feature string) (bool, error) {
	if s.client == nil {
		return false, ErrNotConfigured
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		return false, err
	}

	return flags.IsFeatureEnabled(feature)
}
