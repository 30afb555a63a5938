package session

import (
	"context"
	"time"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/errutil"
	"promowheel/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	tokenBytes = 32
	DefaultTTL = 12 * time.Hour
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promowheel_session_lookups_total",
	Help: "Session token validations by outcome.",
}, []string{"outcome"})

// Store owns manager sessions. Tokens are opaque to callers and only their
// hash is persisted.
type Store interface {
	Create(ctx context.Context, identity accesscontrol.Identity, ttl time.Duration) (string, error)
	ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error)
	Invalidate(ctx context.Context, token string) error
}

func errInvalidSession() error {
	return errutil.Unauthorized("Invalid or expired session", nil, errutil.WithReason(errutil.ReasonUnauthorized))
}

func newToken() (string, string, error) {
	token, err := util.GenerateToken(tokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, util.HashToken(token), nil
}

// shared collapses concurrent validations of the same token into a single
// backend lookup.
type shared struct {
	Store
	group singleflight.Group
}

func Shared(s Store) Store {
	return &shared{Store: s}
}

func (s *shared) ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error) {
	v, err, _ := s.group.Do(util.HashToken(token), func() (interface{}, error) {
		return s.Store.ValidateIdentity(ctx, token)
	})
	if err != nil {
		lookups.WithLabelValues("rejected").Inc()
		return nil, err
	}
	lookups.WithLabelValues("ok").Inc()

	identity := *v.(*accesscontrol.Identity)
	return &identity, nil
}
