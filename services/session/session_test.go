package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/errutil"
	"promowheel/pkg/middleware"
	"promowheel/pkg/rediskey"
	"promowheel/pkg/util"
	"promowheel/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newDBStore(t *testing.T) (*DBStore, *clock) {
	t.Helper()
	db := testutil.NewTestDB(t, &ManagerSession{})
	c := &clock{t: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	return NewDBStore(db, c.Now), c
}

var identity = accesscontrol.Identity{ManagerID: "m1", TenantID: "t1", Role: accesscontrol.RoleManager}

func TestDBStoreRoundTrip(t *testing.T) {
	store, _ := newDBStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, identity, time.Hour)
	require.NoError(t, err)
	require.Len(t, token, 64)

	got, err := store.ValidateIdentity(ctx, token)
	require.NoError(t, err)
	require.Equal(t, identity, *got)

	// the raw token is never stored
	var n int64
	require.NoError(t, store.db.Model(&ManagerSession{}).Where("token_hash = ?", token).Count(&n).Error)
	require.Zero(t, n)
}

func TestDBStoreExpiry(t *testing.T) {
	store, c := newDBStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, identity, time.Hour)
	require.NoError(t, err)

	c.Advance(59 * time.Minute)
	_, err = store.ValidateIdentity(ctx, token)
	require.NoError(t, err)

	c.Advance(time.Minute)
	_, err = store.ValidateIdentity(ctx, token)
	require.Equal(t, errutil.StatusUnauthorized, errutil.StatusOf(err))
}

func TestDBStoreInvalidate(t *testing.T) {
	store, _ := newDBStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, identity, 0)
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, token))

	_, err = store.ValidateIdentity(ctx, token)
	require.Equal(t, errutil.ReasonUnauthorized, errutil.ReasonOf(err))

	// invalidating twice is harmless
	require.NoError(t, store.Invalidate(ctx, token))
}

type slowStore struct {
	Store
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowStore) ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error) {
	s.calls.Add(1)
	<-s.release
	id := identity
	return &id, nil
}

func TestSharedCollapsesConcurrentLookups(t *testing.T) {
	backend := &slowStore{release: make(chan struct{})}
	store := Shared(backend)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([]*accesscontrol.Identity, callers)
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], _ = store.ValidateIdentity(context.Background(), "same-token")
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	require.Equal(t, int32(1), backend.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		require.Equal(t, "m1", r.ManagerID)
	}

	// callers get their own copy
	results[0].Role = "tampered"
	require.Equal(t, accesscontrol.RoleManager, results[1].Role)
}

func TestRedisKeyUsesTokenHash(t *testing.T) {
	require.Equal(t, "session:"+util.HashToken("tok"), rediskey.BuildSessionKey(util.HashToken("tok")))
}

func TestLogoutInvalidatesPresentedToken(t *testing.T) {
	store, _ := newDBStore(t)
	token, err := store.Create(context.Background(), identity, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Error(false))
	NewHandler(HandlerParams{Store: store}).Register(r)

	req := httptest.NewRequest(http.MethodDelete, "/v1/manager/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/v1/manager/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
