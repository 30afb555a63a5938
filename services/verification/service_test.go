package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"promowheel/pkg/db/pagination"
	"promowheel/pkg/errutil"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/notification"
	"promowheel/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type decisionCall struct {
	action   AuditAction
	tenantID string
	userID   string
	comment  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []decisionCall
	err   error
}

func (n *recordingNotifier) record(action AuditAction, tenantID, userID, comment string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, decisionCall{action, tenantID, userID, comment})
	return n.err
}

func (n *recordingNotifier) SendPrizeNotification(context.Context, notification.PrizeNotification) error {
	return nil
}

func (n *recordingNotifier) SendApprovalNotification(_ context.Context, tenantID, userID, comment string) error {
	return n.record(ActionApprove, tenantID, userID, comment)
}

func (n *recordingNotifier) SendRejectionNotification(_ context.Context, tenantID, userID, comment string) error {
	return n.record(ActionReject, tenantID, userID, comment)
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *recordingNotifier
}

var submitted = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t,
		&campaign.Campaign{}, &campaign.SocialMediaTask{}, &campaign.Spin{},
		&customer.EndUser{}, &manager.Manager{},
		&SocialTaskCompletion{}, &ManagerAuditLog{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	seed := []any{
		&campaign.Campaign{ID: "ca", TenantID: "ta", Name: "Acme Wheel", IsActive: true},
		&campaign.Campaign{ID: "cb", TenantID: "tb", Name: "Beta Wheel", IsActive: true},
		&campaign.SocialMediaTask{ID: "ig", CampaignID: "ca", Type: campaign.TaskInstagramFollow, TargetURL: "https://instagram.com/acme", SpinsReward: 50, IsActive: true},
		&campaign.SocialMediaTask{ID: "fb", CampaignID: "cb", Type: campaign.TaskFacebookLike, TargetURL: "https://facebook.com/beta", SpinsReward: 2, IsActive: true},
		&customer.EndUser{ID: "ua", TenantID: "ta", Name: "Ana", Phone: "+628111000111"},
		&customer.EndUser{ID: "ua2", TenantID: "ta", Name: "Adi", Phone: "+628111009999"},
		&customer.EndUser{ID: "ub", TenantID: "tb", Name: "Budi", Phone: "+628222000222"},
		&manager.Manager{ID: "ma", TenantID: "ta", Email: "ma@acme.test", MaxBonusSpinsPerApproval: 10, IsActive: true},
		&manager.Manager{ID: "mb", TenantID: "tb", Email: "mb@beta.test", MaxBonusSpinsPerApproval: 10, IsActive: true},
		&campaign.Spin{ID: "s1", UserID: "ua", CampaignID: "ca", SpinDate: submitted.Add(-time.Hour)},
		&campaign.Spin{ID: "s2", UserID: "ub", CampaignID: "cb", SpinDate: submitted.Add(-time.Hour)},
		&SocialTaskCompletion{ID: "c1", TaskID: "ig", UserID: "ua", Status: StatusPending, SubmittedAt: submitted},
		// ua2 never spun
		&SocialTaskCompletion{ID: "c2", TaskID: "ig", UserID: "ua2", Status: StatusPending, SubmittedAt: submitted},
		&SocialTaskCompletion{ID: "c3", TaskID: "fb", UserID: "ub", Status: StatusPending, SubmittedAt: submitted},
	}
	for _, row := range seed {
		require.NoError(t, db.Create(row).Error)
	}

	n := &recordingNotifier{}
	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Managers: manager.NewStore(manager.StoreParams{DB: db}),
		Spins:    customer.NewStore(customer.StoreParams{DB: db}),
		Notifier: n,
		Clock:    func() time.Time { return submitted.Add(2 * time.Hour) },
	})
	return &fixture{db: db, svc: svc, notifier: n}
}

func (f *fixture) bonusSpins(t *testing.T, userID string) int {
	t.Helper()
	var u customer.EndUser
	require.NoError(t, f.db.First(&u, "id = ?", userID).Error)
	return u.BonusSpinsEarned
}

func (f *fixture) audits(t *testing.T, completionID string) []ManagerAuditLog {
	t.Helper()
	var logs []ManagerAuditLog
	require.NoError(t, f.db.Where("completion_id = ?", completionID).Find(&logs).Error)
	return logs
}

func TestPendingTasksAreTenantScopedAndMinimized(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.GetPendingTasks(context.Background(), "ma", TaskFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Len(t, list.Tasks, 1)

	task := list.Tasks[0]
	require.Equal(t, "c1", task.ID)
	require.Equal(t, campaign.TaskInstagramFollow, task.Type)
	require.Equal(t, "https://instagram.com/acme", task.TargetURL)
	require.Equal(t, 50, task.SpinsReward)
	require.Equal(t, Customer{ID: "ua", PhoneLast4: "0111"}, task.Customer)
}

func TestPendingTasksFilterAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApproveTask(ctx, "ma", "c1", "looks good")
	require.NoError(t, err)

	list, err := f.svc.GetPendingTasks(ctx, "ma", TaskFilter{})
	require.NoError(t, err)
	require.Empty(t, list.Tasks)

	list, err = f.svc.GetPendingTasks(ctx, "ma", TaskFilter{Status: "verified", Page: pagination.Page{Page: 1, Limit: 5}})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	require.Equal(t, StatusVerified, list.Tasks[0].Status)
	require.Equal(t, 5, list.Limit)

	_, err = f.svc.GetPendingTasks(ctx, "ma", TaskFilter{Status: "bogus"})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestApproveCapsGrantAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.ApproveTask(ctx, "ma", "c1", "followed")
	require.NoError(t, err)
	require.Equal(t, &Decision{Success: true, BonusSpinsGranted: 10}, d)
	require.Equal(t, 10, f.bonusSpins(t, "ua"))

	var c SocialTaskCompletion
	require.NoError(t, f.db.First(&c, "id = ?", "c1").Error)
	require.Equal(t, StatusVerified, c.Status)
	require.Equal(t, 10, c.SpinsAwarded)
	require.NotNil(t, c.VerifiedBy)
	require.Equal(t, "ma", *c.VerifiedBy)
	require.NotNil(t, c.VerifiedAt)

	logs := f.audits(t, "c1")
	require.Len(t, logs, 1)
	require.Equal(t, ActionApprove, logs[0].Action)
	require.Equal(t, 10, logs[0].SpinsGranted)
	require.Equal(t, "ta", logs[0].TenantID)

	require.Equal(t, []decisionCall{{ActionApprove, "ta", "ua", "followed"}}, f.notifier.calls)
}

func TestSecondApprovalIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApproveTask(ctx, "ma", "c1", "ok")
	require.NoError(t, err)

	_, err = f.svc.ApproveTask(ctx, "ma", "c1", "ok again")
	require.Equal(t, errutil.ReasonAlreadyVerified, errutil.ReasonOf(err))
	_, err = f.svc.RejectTask(ctx, "ma", "c1", "changed my mind")
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))

	require.Equal(t, 10, f.bonusSpins(t, "ua"))
	require.Len(t, f.audits(t, "c1"), 1)
}

func TestConcurrentApprovalsGrantOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApproveTask(ctx, "ma", "c1", "ok")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errutil.ReasonOf(err) == errutil.ReasonAlreadyVerified:
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, workers-1, conflicts)
	require.Equal(t, 10, f.bonusSpins(t, "ua"))
	require.Len(t, f.audits(t, "c1"), 1)
}

func TestCrossTenantAccessIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetTaskDetail(ctx, "ma", "c3")
	require.Equal(t, errutil.ReasonCrossTenantAccess, errutil.ReasonOf(err))

	_, err = f.svc.ApproveTask(ctx, "ma", "c3", "ok")
	require.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))
	require.Zero(t, f.bonusSpins(t, "ub"))
	require.Empty(t, f.audits(t, "c3"))

	_, err = f.svc.GetTaskDetail(ctx, "ma", "nope")
	require.Equal(t, errutil.ReasonTaskNotFound, errutil.ReasonOf(err))
}

func TestDecisionPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApproveTask(ctx, "ma", "c1", "   ")
	require.Equal(t, errutil.ReasonCommentRequired, errutil.ReasonOf(err))

	_, err = f.svc.ApproveTask(ctx, "ghost", "c1", "ok")
	require.Equal(t, errutil.ReasonManagerNotFound, errutil.ReasonOf(err))

	require.NoError(t, f.db.Model(&manager.Manager{}).Where("id = ?", "ma").Update("is_active", false).Error)
	_, err = f.svc.ApproveTask(ctx, "ma", "c1", "ok")
	require.Equal(t, errutil.ReasonManagerInactive, errutil.ReasonOf(err))
	_, err = f.svc.GetPendingTasks(ctx, "ma", TaskFilter{})
	require.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))

	require.Zero(t, f.bonusSpins(t, "ua"))
}

func TestRejectGrantsNothing(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.RejectTask(context.Background(), "mb", "c3", "no like found")
	require.NoError(t, err)
	require.Zero(t, d.BonusSpinsGranted)
	require.Zero(t, f.bonusSpins(t, "ub"))

	logs := f.audits(t, "c3")
	require.Len(t, logs, 1)
	require.Equal(t, ActionReject, logs[0].Action)

	detail, err := f.svc.GetTaskDetail(context.Background(), "mb", "c3")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, detail.Status)
	require.Equal(t, "no like found", detail.VerificationComment)
	require.Equal(t, "0222", detail.Customer.PhoneLast4)
}

func TestNotificationFailureKeepsApproval(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	d, err := f.svc.ApproveTask(context.Background(), "ma", "c1", "ok")
	require.NoError(t, err)
	require.Equal(t, 10, d.BonusSpinsGranted)
	require.Equal(t, 10, f.bonusSpins(t, "ua"))
}
