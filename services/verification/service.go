package verification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"promowheel/pkg/db/option"
	"promowheel/pkg/errutil"
	"promowheel/pkg/repository"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/notification"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const statusAll = "ALL"

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promowheel_task_decisions_total",
	Help: "Manager decisions on social task completions by action and outcome.",
}, []string{"action", "outcome"})

// Managers resolves the acting manager.
type Managers interface {
	Get(ctx context.Context, managerID string) (*manager.Manager, error)
}

// SpinGranter credits bonus spins inside the caller's transaction.
type SpinGranter interface {
	AddBonusSpins(ctx context.Context, tx *gorm.DB, tenantID, userID string, n int) error
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	managers Managers
	spins    SpinGranter
	notifier notification.Notifier
	now      func() time.Time

	audits repository.Repository[ManagerAuditLog]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Managers Managers
	Spins    SpinGranter
	Notifier notification.Notifier `optional:"true"`
	Clock    func() time.Time      `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:       p.DB,
		node:     p.Node,
		managers: p.Managers,
		spins:    p.Spins,
		notifier: p.Notifier,
		now:      now,
		audits:   repository.ProvideStore[ManagerAuditLog](p.DB),
	}
}

func logger(ctx context.Context, tenantID string) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.String("tenant_id", tenantID),
	)
}

func (s *Service) activeManager(ctx context.Context, managerID string) (*manager.Manager, error) {
	m, err := s.managers.Get(ctx, managerID)
	if err != nil {
		logger(ctx, "").Error("failed to get manager", zap.String("manager_id", managerID), zap.Error(err))
		return nil, errutil.Internal("Failed to resolve manager", err)
	}
	if m == nil {
		return nil, errutil.NotFound("Manager not found", nil, errutil.WithReason(errutil.ReasonManagerNotFound))
	}
	if !m.IsActive {
		return nil, errutil.Forbidden("Manager is inactive", nil, errutil.WithReason(errutil.ReasonManagerInactive))
	}
	return m, nil
}

type taskRow struct {
	ID                  string
	TaskID              string
	UserID              string
	Status              CompletionStatus
	SubmittedAt         time.Time
	VerifiedBy          *string
	VerificationComment string
	VerifiedAt          *time.Time
	SpinsAwarded        int
	CampaignID          string
	TenantID            string
	Type                campaign.TaskType
	TargetURL           string
	SpinsReward         int
	Phone               string
}

func (r *taskRow) task() *Task {
	return &Task{
		ID:          r.ID,
		TaskID:      r.TaskID,
		CampaignID:  r.CampaignID,
		Type:        r.Type,
		TargetURL:   r.TargetURL,
		SpinsReward: r.SpinsReward,
		Status:      r.Status,
		SubmittedAt: r.SubmittedAt,
		Customer:    Customer{ID: r.UserID, PhoneLast4: customer.Last4(r.Phone)},
	}
}

const taskColumns = `c.id, c.task_id, c.user_id, c.status, c.submitted_at, c.verified_by,
	c.verification_comment, c.verified_at, c.spins_awarded,
	t.campaign_id, cp.tenant_id, t.type, t.target_url, t.spins_reward, u.phone`

// completions joins a completion to its task, campaign and user. The user
// must live in the campaign's tenant.
func (s *Service) completions(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("social_task_completions AS c").
		Joins("JOIN social_media_tasks t ON t.id = c.task_id").
		Joins("JOIN campaigns cp ON cp.id = t.campaign_id").
		Joins("JOIN end_users u ON u.id = c.user_id AND u.tenant_id = cp.tenant_id")
}

// GetPendingTasks lists the completions of the manager's tenant whose users
// have spun at least once.
func (s *Service) GetPendingTasks(ctx context.Context, managerID string, f TaskFilter) (*TaskList, error) {
	m, err := s.activeManager(ctx, managerID)
	if err != nil {
		return nil, err
	}

	status := strings.ToUpper(strings.TrimSpace(f.Status))
	if status == "" {
		status = string(StatusPending)
	}
	if status != statusAll && !CompletionStatus(status).Valid() {
		return nil, errutil.BadRequest("Unknown status", nil, errutil.WithReason(errutil.ReasonInvalidRequest))
	}

	q := s.completions(ctx).
		Where("cp.tenant_id = ?", m.TenantID).
		Where("EXISTS (SELECT 1 FROM spins s WHERE s.user_id = c.user_id)")
	if status != statusAll {
		q = q.Where("c.status = ?", status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		logger(ctx, m.TenantID).Error("failed to count tasks", zap.Error(err))
		return nil, errutil.Internal("Failed to list tasks", err)
	}

	page := f.Page.Normalize()
	var rows []*taskRow
	err = q.Select(taskColumns).
		Order("c.submitted_at ASC").
		Order("c.id ASC").
		Scopes(option.ApplyPage(page)).
		Scan(&rows).Error
	if err != nil {
		logger(ctx, m.TenantID).Error("failed to list tasks", zap.Error(err))
		return nil, errutil.Internal("Failed to list tasks", err)
	}

	tasks := make([]*Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return &TaskList{Tasks: tasks, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// load returns the completion as seen by m. Completions of another tenant
// are refused rather than hidden.
func (s *Service) load(ctx context.Context, m *manager.Manager, completionID string) (*taskRow, error) {
	var rows []*taskRow
	err := s.completions(ctx).
		Select(taskColumns).
		Where("c.id = ?", completionID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		logger(ctx, m.TenantID).Error("failed to get task", zap.String("completion_id", completionID), zap.Error(err))
		return nil, errutil.Internal("Failed to get task", err)
	}
	if len(rows) == 0 {
		return nil, errutil.NotFound("Task not found", nil, errutil.WithReason(errutil.ReasonTaskNotFound))
	}
	if rows[0].TenantID != m.TenantID {
		logger(ctx, m.TenantID).Warn("cross-tenant task access",
			zap.String("manager_id", m.ID),
			zap.String("completion_id", completionID),
		)
		return nil, errutil.Forbidden("Task belongs to another tenant", nil, errutil.WithReason(errutil.ReasonCrossTenantAccess))
	}
	return rows[0], nil
}

func (s *Service) GetTaskDetail(ctx context.Context, managerID, completionID string) (*TaskDetail, error) {
	m, err := s.activeManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, m, completionID)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{
		Task:                *r.task(),
		VerifiedBy:          r.VerifiedBy,
		VerificationComment: r.VerificationComment,
		VerifiedAt:          r.VerifiedAt,
		SpinsAwarded:        r.SpinsAwarded,
	}, nil
}

func alreadyVerified() error {
	return errutil.Conflict("Task already verified", nil, errutil.WithReason(errutil.ReasonAlreadyVerified))
}

// ApproveTask verifies a pending completion and credits the user with the
// task reward capped by the manager's per-approval maximum. The status flip,
// the grant and the audit entry commit together.
func (s *Service) ApproveTask(ctx context.Context, managerID, completionID, comment string) (*Decision, error) {
	return s.decide(ctx, managerID, completionID, comment, ActionApprove)
}

// RejectTask closes a pending completion without a grant.
func (s *Service) RejectTask(ctx context.Context, managerID, completionID, comment string) (*Decision, error) {
	return s.decide(ctx, managerID, completionID, comment, ActionReject)
}

func (s *Service) decide(ctx context.Context, managerID, completionID, comment string, action AuditAction) (*Decision, error) {
	outcome := "error"
	defer func() { decisions.WithLabelValues(string(action), outcome).Inc() }()

	comment = strings.TrimSpace(comment)
	if comment == "" {
		outcome = "invalid"
		return nil, errutil.BadRequest("Comment is required", nil, errutil.WithReason(errutil.ReasonCommentRequired))
	}

	m, err := s.activeManager(ctx, managerID)
	if err != nil {
		outcome = "denied"
		return nil, err
	}
	r, err := s.load(ctx, m, completionID)
	if err != nil {
		outcome = "denied"
		return nil, err
	}
	if r.Status != StatusPending {
		outcome = "conflict"
		return nil, alreadyVerified()
	}

	zapLog := logger(ctx, m.TenantID).With(
		zap.String("manager_id", m.ID),
		zap.String("completion_id", r.ID),
		zap.String("user_id", r.UserID),
	)

	status, granted := StatusRejected, 0
	if action == ActionApprove {
		status, granted = StatusVerified, m.CapSpins(r.SpinsReward)
	}
	now := s.now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SocialTaskCompletion{}).
			Where("id = ? AND status = ?", r.ID, StatusPending).
			Updates(map[string]any{
				"status":               status,
				"verified_by":          m.ID,
				"verification_comment": comment,
				"verified_at":          now,
				"spins_awarded":        granted,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return alreadyVerified()
		}

		if granted > 0 {
			if err := s.spins.AddBonusSpins(ctx, tx, m.TenantID, r.UserID, granted); err != nil {
				return err
			}
		}

		meta, _ := json.Marshal(map[string]any{
			"taskId":      r.TaskID,
			"taskType":    r.Type,
			"spinsReward": r.SpinsReward,
		})
		return s.audits.WithTrx(tx).Create(ctx, &ManagerAuditLog{
			ID:           s.node.Generate().String(),
			TenantID:     m.TenantID,
			ManagerID:    m.ID,
			CompletionID: r.ID,
			UserID:       r.UserID,
			Action:       action,
			SpinsGranted: granted,
			Comment:      comment,
			Metadata:     datatypes.JSON(meta),
			CreatedAt:    now,
		})
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			outcome = "conflict"
			return nil, err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = "denied"
			return nil, errutil.NotFound("User not found", nil, errutil.WithReason(errutil.ReasonUserNotFound))
		}
		zapLog.Error("failed to record decision", zap.String("action", string(action)), zap.Error(err))
		return nil, errutil.Internal("Failed to record decision", err)
	}

	outcome = "ok"
	zapLog.Info("task decided", zap.String("action", string(action)), zap.Int("spins_granted", granted))
	s.notify(ctx, zapLog, action, m.TenantID, r.UserID, comment)

	return &Decision{Success: true, BonusSpinsGranted: granted}, nil
}

// notify is best effort; the decision is already committed.
func (s *Service) notify(ctx context.Context, zapLog *zap.Logger, action AuditAction, tenantID, userID, comment string) {
	if s.notifier == nil {
		return
	}
	var err error
	if action == ActionApprove {
		err = s.notifier.SendApprovalNotification(ctx, tenantID, userID, comment)
	} else {
		err = s.notifier.SendRejectionNotification(ctx, tenantID, userID, comment)
	}
	if err != nil {
		zapLog.Warn("failed to send decision notification", zap.Error(err))
	}
}
