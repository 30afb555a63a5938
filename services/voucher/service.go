package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promowheel/pkg/config"
	"promowheel/pkg/db/option"
	"promowheel/pkg/errutil"
	"promowheel/pkg/repository"
	"promowheel/pkg/sequence"
	"promowheel/services/quota"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

// invalidReason is shared by "no such code" and "code of another tenant".
const invalidReason = "Voucher not found"

var (
	vouchersIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promowheel_vouchers_issued_total",
		Help: "Vouchers created for won prizes.",
	})
	vouchersRedeemed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promowheel_voucher_redemptions_total",
		Help: "Voucher redemption attempts by outcome.",
	}, []string{"outcome"})
)

// Quota is the part of the quota ledger the voucher lifecycle needs.
type Quota interface {
	Strict(ctx context.Context, tenantID string) bool
	CanConsume(ctx context.Context, tenantID string, kind quota.Kind) (bool, error)
	Consume(ctx context.Context, tenantID string, kind quota.Kind) (*quota.MonthlyUsage, error)
	Reserve(ctx context.Context, tenantID string, kind quota.Kind) (bool, error)
	Release(ctx context.Context, tenantID string, kind quota.Kind) error
}

// ActorDirectory tells whether a staff account may act inside a tenant.
type ActorDirectory interface {
	BelongsTo(ctx context.Context, actorID, tenantID string) (bool, error)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	quota    Quota
	actors   ActorDirectory
	qr       QRGenerator
	now      func() time.Time
	validity int

	vouchers repository.Repository[Voucher]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator
	Quota  Quota
	Actors ActorDirectory
	QR     QRGenerator `optional:"true"`
	Config *config.Config
	Clock  func() time.Time `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	validity := 0
	if p.Config != nil {
		validity = p.Config.Voucher.DefaultValidityDays
	}
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		quota:    p.Quota,
		actors:   p.Actors,
		qr:       p.QR,
		now:      now,
		validity: validity,
		vouchers: repository.ProvideStore[Voucher](p.DB),
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

func limitExceeded() error {
	return errutil.TooManyRequest("Monthly voucher limit reached", nil, errutil.WithReason(errutil.ReasonVoucherLimitExceeded))
}

// CreateVoucher issues a voucher for a won prize. The tenant's monthly
// voucher quota is checked here, whoever the caller is.
func (s *Service) CreateVoucher(ctx context.Context, req CreateVoucherRequest) (*Voucher, error) {
	zapLog := logger(ctx, req.TenantID).With(zap.String("spin_id", req.SpinID), zap.String("user_id", req.UserID))

	if req.TenantID == "" || req.UserID == "" {
		return nil, errutil.BadRequest("tenant and user are required", nil, errutil.WithReason(errutil.ReasonInvalidRequest))
	}

	strict := s.quota.Strict(ctx, req.TenantID)
	if strict {
		ok, err := s.quota.Reserve(ctx, req.TenantID, quota.KindVoucher)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, limitExceeded()
		}
	} else {
		ok, err := s.quota.CanConsume(ctx, req.TenantID, quota.KindVoucher)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, limitExceeded()
		}
	}

	v, err := s.insert(ctx, req)
	if err != nil {
		if strict {
			if rerr := s.quota.Release(ctx, req.TenantID, quota.KindVoucher); rerr != nil {
				zapLog.Error("failed to release voucher quota", zap.Error(rerr))
			}
		}
		return nil, err
	}

	if !strict {
		if _, err := s.quota.Consume(ctx, req.TenantID, quota.KindVoucher); err != nil {
			zapLog.Error("failed to record voucher usage", zap.Error(err))
		}
	}

	vouchersIssued.Inc()
	zapLog.Info("voucher created", zap.String("code", maskCode(v.Code)))
	return v, nil
}

func (s *Service) insert(ctx context.Context, req CreateVoucherRequest) (*Voucher, error) {
	zapLog := logger(ctx, req.TenantID)

	code, err := s.uniqueCode(ctx, codePrefix(req.TenantSlug))
	if err != nil {
		zapLog.Error("failed to generate voucher code", zap.Error(err))
		return nil, errutil.Internal("Failed to generate voucher code", err)
	}

	now := s.now().UTC()
	limit := req.RedemptionLimit
	if limit <= 0 {
		limit = 1
	}
	days := req.ValidityDays
	if days <= 0 {
		days = s.validity
	}

	v := &Voucher{
		ID:              s.node.Generate().String(),
		TenantID:        req.TenantID,
		CampaignID:      req.CampaignID,
		PrizeID:         req.PrizeID,
		UserID:          req.UserID,
		SpinID:          req.SpinID,
		Code:            code,
		RedemptionLimit: limit,
		CreatedAt:       now,
	}
	if days > 0 {
		exp := now.AddDate(0, 0, days)
		v.ExpiresAt = &exp
	}

	if req.GenerateQR && s.qr != nil {
		url, err := s.qr.Generate(ctx, req.TenantID, code)
		if err != nil {
			zapLog.Warn("failed to generate voucher QR code", zap.String("code", maskCode(code)), zap.Error(err))
		} else {
			v.QRCodeURL = url
		}
	}

	if err := s.vouchers.Create(ctx, v); err != nil {
		zapLog.Error("failed to create voucher", zap.Error(err))
		return nil, errutil.Internal("Failed to create voucher", err)
	}
	return v, nil
}

// uniqueCode asks the sequence for a suffix until the full code is unused.
func (s *Service) uniqueCode(ctx context.Context, prefix string) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		suffix, err := s.seq.NextVoucherSuffix(ctx, prefix)
		if err != nil {
			return "", err
		}
		code := prefix + "-" + suffix

		var n int64
		if err := s.db.WithContext(ctx).Model(&Voucher{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique code for prefix %s after %d attempts", prefix, maxCodeAttempts)
}

// find returns nil unless code exists inside tenantID.
func (s *Service) find(ctx context.Context, tx *gorm.DB, code, tenantID string) (*Voucher, error) {
	return s.vouchers.WithTrx(tx).FindOne(ctx, nil,
		option.WithWhere("code = ? AND tenant_id = ?", normalizeCode(code), tenantID),
		option.WithPreload("User"),
	)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) ValidateVoucher(ctx context.Context, code, tenantID string) (*Validation, error) {
	v, err := s.find(ctx, nil, code, tenantID)
	if err != nil {
		logger(ctx, tenantID).Error("failed to look up voucher", zap.Error(err))
		return nil, errutil.Internal("Failed to validate voucher", err)
	}

	switch {
	case v == nil:
		return &Validation{Valid: false, Reason: invalidReason}, nil
	case v.Exhausted():
		return &Validation{Valid: false, Voucher: v, Reason: "Voucher has already been redeemed"}, nil
	case v.Expired(s.now()):
		return &Validation{Valid: false, Voucher: v, Reason: "Voucher has expired"}, nil
	}
	return &Validation{Valid: true, Voucher: v}, nil
}

// RedeemVoucher takes one redemption of code on behalf of actorID. The
// increment is conditional on the remaining redemptions, so concurrent
// redeems of a single-use voucher succeed once.
func (s *Service) RedeemVoucher(ctx context.Context, code, actorID, tenantID string) (*Voucher, error) {
	zapLog := logger(ctx, tenantID).With(zap.String("actor_id", actorID), zap.String("code", maskCode(normalizeCode(code))))

	ok, err := s.actors.BelongsTo(ctx, actorID, tenantID)
	if err != nil {
		zapLog.Error("failed to resolve actor", zap.Error(err))
		return nil, errutil.Internal("Failed to redeem voucher", err)
	}
	if !ok {
		vouchersRedeemed.WithLabelValues("forbidden").Inc()
		return nil, errutil.Forbidden("Actor is not allowed to redeem vouchers for this tenant", nil, errutil.WithReason(errutil.ReasonActorNotAllowed))
	}

	errNotFound := errutil.NotFound(invalidReason, nil, errutil.WithReason(errutil.ReasonVoucherNotFound))
	errExhausted := errutil.Conflict("Voucher has already been redeemed", nil, errutil.WithReason(errutil.ReasonVoucherExhausted))
	errExpired := errutil.BadRequest("Voucher has expired", nil, errutil.WithReason(errutil.ReasonVoucherExpired))

	now := s.now().UTC()
	var out *Voucher
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.find(ctx, tx, code, tenantID)
		if err != nil {
			return err
		}
		if v == nil {
			return errNotFound
		}
		if v.Expired(now) {
			return errExpired
		}

		res := tx.Model(&Voucher{}).
			Where("id = ? AND redemption_count < redemption_limit", v.ID).
			Update("redemption_count", gorm.Expr("redemption_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errExhausted
		}

		if err := tx.Model(&Voucher{}).
			Where("id = ? AND redemption_count >= redemption_limit", v.ID).
			Updates(map[string]interface{}{
				"is_redeemed": true,
				"redeemed_by": actorID,
				"redeemed_at": now,
			}).Error; err != nil {
			return err
		}

		out, err = s.find(ctx, tx, code, tenantID)
		return err
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			vouchersRedeemed.WithLabelValues(be.Reason).Inc()
			return nil, err
		}
		zapLog.Error("failed to redeem voucher", zap.Error(err))
		return nil, errutil.Internal("Failed to redeem voucher", err)
	}

	vouchersRedeemed.WithLabelValues("success").Inc()
	zapLog.Info("voucher redeemed", zap.Int("redemption_count", out.RedemptionCount))
	return out, nil
}

// tenantVouchers is the base query every listing starts from. End users are
// joined inside the same tenant only.
func (s *Service) tenantVouchers(ctx context.Context, tenantID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&Voucher{}).
		Joins("LEFT JOIN end_users ON end_users.id = vouchers.user_id AND end_users.tenant_id = vouchers.tenant_id").
		Where("vouchers.tenant_id = ?", tenantID)
}

func (s *Service) GetVouchersByPhone(ctx context.Context, phone, tenantID string) ([]*Voucher, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errutil.BadRequest("phone is required", nil, errutil.WithReason(errutil.ReasonInvalidRequest))
	}

	var out []*Voucher
	err := s.tenantVouchers(ctx, tenantID).
		Where("end_users.phone = ?", phone).
		Select("vouchers.*").
		Preload("User").
		Order("vouchers.created_at DESC").
		Find(&out).Error
	if err != nil {
		logger(ctx, tenantID).Error("failed to list vouchers by phone", zap.Error(err))
		return nil, errutil.Internal("Failed to list vouchers", err)
	}
	return out, nil
}

func (s *Service) GetVouchers(ctx context.Context, tenantID string, f VoucherFilter) (*VoucherList, error) {
	page := f.Page.Normalize()
	now := s.now().UTC()

	q := s.tenantVouchers(ctx, tenantID)
	if f.CampaignID != "" {
		q = q.Where("vouchers.campaign_id = ?", f.CampaignID)
	}
	switch f.Status {
	case StatusActive:
		q = q.Where("vouchers.redemption_count < vouchers.redemption_limit AND (vouchers.expires_at IS NULL OR vouchers.expires_at > ?)", now)
	case StatusRedeemed:
		q = q.Where("vouchers.redemption_count >= vouchers.redemption_limit")
	case StatusExpired:
		q = q.Where("vouchers.redemption_count < vouchers.redemption_limit AND vouchers.expires_at IS NOT NULL AND vouchers.expires_at <= ?", now)
	case "":
	default:
		return nil, errutil.BadRequest("unknown status filter", nil, errutil.WithReason(errutil.ReasonInvalidRequest))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + search + "%"
		q = q.Where("(UPPER(vouchers.code) LIKE UPPER(?) OR end_users.phone LIKE ?)", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		logger(ctx, tenantID).Error("failed to count vouchers", zap.Error(err))
		return nil, errutil.Internal("Failed to list vouchers", err)
	}

	var out []*Voucher
	err := q.Select("vouchers.*").
		Preload("User").
		Order("vouchers.created_at DESC").
		Order("vouchers.id DESC").
		Scopes(option.ApplyPage(page)).
		Find(&out).Error
	if err != nil {
		logger(ctx, tenantID).Error("failed to list vouchers", zap.Error(err))
		return nil, errutil.Internal("Failed to list vouchers", err)
	}

	return &VoucherList{Vouchers: out, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *Service) GetVoucherStats(ctx context.Context, tenantID string) (*Stats, error) {
	now := s.now().UTC()

	var row struct {
		Total    int64
		Redeemed int64
		Expired  int64
	}
	err := s.db.WithContext(ctx).
		Model(&Voucher{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN redemption_count >= redemption_limit THEN 1 ELSE 0 END), 0) AS redeemed,
			COALESCE(SUM(CASE WHEN redemption_count < redemption_limit AND expires_at IS NOT NULL AND expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired`, now).
		Where("tenant_id = ?", tenantID).
		Scan(&row).Error
	if err != nil {
		logger(ctx, tenantID).Error("failed to compute voucher stats", zap.Error(err))
		return nil, errutil.Internal("Failed to compute voucher stats", err)
	}

	out := &Stats{
		Total:    row.Total,
		Redeemed: row.Redeemed,
		Expired:  row.Expired,
		Active:   row.Total - row.Redeemed - row.Expired,
	}
	if row.Total > 0 {
		out.RedemptionRate = float64(row.Redeemed) / float64(row.Total)
	}
	return out, nil
}
