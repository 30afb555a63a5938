package verification

import (
	"time"

	"promowheel/pkg/db/pagination"
	"promowheel/services/campaign"

	"gorm.io/datatypes"
)

type CompletionStatus string

const (
	StatusPending  CompletionStatus = "PENDING"
	StatusVerified CompletionStatus = "VERIFIED"
	StatusRejected CompletionStatus = "REJECTED"
	StatusFailed   CompletionStatus = "FAILED"
)

func (s CompletionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// SocialTaskCompletion is a customer's claim that a social task was done.
// It leaves PENDING exactly once.
type SocialTaskCompletion struct {
	ID                  string           `gorm:"column:id;primaryKey" json:"id"`
	TaskID              string           `gorm:"column:task_id;index;not null" json:"taskId"`
	UserID              string           `gorm:"column:user_id;index;not null" json:"userId"`
	Status              CompletionStatus `gorm:"column:status;index;not null;default:PENDING" json:"status"`
	SubmittedAt         time.Time        `gorm:"column:submitted_at" json:"submittedAt"`
	VerifiedBy          *string          `gorm:"column:verified_by" json:"verifiedBy,omitempty"`
	VerificationComment string           `gorm:"column:verification_comment" json:"verificationComment,omitempty"`
	VerifiedAt          *time.Time       `gorm:"column:verified_at" json:"verifiedAt,omitempty"`
	SpinsAwarded        int              `gorm:"column:spins_awarded;not null;default:0" json:"spinsAwarded"`

	Task *campaign.SocialMediaTask `gorm:"foreignKey:TaskID;references:ID" json:"-"`
}

type AuditAction string

const (
	ActionApprove AuditAction = "APPROVE"
	ActionReject  AuditAction = "REJECT"
)

// ManagerAuditLog is append-only.
type ManagerAuditLog struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	TenantID     string         `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	ManagerID    string         `gorm:"column:manager_id;index;not null" json:"managerId"`
	CompletionID string         `gorm:"column:completion_id;index;not null" json:"completionId"`
	UserID       string         `gorm:"column:user_id;not null" json:"userId"`
	Action       AuditAction    `gorm:"column:action;not null" json:"action"`
	SpinsGranted int            `gorm:"column:spins_granted;not null;default:0" json:"spinsGranted"`
	Comment      string         `gorm:"column:comment" json:"comment"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"createdAt"`
}

// Customer is the only customer data a manager sees.
type Customer struct {
	ID         string `json:"id"`
	PhoneLast4 string `json:"phoneLast4"`
}

type Task struct {
	ID          string            `json:"id"`
	TaskID      string            `json:"taskId"`
	CampaignID  string            `json:"campaignId"`
	Type        campaign.TaskType `json:"type"`
	TargetURL   string            `json:"targetUrl"`
	SpinsReward int               `json:"spinsReward"`
	Status      CompletionStatus  `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Customer    Customer          `json:"customer"`
}

type TaskDetail struct {
	Task
	VerifiedBy          *string    `json:"verifiedBy,omitempty"`
	VerificationComment string     `json:"verificationComment,omitempty"`
	VerifiedAt          *time.Time `json:"verifiedAt,omitempty"`
	SpinsAwarded        int        `json:"spinsAwarded"`
}

// TaskFilter selects completions by status. An empty status means PENDING;
// "ALL" disables the filter.
type TaskFilter struct {
	Status string `form:"status"`
	pagination.Page
}

type TaskList struct {
	Tasks []*Task `json:"tasks"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

type Decision struct {
	Success           bool `json:"success"`
	BonusSpinsGranted int  `json:"bonusSpinsGranted"`
}
