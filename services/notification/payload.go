package notification

import (
	"encoding/json"
	"time"

	"promowheel/pkg/taskname"

	"github.com/hibiken/asynq"
)

// PrizeNotification tells a winner what they won and how to claim it.
type PrizeNotification struct {
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id,omitempty"`
	Phone      string `json:"phone"`
	UserName   string `json:"user_name,omitempty"`
	PrizeName  string `json:"prize_name"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// DecisionPayload carries a manager's verdict on a social task.
type DecisionPayload struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Comment  string `json:"comment"`
}

func taskOptions(queue string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
}

func NewPrizeTask(p PrizeNotification, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationPrize, payload, taskOptions(queue)...), nil
}

func NewApprovalTask(p DecisionPayload, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationApproval, payload, taskOptions(queue)...), nil
}

func NewRejectionTask(p DecisionPayload, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationRejection, payload, taskOptions(queue)...), nil
}
