package models

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
	"gorm.io/datatypes"
)

// Subscription mirrors one provider-side agreement. ID is the provider-issued
// identifier. Status is only ever written by the lifecycle state machine;
// rows are never deleted, only transitioned to a terminal status.
type Subscription struct {
	ID       string                   `gorm:"column:id;type:varchar(128);primary_key" json:"id"`
	UserID   string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Provider types.PaymentProvider    `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	Kind     types.SubscriptionKind   `gorm:"column:kind;type:varchar(32);not null;default:'recurring'" json:"kind"`
	PlanID   string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	PlanName string                   `gorm:"column:plan_name;type:varchar(128)" json:"plan_name"`
	Status   types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	IsTrial  bool                     `gorm:"column:is_trial;not null;default:false" json:"is_trial"`
	// TrialEndsAt doubles as the provider-side deferred start_time when
	// IsTrial is set: the first charge happens only after the trial ends.
	TrialEndsAt        *time.Time     `gorm:"column:trial_ends_at;default:null" json:"trial_ends_at"`
	CurrentPeriodStart *time.Time     `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time     `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	Amount             int64          `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency           string         `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Extra              datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

func (s *Subscription) ActiveLike() bool {
	if s == nil {
		return false
	}
	return s.Status == types.SubscriptionStatusAuthenticated || s.Status == types.SubscriptionStatusActive
}
