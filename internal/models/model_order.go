package models

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
)

// Order is one one-time-payment attempt. Used flips false→true exactly once,
// through a conditional UPDATE at the storage layer; a second verification
// attempt with the same order id must observe used=true and be rejected.
type Order struct {
	OrderID   string                `gorm:"column:order_id;type:varchar(128);primary_key" json:"order_id"`
	UserID    string                `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Provider  types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	PlanID    string                `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Amount    int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency  string                `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Used      bool                  `gorm:"column:used;not null;default:false" json:"used"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (Order) TableName() string {
	return "order"
}
