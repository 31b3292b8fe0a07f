package models

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
	"gorm.io/datatypes"
)

// Payment is an append-only receipt of a completed charge. Never mutated.
type Payment struct {
	ID            string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID        string                `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Provider      types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:unique_provider_payment_id,priority:1" json:"provider"`
	PaymentID     string                `gorm:"column:payment_id;type:varchar(128);not null;uniqueIndex:unique_provider_payment_id,priority:2" json:"payment_id"`
	PlanID        string                `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Amount        int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency      string                `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status        string                `gorm:"column:status;type:varchar(32);not null" json:"status"`
	PaymentMethod string                `gorm:"column:payment_method;type:varchar(32)" json:"payment_method"`
	// Meta holds the opaque provider payload for audits.
	Meta      datatypes.JSON `gorm:"column:meta;type:jsonb;default:'{}'" json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Payment) TableName() string {
	return "payment"
}
