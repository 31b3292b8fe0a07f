package models

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
	"gorm.io/datatypes"
)

// MembershipLog is a before/after audit row written on every projected
// profile change.
type MembershipLog struct {
	ID        string                        `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string                        `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Reason    types.MembershipChangeReason  `gorm:"column:reason;type:varchar(32);not null" json:"reason"`
	Before    datatypes.JSONType[*Profile]  `gorm:"column:before;type:jsonb" json:"before"`
	After     datatypes.JSONType[*Profile]  `gorm:"column:after;type:jsonb" json:"after"`
	Extra     datatypes.JSONMap             `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time                     `json:"created_at"`
}

func (MembershipLog) TableName() string { return "membership_log" }
