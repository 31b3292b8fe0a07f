package models

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
)

// Profile is the per-user membership projection. It is mutated only by the
// membership projector; every other component treats it as read-only.
type Profile struct {
	ID               string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID           string                 `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	MembershipStatus types.MembershipStatus `gorm:"column:membership_status;type:varchar(16);not null;default:'free'" json:"membership_status"`
	MembershipPlan   *string                `gorm:"column:membership_plan;type:varchar(64);default:null" json:"membership_plan"`
	// MembershipExpires is set whenever MembershipStatus is pro. There is no
	// background sweep; readers must go through EffectiveStatus.
	MembershipExpires *time.Time        `gorm:"column:membership_expires;default:null" json:"membership_expires"`
	TrialStatus       types.TrialStatus `gorm:"column:trial_status;type:varchar(16);not null;default:'available'" json:"trial_status"`
	TrialStartedAt    *time.Time        `gorm:"column:trial_started_at;default:null" json:"trial_started_at"`
	TrialEndsAt       *time.Time        `gorm:"column:trial_ends_at;default:null" json:"trial_ends_at"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profile"
}

// EffectiveStatus recomputes access at read time. A stored "pro" whose expiry
// has lapsed without a terminal webhook reads as free here.
func (p *Profile) EffectiveStatus(now time.Time) types.MembershipStatus {
	if p == nil || p.MembershipStatus != types.MembershipStatusPro {
		return types.MembershipStatusFree
	}
	if p.MembershipExpires == nil || !p.MembershipExpires.After(now) {
		return types.MembershipStatusFree
	}
	return types.MembershipStatusPro
}

func (p *Profile) Snapshot(now time.Time) *types.MembershipSnapshot {
	if p == nil {
		return &types.MembershipSnapshot{Status: types.MembershipStatusFree, Trial: types.TrialStatusAvailable}
	}
	return &types.MembershipSnapshot{
		Status:    p.EffectiveStatus(now),
		Plan:      p.MembershipPlan,
		ExpiresAt: p.MembershipExpires,
		Trial:     p.TrialStatus,
		TrialEnds: p.TrialEndsAt,
	}
}
