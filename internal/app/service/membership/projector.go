package membership

import (
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/types"
)

var (
	ErrTrialBackward = errors.New("trial status cannot move backward")
	ErrInvalidChange = errors.New("invalid membership change")
)

// MembershipChange writes status, plan and expiry together; a pro status
// without an expiry is rejected so the two can never drift apart.
type MembershipChange struct {
	Status    types.MembershipStatus
	PlanID    *string
	ExpiresAt *time.Time
}

type TrialChange struct {
	Status    types.TrialStatus
	StartedAt *time.Time
	EndsAt    *time.Time
}

// Change is the state machine's projection output. Nil sub-fields leave the
// corresponding profile section untouched.
type Change struct {
	Membership *MembershipChange
	Trial      *TrialChange
}

func (c Change) Empty() bool { return c.Membership == nil && c.Trial == nil }

// trialRank orders the forward-only trial progression. The two terminal
// states share a rank: once a trial ends, its outcome is final.
var trialRank = map[types.TrialStatus]int{
	types.TrialStatusAvailable: 0,
	types.TrialStatusActive:    1,
	types.TrialStatusUsed:      2,
	types.TrialStatusCancelled: 2,
}

// Project applies a change to a profile and returns the new profile. Pure:
// the input profile is not mutated. This is the only code path that may
// compute a profile's membership fields.
func Project(p *models.Profile, ch Change) (*models.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrInvalidChange)
	}
	next := *p

	if m := ch.Membership; m != nil {
		switch m.Status {
		case types.MembershipStatusPro:
			if m.ExpiresAt == nil {
				return nil, fmt.Errorf("%w: pro status requires an expiry", ErrInvalidChange)
			}
			next.MembershipStatus = types.MembershipStatusPro
			next.MembershipPlan = m.PlanID
			next.MembershipExpires = m.ExpiresAt
		case types.MembershipStatusFree:
			next.MembershipStatus = types.MembershipStatusFree
			next.MembershipPlan = nil
			next.MembershipExpires = nil
		default:
			return nil, fmt.Errorf("%w: unknown membership status %q", ErrInvalidChange, m.Status)
		}
	}

	if t := ch.Trial; t != nil {
		fromRank, ok := trialRank[p.TrialStatus]
		if !ok {
			return nil, fmt.Errorf("%w: unknown trial status %q", ErrInvalidChange, p.TrialStatus)
		}
		toRank, ok := trialRank[t.Status]
		if !ok {
			return nil, fmt.Errorf("%w: unknown trial status %q", ErrInvalidChange, t.Status)
		}
		if toRank < fromRank {
			return nil, fmt.Errorf("%w: %s -> %s", ErrTrialBackward, p.TrialStatus, t.Status)
		}
		// used and cancelled are both final; never rewrite one as the other.
		if fromRank == toRank && p.TrialStatus != t.Status && fromRank == trialRank[types.TrialStatusUsed] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrTrialBackward, p.TrialStatus, t.Status)
		}
		next.TrialStatus = t.Status
		if t.StartedAt != nil {
			next.TrialStartedAt = t.StartedAt
		}
		if t.EndsAt != nil {
			next.TrialEndsAt = t.EndsAt
		}
	}

	return &next, nil
}
