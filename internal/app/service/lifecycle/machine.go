package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/types"

	"github.com/samber/lo"
)

var ErrUnrecognizedEvent = errors.New("unrecognized lifecycle event")

// defaultTrialDays covers the degenerate case of a trial subscription row
// persisted without its end time; checkout always sets TrialEndsAt.
const defaultTrialDays = 7

// Decision is the state machine's output: the next subscription status, the
// membership projection (nil = membership untouched), and whether the event
// carries a charge to record.
type Decision struct {
	SubStatus     types.SubscriptionStatus
	Change        membership.Change
	RecordPayment bool
	// Ignored marks a recognized event that is intentionally not applied
	// (trial replay guard). The delivery is still acknowledged.
	Ignored bool
	Note    string
}

// Decide computes the transition for a verified provider event. Pure: no I/O,
// no clock reads. Both webhook entry points and the synchronous poll path
// funnel through here, so transition rules exist exactly once.
func Decide(sub *models.Subscription, profile *models.Profile, plan *types.Plan, ev Event, now time.Time) (*Decision, error) {
	if sub == nil || profile == nil || plan == nil {
		return nil, fmt.Errorf("decide: nil input")
	}
	duration := time.Duration(plan.DurationDays) * 24 * time.Hour

	switch ev.Kind {
	case KindAuthenticated, KindActivated:
		if sub.IsTrial {
			if profile.TrialStatus != types.TrialStatusAvailable {
				// Trial already consumed through another path; replaying the
				// activation must not grant it again.
				return &Decision{
					SubStatus: sub.Status,
					Ignored:   true,
					Note:      fmt.Sprintf("trial not available (status=%s), event not applied", profile.TrialStatus),
				}, nil
			}
			trialEnds := now.Add(defaultTrialDays * 24 * time.Hour)
			if sub.TrialEndsAt != nil {
				trialEnds = *sub.TrialEndsAt
			}
			return &Decision{
				SubStatus: statusFor(ev.Kind),
				Change: membership.Change{
					Membership: &membership.MembershipChange{
						Status:    types.MembershipStatusPro,
						PlanID:    lo.ToPtr(plan.ID),
						ExpiresAt: &trialEnds,
					},
					Trial: &membership.TrialChange{
						Status:    types.TrialStatusActive,
						StartedAt: &now,
						EndsAt:    &trialEnds,
					},
				},
			}, nil
		}
		// Non-trial activation upgrades unconditionally; redelivery recomputes
		// the same expiry from now, which is accepted imprecision.
		expires := now.Add(duration)
		return &Decision{
			SubStatus: statusFor(ev.Kind),
			Change: membership.Change{
				Membership: &membership.MembershipChange{
					Status:    types.MembershipStatusPro,
					PlanID:    lo.ToPtr(plan.ID),
					ExpiresAt: &expires,
				},
			},
		}, nil

	case KindCharged:
		// Renewal extends from whichever is later: now, or the previous period
		// end. Delayed or redelivered webhooks then never shorten the period.
		base := now
		if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(base) {
			base = *sub.CurrentPeriodEnd
		}
		newEnd := base.Add(duration)
		if ev.PeriodEnd != nil && ev.PeriodEnd.After(newEnd) {
			// Provider-reported cycle end is authoritative when later still.
			newEnd = *ev.PeriodEnd
		}
		d := &Decision{
			SubStatus:     types.SubscriptionStatusActive,
			RecordPayment: ev.Payment != nil,
			Change: membership.Change{
				Membership: &membership.MembershipChange{
					Status:    types.MembershipStatusPro,
					PlanID:    lo.ToPtr(plan.ID),
					ExpiresAt: &newEnd,
				},
			},
		}
		if profile.TrialStatus == types.TrialStatusActive {
			// First paid cycle converts the trial.
			d.Change.Trial = &membership.TrialChange{Status: types.TrialStatusUsed}
		}
		return d, nil

	case KindCancelled, KindCompleted:
		d := &Decision{SubStatus: statusFor(ev.Kind)}
		if profile.TrialStatus == types.TrialStatusActive {
			// The trial outcome is final either way; soft-cancel keeps access
			// until the recorded expiry.
			d.Change.Trial = &membership.TrialChange{Status: types.TrialStatusCancelled}
		}
		if ev.Immediate {
			d.Change.Membership = &membership.MembershipChange{Status: types.MembershipStatusFree}
			return d, nil
		}
		// Access is left to expire naturally at membershipExpires; the
		// expiry-check-on-read downgrades lapsed reads.
		d.Note = "membership left to expire at period end"
		return d, nil

	case KindSuspended, KindExpired:
		d := &Decision{
			SubStatus: statusFor(ev.Kind),
			Change: membership.Change{
				Membership: &membership.MembershipChange{Status: types.MembershipStatusFree},
			},
		}
		if profile.TrialStatus == types.TrialStatusActive {
			d.Change.Trial = &membership.TrialChange{Status: types.TrialStatusCancelled}
		}
		return d, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnrecognizedEvent, ev.Kind)
}

// KindForStatus maps a provider-reported subscription status (poll path) to
// the event kind that produces it, so polling and webhooks share one rule set.
func KindForStatus(status types.SubscriptionStatus) (EventKind, bool) {
	switch status {
	case types.SubscriptionStatusAuthenticated:
		return KindAuthenticated, true
	case types.SubscriptionStatusActive:
		return KindActivated, true
	case types.SubscriptionStatusCancelled:
		return KindCancelled, true
	case types.SubscriptionStatusSuspended:
		return KindSuspended, true
	case types.SubscriptionStatusExpired:
		return KindExpired, true
	case types.SubscriptionStatusCompleted:
		return KindCompleted, true
	}
	return "", false
}
