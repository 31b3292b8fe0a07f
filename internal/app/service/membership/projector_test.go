package membership

import (
	"errors"
	"testing"
	"time"

	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/types"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshProfile() *models.Profile {
	return &models.Profile{
		ID:               "p1",
		UserID:           "u1",
		MembershipStatus: types.MembershipStatusFree,
		TrialStatus:      types.TrialStatusAvailable,
	}
}

func TestProject_UpgradeWritesStatusAndExpiryTogether(t *testing.T) {
	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)

	next, err := Project(freshProfile(), Change{
		Membership: &MembershipChange{
			Status:    types.MembershipStatusPro,
			PlanID:    lo.ToPtr("pro_monthly"),
			ExpiresAt: &expires,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.MembershipStatusPro, next.MembershipStatus)
	require.NotNil(t, next.MembershipExpires)
	assert.Equal(t, expires, *next.MembershipExpires)
	assert.Equal(t, "pro_monthly", *next.MembershipPlan)

	// pro without expiry must be rejected
	_, err = Project(freshProfile(), Change{
		Membership: &MembershipChange{Status: types.MembershipStatusPro, PlanID: lo.ToPtr("pro_monthly")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidChange))
}

func TestProject_DowngradeClearsPlanAndExpiry(t *testing.T) {
	now := time.Now()
	p := freshProfile()
	p.MembershipStatus = types.MembershipStatusPro
	p.MembershipPlan = lo.ToPtr("pro_monthly")
	p.MembershipExpires = lo.ToPtr(now.Add(24 * time.Hour))

	next, err := Project(p, Change{Membership: &MembershipChange{Status: types.MembershipStatusFree}})
	require.NoError(t, err)
	assert.Equal(t, types.MembershipStatusFree, next.MembershipStatus)
	assert.Nil(t, next.MembershipPlan)
	assert.Nil(t, next.MembershipExpires)

	// input profile untouched
	assert.Equal(t, types.MembershipStatusPro, p.MembershipStatus)
}

func TestProject_TrialForwardOnly(t *testing.T) {
	now := time.Now()
	ends := now.Add(7 * 24 * time.Hour)

	p := freshProfile()
	next, err := Project(p, Change{
		Trial: &TrialChange{Status: types.TrialStatusActive, StartedAt: &now, EndsAt: &ends},
	})
	require.NoError(t, err)
	assert.Equal(t, types.TrialStatusActive, next.TrialStatus)
	assert.Equal(t, ends, *next.TrialEndsAt)

	// active → used is allowed
	next2, err := Project(next, Change{Trial: &TrialChange{Status: types.TrialStatusUsed}})
	require.NoError(t, err)
	assert.Equal(t, types.TrialStatusUsed, next2.TrialStatus)

	// used → active must fail
	_, err = Project(next2, Change{Trial: &TrialChange{Status: types.TrialStatusActive}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrialBackward))

	// used → available must fail
	_, err = Project(next2, Change{Trial: &TrialChange{Status: types.TrialStatusAvailable}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrialBackward))

	// used → cancelled must fail: both are final outcomes
	_, err = Project(next2, Change{Trial: &TrialChange{Status: types.TrialStatusCancelled}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrialBackward))
}

func TestProject_SameStatusIsIdempotent(t *testing.T) {
	p := freshProfile()
	p.TrialStatus = types.TrialStatusActive

	next, err := Project(p, Change{Trial: &TrialChange{Status: types.TrialStatusActive}})
	require.NoError(t, err)
	assert.Equal(t, types.TrialStatusActive, next.TrialStatus)
}

func TestProject_EmptyChange(t *testing.T) {
	p := freshProfile()
	next, err := Project(p, Change{})
	require.NoError(t, err)
	assert.Equal(t, *p, *next)
}
