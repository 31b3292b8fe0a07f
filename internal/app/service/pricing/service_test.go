package pricing

import (
	"errors"
	"testing"

	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		TrialDays: 7,
		Plans: []*types.Plan{
			{ID: "pro_monthly", Name: "Pro Monthly", Amount: 49900, Currency: "INR", DurationDays: 30},
			{ID: "pro_yearly", Name: "Pro Yearly", Amount: 499900, Currency: "INR", DurationDays: 365},
		},
	}
}

func TestPriceOf(t *testing.T) {
	s := NewService(testConfig())

	plan, err := s.PriceOf("pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(49900), plan.Amount)
	assert.Equal(t, "INR", plan.Currency)
	assert.Equal(t, 30, plan.DurationDays)

	_, err = s.PriceOf("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlan))
}

func TestCatalogAndTrialDays(t *testing.T) {
	s := NewService(testConfig())
	assert.Len(t, s.Catalog(), 2)
	assert.Equal(t, 7, s.TrialDays())

	empty := NewService(&config.Config{})
	assert.Equal(t, 7, empty.TrialDays())
}
