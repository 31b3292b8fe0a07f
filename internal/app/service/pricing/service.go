package pricing

import (
	"errors"
	"fmt"

	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/types"
)

var ErrUnknownPlan = errors.New("unknown plan")

// Service is the pricing authority: the only place a plan's amount, currency
// and duration may come from. Client-supplied amounts are advisory and are
// always re-derived here before being compared or persisted.
type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// PriceOf resolves a plan id to its server-held price point.
func (s *Service) PriceOf(planID string) (*types.Plan, error) {
	plan := s.cfg.GetPlanByID(planID)
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	return plan, nil
}

// Catalog returns the public plan list for checkout rendering.
func (s *Service) Catalog() []*types.Plan {
	return s.cfg.Plans
}

// TrialDays is the server-held trial length.
func (s *Service) TrialDays() int {
	if s.cfg.TrialDays <= 0 {
		return 7
	}
	return s.cfg.TrialDays
}
