package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/tool"
	"github.com/slotbook/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service persists profile projections. Mutations flow exclusively through
// the lifecycle state machine; handlers only read.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProfile returns the user's profile, creating a fresh free-tier
// row with the trial still available on first contact.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	fresh := &models.Profile{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		MembershipStatus: types.MembershipStatusFree,
		TrialStatus:      types.TrialStatusAvailable,
	}
	if err := s.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return fresh, nil
}

// ApplyChange projects ch onto the stored profile inside tx and writes an
// audit row. Callers outside the lifecycle package must not invoke this.
func (s *Service) ApplyChange(ctx context.Context, tx *gorm.DB, profile *models.Profile, ch Change, reason types.MembershipChangeReason) (*models.Profile, error) {
	if ch.Empty() {
		return profile, nil
	}
	next, err := Project(profile, ch)
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Save(next).Error; err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	// Audit log is best-effort and off the request path.
	before := *profile
	after := *next
	go func() {
		log := &models.MembershipLog{
			ID:     tool.GenerateUUIDV7(),
			UserID: after.UserID,
			Reason: reason,
			Before: datatypes.NewJSONType(&before),
			After:  datatypes.NewJSONType(&after),
			Extra:  datatypes.JSONMap{},
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save membership log: %v", err)
		}
	}()

	return next, nil
}
