package service

import (
	"context"
	"errors"

	"ironlog/backend/internal/clock"
	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/repository"
)

// --- Error Definitions ---
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
)

// --- Service Interface ---
type ProfileService interface {
	GetProfile(ctx context.Context, userSub string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, userSub string, profile domain.ProfileUpdate) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userSub string, update domain.ProfileUpdate) (*domain.Profile, error)
	// RecordLogin notes today as a login day, at most once per day.
	RecordLogin(ctx context.Context, userSub string) error
}

// --- Service Implementation ---

// profileService implements the ProfileService interface.
type profileService struct {
	profileRepo repository.ProfileRepository
	clk         clock.Clock
}

// NewProfileService creates a new instance of profileService.
func NewProfileService(profileRepo repository.ProfileRepository, clk clock.Clock) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		clk:         clk,
	}
}

// GetProfile returns the caller's profile, or ErrProfileNotFound.
func (s *profileService) GetProfile(ctx context.Context, userSub string) (*domain.Profile, error) {
	profile, err := s.profileRepo.GetByUserSub(ctx, userSub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// CreateProfile creates the caller's profile from whitelisted fields.
func (s *profileService) CreateProfile(ctx context.Context, userSub string, fields domain.ProfileUpdate) (*domain.Profile, error) {
	profile := &domain.Profile{
		UserSub:   userSub,
		CreatedAt: s.clk.Now(),
	}
	applyProfileFields(profile, fields)

	id, err := s.profileRepo.Create(ctx, profile)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrProfileAlreadyExists
		}
		return nil, err
	}
	profile.ID = id
	return profile, nil
}

// UpdateProfile partially updates whitelisted fields.
func (s *profileService) UpdateProfile(ctx context.Context, userSub string, update domain.ProfileUpdate) (*domain.Profile, error) {
	profile, err := s.profileRepo.Update(ctx, userSub, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// RecordLogin records today's calendar day into loginDates.
func (s *profileService) RecordLogin(ctx context.Context, userSub string) error {
	day := clock.UTCMidnight(s.clk.Now())
	err := s.profileRepo.AddLoginDate(ctx, userSub, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	return nil
}

func applyProfileFields(profile *domain.Profile, fields domain.ProfileUpdate) {
	if fields.Name != nil {
		profile.Name = *fields.Name
	}
	if fields.Weight != nil {
		profile.Weight = *fields.Weight
	}
	if fields.Gender != nil {
		profile.Gender = *fields.Gender
	}
	if fields.Goal != nil {
		profile.Goal = *fields.Goal
	}
	if fields.Age != nil {
		profile.Age = *fields.Age
	}
	if fields.Height != nil {
		profile.Height = *fields.Height
	}
	if fields.ProfileCompleted != nil {
		profile.ProfileCompleted = *fields.ProfileCompleted
	}
}
