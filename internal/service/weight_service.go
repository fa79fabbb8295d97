package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ironlog/backend/internal/clock"
	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/repository"
)

// --- Error Definitions ---
var (
	ErrWeightNotFound   = errors.New("weight entry not found")
	ErrWeightValidation = errors.New("weight validation failed")
)

// Weight history bounds.
const (
	DefaultWeightDays  = 365
	MaxWeightDays      = 365
	DefaultWeightLimit = 50
	MaxWeightLimit     = 100
)

// WeightPage is one page of weight entries plus the total count in range.
type WeightPage struct {
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Items []domain.WeightEntry `json:"items"`
}

// --- Service Interface ---
type WeightService interface {
	GetTodayWeight(ctx context.Context, userSub string) (*domain.WeightEntry, error)
	// RecordWeight upserts today's weight. If today has no entry yet and
	// yesterday does, yesterday's value is first copied in as a placeholder
	// so streak views have no gap, then overwritten with the submitted value.
	RecordWeight(ctx context.Context, userSub string, weight float64) (*domain.WeightEntry, error)
	GetHistory(ctx context.Context, userSub string, days, page, limit int) (*WeightPage, error)
	DeleteWeight(ctx context.Context, userSub string, date time.Time) error
}

// --- Service Implementation ---

// weightService implements the WeightService interface.
type weightService struct {
	weightRepo repository.WeightRepository
	clk        clock.Clock
}

// NewWeightService creates a new instance of weightService.
func NewWeightService(weightRepo repository.WeightRepository, clk clock.Clock) WeightService {
	return &weightService{
		weightRepo: weightRepo,
		clk:        clk,
	}
}

// GetTodayWeight returns today's entry, or ErrWeightNotFound.
func (s *weightService) GetTodayWeight(ctx context.Context, userSub string) (*domain.WeightEntry, error) {
	today := clock.UTCMidnight(s.clk.Now())
	entry, err := s.weightRepo.FindByDay(ctx, userSub, today)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWeightNotFound
		}
		return nil, err
	}
	return entry, nil
}

// RecordWeight validates and upserts today's weight entry.
func (s *weightService) RecordWeight(ctx context.Context, userSub string, weight float64) (*domain.WeightEntry, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("%w: weight must be a positive number", ErrWeightValidation)
	}

	now := s.clk.Now()
	today := clock.UTCMidnight(now)

	// Gap fill: carry yesterday's weight forward before the first write of
	// the day, so a missed day still shows the last known value.
	if _, err := s.weightRepo.FindByDay(ctx, userSub, today); errors.Is(err, repository.ErrNotFound) {
		yesterday := today.AddDate(0, 0, -1)
		if prev, err := s.weightRepo.FindByDay(ctx, userSub, yesterday); err == nil {
			_, err = s.weightRepo.Insert(ctx, &domain.WeightEntry{
				UserSub:   userSub,
				Date:      today,
				Weight:    prev.Weight,
				CreatedAt: now,
				UpdatedAt: now,
			})
			// A concurrent write already created today's entry; the upsert
			// below still applies the submitted value.
			if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
				return nil, err
			}
		}
	} else if err != nil {
		return nil, err
	}

	return s.weightRepo.Upsert(ctx, userSub, today, weight, now)
}

// GetHistory returns one page of the last N days of entries, newest first.
func (s *weightService) GetHistory(ctx context.Context, userSub string, days, page, limit int) (*WeightPage, error) {
	if days <= 0 {
		days = DefaultWeightDays
	}
	if days > MaxWeightDays {
		days = MaxWeightDays
	}
	page, limit = clampPage(page, limit, DefaultWeightLimit, MaxWeightLimit)

	today := clock.UTCMidnight(s.clk.Now())
	from := today.AddDate(0, 0, -days)

	items, total, err := s.weightRepo.HistoryRange(ctx, userSub, from, today, page, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.WeightEntry{}
	}
	return &WeightPage{Total: total, Page: page, Limit: limit, Items: items}, nil
}

// DeleteWeight removes the entry for the given calendar date.
func (s *weightService) DeleteWeight(ctx context.Context, userSub string, date time.Time) error {
	day := clock.UTCMidnight(date)
	err := s.weightRepo.DeleteByDay(ctx, userSub, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWeightNotFound
		}
		return err
	}
	return nil
}
