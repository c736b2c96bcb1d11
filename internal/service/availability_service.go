package service

import (
	"context"
	"sort"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

type AvailabilityStore interface {
	RoomClasses(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error)
	RoomBookings(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error)
	UserEnrolledClasses(ctx context.Context, userID int64, from, to time.Time) ([]entities.TimelineEntry, error)
	UserRoomBookings(ctx context.Context, userID int64, from, to time.Time) ([]entities.TimelineEntry, error)
	ClassesByTrainer(ctx context.Context, trainerID int64, from, to time.Time) ([]entities.TimelineEntry, error)
}

// AvailabilityService merges both booking kinds into one timeline. Purely a
// projection; it carries no conflict logic.
type AvailabilityService struct {
	Store AvailabilityStore
}

func NewAvailabilityService(store AvailabilityStore) *AvailabilityService {
	return &AvailabilityService{Store: store}
}

// GetRoomAvailability returns the occupied slots of a room in [from, to),
// classes and direct bookings merged and sorted by start time.
func (s *AvailabilityService) GetRoomAvailability(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	if !from.Before(to) {
		return nil, apperrors.NewValidation("start date must be before end date")
	}

	classes, err := s.Store.RoomClasses(ctx, roomID, from, to)
	if err != nil {
		return nil, err
	}
	bookings, err := s.Store.RoomBookings(ctx, roomID, from, to)
	if err != nil {
		return nil, err
	}
	return mergeTimeline(classes, bookings), nil
}

// GetUserCalendar returns the user's own events: enrolled classes plus their
// direct room bookings; trainers also see the classes they teach.
func (s *AvailabilityService) GetUserCalendar(ctx context.Context, userID int64, from, to time.Time, role string) ([]entities.TimelineEntry, error) {
	if !from.Before(to) {
		return nil, apperrors.NewValidation("start date must be before end date")
	}

	var events []entities.TimelineEntry
	if role != db.RoleTrainer {
		enrolled, err := s.Store.UserEnrolledClasses(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		events = append(events, enrolled...)
	}

	bookings, err := s.Store.UserRoomBookings(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	events = append(events, bookings...)

	if role == db.RoleTrainer || role == db.RoleAdmin {
		taught, err := s.Store.ClassesByTrainer(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		events = append(events, taught...)
	}

	return mergeTimeline(events), nil
}

func mergeTimeline(groups ...[]entities.TimelineEntry) []entities.TimelineEntry {
	var merged []entities.TimelineEntry
	for _, g := range groups {
		merged = append(merged, g...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})
	return merged
}
