package service

import (
	"context"
	"fmt"
	"log"
	"time"
)

type SweepStore interface {
	ActiveBookingIDsPastEnd(ctx context.Context, now time.Time) ([]int64, error)
	MarkBookingsFinished(ctx context.Context, ids []int64) error
	ActiveClassIDsPastEnd(ctx context.Context, now time.Time) ([]int64, error)
	MarkClassesCompleted(ctx context.Context, ids []int64) error
}

// JobService runs the periodic housekeeping: Active bookings and classes
// whose end time passed move to their terminal success state.
type JobService struct {
	Store SweepStore
	Clock Clock
}

func NewJobService(store SweepStore, clock Clock) *JobService {
	return &JobService{Store: store, Clock: clock}
}

func (s *JobService) SweepFinished(ctx context.Context) error {
	now := s.Clock.Now()

	bookingIDs, err := s.Store.ActiveBookingIDsPastEnd(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep: failed to find bookings past end time: %w", err)
	}
	if len(bookingIDs) > 0 {
		if err := s.Store.MarkBookingsFinished(ctx, bookingIDs); err != nil {
			return fmt.Errorf("sweep: failed to finish bookings: %w", err)
		}
		log.Printf("sweep: marked %d room bookings as finished", len(bookingIDs))
	}

	classIDs, err := s.Store.ActiveClassIDsPastEnd(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep: failed to find classes past end time: %w", err)
	}
	if len(classIDs) > 0 {
		if err := s.Store.MarkClassesCompleted(ctx, classIDs); err != nil {
			return fmt.Errorf("sweep: failed to complete classes: %w", err)
		}
		log.Printf("sweep: marked %d classes as completed", len(classIDs))
	}
	return nil
}
