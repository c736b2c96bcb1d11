package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

type stubAvailabilityStore struct {
	roomClasses  []entities.TimelineEntry
	roomBookings []entities.TimelineEntry
	enrolled     []entities.TimelineEntry
	own          []entities.TimelineEntry
	taught       []entities.TimelineEntry

	enrolledCalled bool
	taughtCalled   bool
}

func (s *stubAvailabilityStore) RoomClasses(context.Context, int64, time.Time, time.Time) ([]entities.TimelineEntry, error) {
	return s.roomClasses, nil
}

func (s *stubAvailabilityStore) RoomBookings(context.Context, int64, time.Time, time.Time) ([]entities.TimelineEntry, error) {
	return s.roomBookings, nil
}

func (s *stubAvailabilityStore) UserEnrolledClasses(context.Context, int64, time.Time, time.Time) ([]entities.TimelineEntry, error) {
	s.enrolledCalled = true
	return s.enrolled, nil
}

func (s *stubAvailabilityStore) UserRoomBookings(context.Context, int64, time.Time, time.Time) ([]entities.TimelineEntry, error) {
	return s.own, nil
}

func (s *stubAvailabilityStore) ClassesByTrainer(context.Context, int64, time.Time, time.Time) ([]entities.TimelineEntry, error) {
	s.taughtCalled = true
	return s.taught, nil
}

func day(hour int) time.Time {
	return time.Date(2026, 8, 28, hour, 0, 0, 0, time.UTC)
}

func TestGetRoomAvailability_MergesAndSorts(t *testing.T) {
	store := &stubAvailabilityStore{
		roomClasses: []entities.TimelineEntry{
			{ID: 1, Kind: entities.TimelineKindClass, Title: "Yoga", StartTime: day(18), EndTime: day(19)},
		},
		roomBookings: []entities.TimelineEntry{
			{ID: 2, Kind: entities.TimelineKindRoomBooking, Title: "Badminton", StartTime: day(10), EndTime: day(11)},
			{ID: 3, Kind: entities.TimelineKindRoomBooking, Title: "Squash", StartTime: day(14), EndTime: day(15)},
		},
	}
	svc := NewAvailabilityService(store)

	entries, err := svc.GetRoomAvailability(context.Background(), 1, day(0), day(24))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestGetRoomAvailability_InvalidWindow(t *testing.T) {
	svc := NewAvailabilityService(&stubAvailabilityStore{})

	_, err := svc.GetRoomAvailability(context.Background(), 1, day(24), day(0))
	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestGetUserCalendar_RegularUser(t *testing.T) {
	store := &stubAvailabilityStore{
		enrolled: []entities.TimelineEntry{{ID: 1, StartTime: day(18)}},
		own:      []entities.TimelineEntry{{ID: 2, StartTime: day(10)}},
		taught:   []entities.TimelineEntry{{ID: 3, StartTime: day(8)}},
	}
	svc := NewAvailabilityService(store)

	events, err := svc.GetUserCalendar(context.Background(), 10, day(0), day(24), db.RoleRegular)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].ID)
	assert.Equal(t, int64(1), events[1].ID)
	assert.False(t, store.taughtCalled)
}

func TestGetUserCalendar_TrainerSeesTaughtClasses(t *testing.T) {
	store := &stubAvailabilityStore{
		own:    []entities.TimelineEntry{{ID: 2, StartTime: day(10)}},
		taught: []entities.TimelineEntry{{ID: 3, StartTime: day(8)}},
	}
	svc := NewAvailabilityService(store)

	events, err := svc.GetUserCalendar(context.Background(), 20, day(0), day(24), db.RoleTrainer)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].ID)
	assert.False(t, store.enrolledCalled)
}
