package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymslots/internal/db"
	apperrors "gymslots/internal/errors"
)

func newBookingFixture(t *testing.T) (*BookingService, *memStore, *recordingScheduler, *fakeClock) {
	t.Helper()
	store := newMemStore()
	store.addRoom(db.Room{ID: 1, Name: "Studio A", Capacity: 20})
	store.addUser(db.User{ID: 10, Username: "Anna Kowalska", Email: "anna@example.com", Role: db.RoleRegular})

	clock := newFakeClock(time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC))
	scheduler := newRecordingScheduler()
	return NewBookingService(store, scheduler, clock), store, scheduler, clock
}

func TestReserveRoom_Success(t *testing.T) {
	svc, _, scheduler, clock := newBookingFixture(t)

	start := clock.Now().Add(2 * time.Hour)
	end := start.Add(time.Hour)

	booking, err := svc.ReserveRoom(context.Background(), 1, 10, start, end, "Badminton")
	require.NoError(t, err)
	assert.Equal(t, "Studio A", booking.RoomName)
	assert.Equal(t, "Anna Kowalska", booking.UserName)
	assert.Equal(t, "Badminton", booking.Title)
	assert.Equal(t, db.BookingStatusActive, booking.Status)
	assert.NotZero(t, booking.ID)

	select {
	case scheduled := <-scheduler.bookings:
		assert.Equal(t, booking.ID, scheduled.ID)
	case <-time.After(time.Second):
		t.Fatal("reminder was never scheduled")
	}
}

func TestReserveRoom_DefaultTitle(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)

	start := clock.Now().Add(2 * time.Hour)
	booking, err := svc.ReserveRoom(context.Background(), 1, 10, start, start.Add(time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, "Room reservation", booking.Title)
}

func TestReserveRoom_Validation(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)
	now := clock.Now()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"end before start", now.Add(3 * time.Hour), now.Add(2 * time.Hour)},
		{"zero-length slot", now.Add(2 * time.Hour), now.Add(2 * time.Hour)},
		{"start in the past", now.Add(-time.Hour), now.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReserveRoom(context.Background(), 1, 10, tt.start, tt.end, "")
			var validation *apperrors.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestReserveRoom_UnknownRoomAndUser(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)
	start := clock.Now().Add(2 * time.Hour)
	end := start.Add(time.Hour)

	var notFound *apperrors.NotFoundError

	_, err := svc.ReserveRoom(context.Background(), 99, 10, start, end, "")
	assert.ErrorAs(t, err, &notFound)

	_, err = svc.ReserveRoom(context.Background(), 1, 99, start, end, "")
	assert.ErrorAs(t, err, &notFound)
}

func TestReserveRoom_ConflictWithBooking(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)
	start := clock.Now().Add(2 * time.Hour)
	end := start.Add(time.Hour)

	_, err := svc.ReserveRoom(context.Background(), 1, 10, start, end, "")
	require.NoError(t, err)

	_, err = svc.ReserveRoom(context.Background(), 1, 10, start.Add(30*time.Minute), end.Add(30*time.Minute), "")
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, apperrors.ConflictRoom, conflict.Cause)
}

func TestReserveRoom_ConflictWithClass(t *testing.T) {
	svc, store, _, clock := newBookingFixture(t)
	start := clock.Now().Add(2 * time.Hour)

	store.addClass(db.FitnessClass{
		ID: 500, TrainerID: 20, RoomID: 1, Title: "Yoga",
		StartTime: start, EndTime: start.Add(time.Hour),
		Capacity: 10, Status: db.ClassStatusActive,
	})

	_, err := svc.ReserveRoom(context.Background(), 1, 10, start.Add(15*time.Minute), start.Add(45*time.Minute), "")
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, apperrors.ConflictReserved, conflict.Cause)
}

// Back-to-back slots share a boundary instant and must both succeed.
func TestReserveRoom_TouchingSlotsDoNotConflict(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)
	start := clock.Now().Add(2 * time.Hour)
	mid := start.Add(time.Hour)

	_, err := svc.ReserveRoom(context.Background(), 1, 10, start, mid, "")
	require.NoError(t, err)

	_, err = svc.ReserveRoom(context.Background(), 1, 10, mid, mid.Add(time.Hour), "")
	assert.NoError(t, err)
}

func TestReserveRoom_ConcurrentRequestsOneWinner(t *testing.T) {
	svc, _, _, clock := newBookingFixture(t)
	start := clock.Now().Add(2 * time.Hour)
	end := start.Add(time.Hour)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReserveRoom(context.Background(), 1, 10, start, end, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			var conflict *apperrors.ConflictError
			assert.ErrorAs(t, err, &conflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestReserveRoom_ReminderFailureDoesNotFailBooking(t *testing.T) {
	svc, _, scheduler, clock := newBookingFixture(t)
	scheduler.err = assert.AnError

	start := clock.Now().Add(2 * time.Hour)
	booking, err := svc.ReserveRoom(context.Background(), 1, 10, start, start.Add(time.Hour), "")
	require.NoError(t, err)
	assert.NotZero(t, booking.ID)

	select {
	case <-scheduler.bookings:
	case <-time.After(time.Second):
		t.Fatal("reminder scheduling was never attempted")
	}
}
