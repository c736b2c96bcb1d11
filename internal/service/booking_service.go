package service

import (
	"context"
	"log"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

const defaultBookingTitle = "Room reservation"

// BookingStore is what the booking path needs from persistence. The
// check-then-insert must be atomic inside the store (locked conflict read
// plus insert in one transaction).
type BookingStore interface {
	GetRoom(ctx context.Context, id int64) (*db.Room, error)
	GetUser(ctx context.Context, id int64) (*db.User, error)
	CreateBookingIfAvailable(ctx context.Context, b *db.RoomBooking) error
}

type BookingService struct {
	Store     BookingStore
	Reminders ReminderScheduler
	Clock     Clock
}

func NewBookingService(store BookingStore, reminders ReminderScheduler, clock Clock) *BookingService {
	return &BookingService{Store: store, Reminders: reminders, Clock: clock}
}

// ReserveRoom books a room directly for a user. On success the reminder is
// scheduled asynchronously; a scheduling failure is logged and never rolls
// back or fails the booking.
func (s *BookingService) ReserveRoom(ctx context.Context, roomID, userID int64, start, end time.Time, title string) (*entities.BookingResponse, error) {
	if title == "" {
		title = defaultBookingTitle
	}
	if !end.After(start) {
		return nil, apperrors.NewValidation("end time must be after start time")
	}
	if !start.After(s.Clock.Now()) {
		return nil, apperrors.NewValidation("cannot book in the past")
	}

	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	booking := &db.RoomBooking{
		RoomID:    roomID,
		UserID:    userID,
		Title:     title,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Status:    db.BookingStatusActive,
	}
	if err := s.Store.CreateBookingIfAvailable(ctx, booking); err != nil {
		return nil, err
	}

	go func(b db.RoomBooking) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.Reminders.ScheduleForBooking(ctx, &b); err != nil {
			log.Printf("room booking %d created, but scheduling its reminder failed: %v", b.ID, err)
		}
	}(*booking)

	return &entities.BookingResponse{
		ID:        booking.ID,
		RoomID:    room.ID,
		RoomName:  room.Name,
		UserID:    user.ID,
		UserName:  user.Username,
		Title:     booking.Title,
		StartTime: booking.StartTime,
		EndTime:   booking.EndTime,
		Status:    booking.Status,
	}, nil
}
