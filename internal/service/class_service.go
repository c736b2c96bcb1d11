package service

import (
	"context"
	"log"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

type ClassStore interface {
	GetRoom(ctx context.Context, id int64) (*db.Room, error)
	GetUser(ctx context.Context, id int64) (*db.User, error)
	GetClass(ctx context.Context, id int64) (*db.FitnessClass, error)
	CreateClassIfAvailable(ctx context.Context, c *db.FitnessClass) error
	CreateEnrollment(ctx context.Context, e *db.ClassEnrollment) error
}

type ClassService struct {
	Store     ClassStore
	Reminders ReminderScheduler
	Clock     Clock
}

func NewClassService(store ClassStore, reminders ReminderScheduler, clock Clock) *ClassService {
	return &ClassService{Store: store, Reminders: reminders, Clock: clock}
}

// CreateClass schedules an instructor-led class. Validation runs before any
// conflict check; the store serializes the conflict checks and the insert.
// A class does not get a reminder of its own; reminders are per enrollment.
func (s *ClassService) CreateClass(ctx context.Context, trainerID, roomID int64, start, end time.Time, title string, capacity int) (*entities.ClassResponse, error) {
	if title == "" {
		return nil, apperrors.NewValidation("title is required")
	}
	if capacity < 1 {
		return nil, apperrors.NewValidation("capacity must be at least 1")
	}
	if !end.After(start) {
		return nil, apperrors.NewValidation("end time must be after start time")
	}
	if !start.After(s.Clock.Now()) {
		return nil, apperrors.NewValidation("cannot schedule a class in the past")
	}

	trainer, err := s.Store.GetUser(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if trainer.Role != db.RoleTrainer {
		return nil, apperrors.NewValidation("user is not a trainer")
	}

	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if capacity > room.Capacity {
		return nil, apperrors.NewValidation("class capacity (%d) exceeds room capacity (%d)", capacity, room.Capacity)
	}

	class := &db.FitnessClass{
		TrainerID: trainerID,
		RoomID:    roomID,
		Title:     title,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Capacity:  capacity,
		Status:    db.ClassStatusActive,
	}
	if err := s.Store.CreateClassIfAvailable(ctx, class); err != nil {
		return nil, err
	}

	return &entities.ClassResponse{
		ID:          class.ID,
		RoomID:      room.ID,
		RoomName:    room.Name,
		TrainerID:   trainer.ID,
		TrainerName: trainer.Username,
		Title:       class.Title,
		StartTime:   class.StartTime,
		EndTime:     class.EndTime,
		Capacity:    class.Capacity,
		Status:      class.Status,
	}, nil
}

// EnrollInClass books a seat in a class for a user. One live enrollment per
// (user, class) pair; the store rejects duplicates and full classes. Success
// schedules the enrollment's reminder asynchronously.
func (s *ClassService) EnrollInClass(ctx context.Context, classID, userID int64) (*entities.EnrollmentResponse, error) {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.Status != db.ClassStatusActive {
		return nil, apperrors.NewNotFound("class")
	}
	if !class.StartTime.After(s.Clock.Now()) {
		return nil, apperrors.NewValidation("class has already started")
	}
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	enrollment := &db.ClassEnrollment{
		ClassID: classID,
		UserID:  userID,
		Status:  db.EnrollmentStatusConfirmed,
	}
	if err := s.Store.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, err
	}

	go func(e db.ClassEnrollment, c db.FitnessClass) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.Reminders.ScheduleForEnrollment(ctx, &e, &c); err != nil {
			log.Printf("enrollment %d created, but scheduling its reminder failed: %v", e.ID, err)
		}
	}(*enrollment, *class)

	return &entities.EnrollmentResponse{
		ID:      enrollment.ID,
		ClassID: enrollment.ClassID,
		UserID:  enrollment.UserID,
		Status:  enrollment.Status,
	}, nil
}
