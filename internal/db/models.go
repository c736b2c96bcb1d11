package db

import (
	"database/sql"
	"time"
)

// User roles. Only trainers may own fitness classes.
const (
	RoleRegular      = "regular"
	RoleTrainer      = "trainer"
	RoleReceptionist = "receptionist"
	RoleAdmin        = "admin"
)

// Room booking lifecycle.
const (
	BookingStatusActive    = "Active"
	BookingStatusCancelled = "Cancelled"
	BookingStatusFinished  = "Finished"
)

// Fitness class lifecycle.
const (
	ClassStatusActive    = "Active"
	ClassStatusCancelled = "Cancelled"
	ClassStatusCompleted = "Completed"
)

// Class enrollment lifecycle.
const (
	EnrollmentStatusPending   = "pending"
	EnrollmentStatusConfirmed = "confirmed"
	EnrollmentStatusCancelled = "cancelled"
	EnrollmentStatusAttended  = "attended"
	EnrollmentStatusNoShow    = "no_show"
)

// Reminder lifecycle. A reminder is claimed (pending -> processing) before
// sending so overlapping dispatcher runs never pick up the same row.
// Both sent and failed are terminal.
const (
	ReminderStatusPending    = "pending"
	ReminderStatusProcessing = "processing"
	ReminderStatusSent       = "sent"
	ReminderStatusFailed     = "failed"
)

// Reminder source kinds. A reminder references exactly one source record,
// identified by the (SourceKind, SourceID) pair.
const (
	ReminderKindClassEnrollment = "class_enrollment"
	ReminderKindRoomBooking     = "room_booking"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	Phone        sql.NullString
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	ID        int64
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FitnessClass struct {
	ID        int64
	TrainerID int64
	RoomID    int64
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Capacity  int
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RoomBooking struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ClassEnrollment struct {
	ID        int64
	ClassID   int64
	UserID    int64
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EmailReminder struct {
	ID                int64
	SourceKind        string
	SourceID          int64
	UserID            int64
	ScheduledTime     time.Time
	SentAt            sql.NullTime
	Status            string
	ProviderMessageID sql.NullString
	ErrorMessage      sql.NullString
	CancelToken       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
