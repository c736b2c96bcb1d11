package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
)

// AvailabilityRepository serves read-only timeline projections. These never
// lock anything; the authoritative conflict check lives in ScheduleRepository
// and always re-reads with locks at write time.
type AvailabilityRepository struct {
	DB *sql.DB
}

func NewAvailabilityRepository(database *sql.DB) *AvailabilityRepository {
	return &AvailabilityRepository{DB: database}
}

// RoomClasses lists Active classes in a room overlapping [from, to).
func (r *AvailabilityRepository) RoomClasses(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.title, c.start_time, c.end_time, c.capacity, rm.name, t.username,
		        (SELECT COUNT(*) FROM class_enrollments e
		         WHERE e.class_id = c.id AND e.status IN ($4, $5) AND e.deleted_at IS NULL)
		 FROM fitness_classes c
		 JOIN rooms rm ON rm.id = c.room_id
		 JOIN users t ON t.id = c.trainer_id
		 WHERE c.room_id = $1 AND c.status = $6 AND c.deleted_at IS NULL
		   AND c.start_time < $3 AND c.end_time > $2
		 ORDER BY c.start_time`,
		roomID, from, to,
		db.EnrollmentStatusPending, db.EnrollmentStatusConfirmed, db.ClassStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying room classes: %w", err)
	}
	defer rows.Close()

	var entries []entities.TimelineEntry
	for rows.Next() {
		e := entities.TimelineEntry{Kind: entities.TimelineKindClass, Status: db.ClassStatusActive}
		if err := rows.Scan(&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.Capacity,
			&e.RoomName, &e.OwnerName, &e.Enrolled); err != nil {
			return nil, fmt.Errorf("error scanning room class entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RoomBookings lists Active direct bookings in a room overlapping [from, to).
func (r *AvailabilityRepository) RoomBookings(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT b.id, b.title, b.start_time, b.end_time, rm.name, u.username
		 FROM room_bookings b
		 JOIN rooms rm ON rm.id = b.room_id
		 JOIN users u ON u.id = b.user_id
		 WHERE b.room_id = $1 AND b.status = $4 AND b.deleted_at IS NULL
		   AND b.start_time < $3 AND b.end_time > $2
		 ORDER BY b.start_time`,
		roomID, from, to, db.BookingStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying room bookings: %w", err)
	}
	defer rows.Close()
	return scanBookingEntries(rows)
}

// UserEnrolledClasses lists classes the user holds a live enrollment in.
func (r *AvailabilityRepository) UserEnrolledClasses(ctx context.Context, userID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.title, c.start_time, c.end_time, c.capacity, rm.name, t.username, e.status
		 FROM class_enrollments e
		 JOIN fitness_classes c ON c.id = e.class_id
		 JOIN rooms rm ON rm.id = c.room_id
		 JOIN users t ON t.id = c.trainer_id
		 WHERE e.user_id = $1 AND e.status IN ($4, $5) AND e.deleted_at IS NULL
		   AND c.status = $6 AND c.deleted_at IS NULL
		   AND c.start_time < $3 AND c.end_time > $2
		 ORDER BY c.start_time`,
		userID, from, to,
		db.EnrollmentStatusPending, db.EnrollmentStatusConfirmed, db.ClassStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying user classes: %w", err)
	}
	defer rows.Close()

	var entries []entities.TimelineEntry
	for rows.Next() {
		e := entities.TimelineEntry{Kind: entities.TimelineKindClass}
		if err := rows.Scan(&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.Capacity,
			&e.RoomName, &e.OwnerName, &e.Status); err != nil {
			return nil, fmt.Errorf("error scanning user class entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserRoomBookings lists the user's own Active room bookings in the window.
func (r *AvailabilityRepository) UserRoomBookings(ctx context.Context, userID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT b.id, b.title, b.start_time, b.end_time, rm.name, u.username
		 FROM room_bookings b
		 JOIN rooms rm ON rm.id = b.room_id
		 JOIN users u ON u.id = b.user_id
		 WHERE b.user_id = $1 AND b.status = $4 AND b.deleted_at IS NULL
		   AND b.start_time < $3 AND b.end_time > $2
		 ORDER BY b.start_time`,
		userID, from, to, db.BookingStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying user bookings: %w", err)
	}
	defer rows.Close()
	return scanBookingEntries(rows)
}

// ClassesByTrainer lists the trainer's own Active classes in the window,
// with live enrollment counts.
func (r *AvailabilityRepository) ClassesByTrainer(ctx context.Context, trainerID int64, from, to time.Time) ([]entities.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.title, c.start_time, c.end_time, c.capacity, rm.name, t.username,
		        (SELECT COUNT(*) FROM class_enrollments e
		         WHERE e.class_id = c.id AND e.status IN ($4, $5) AND e.deleted_at IS NULL)
		 FROM fitness_classes c
		 JOIN rooms rm ON rm.id = c.room_id
		 JOIN users t ON t.id = c.trainer_id
		 WHERE c.trainer_id = $1 AND c.status = $6 AND c.deleted_at IS NULL
		   AND c.start_time < $3 AND c.end_time > $2
		 ORDER BY c.start_time`,
		trainerID, from, to,
		db.EnrollmentStatusPending, db.EnrollmentStatusConfirmed, db.ClassStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying trainer classes: %w", err)
	}
	defer rows.Close()

	var entries []entities.TimelineEntry
	for rows.Next() {
		e := entities.TimelineEntry{Kind: entities.TimelineKindClass, Status: db.ClassStatusActive}
		if err := rows.Scan(&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.Capacity,
			&e.RoomName, &e.OwnerName, &e.Enrolled); err != nil {
			return nil, fmt.Errorf("error scanning trainer class entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanBookingEntries(rows *sql.Rows) ([]entities.TimelineEntry, error) {
	var entries []entities.TimelineEntry
	for rows.Next() {
		e := entities.TimelineEntry{Kind: entities.TimelineKindRoomBooking, Status: db.BookingStatusActive}
		if err := rows.Scan(&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.RoomName, &e.OwnerName); err != nil {
			return nil, fmt.Errorf("error scanning booking entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
