package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

// ReminderRepository persists reminder records and implements the claim step
// the dispatcher relies on: due rows move pending -> processing under
// FOR UPDATE SKIP LOCKED, so two overlapping dispatcher runs never pick up
// the same reminder.
type ReminderRepository struct {
	DB *sql.DB
}

func NewReminderRepository(database *sql.DB) *ReminderRepository {
	return &ReminderRepository{DB: database}
}

func (r *ReminderRepository) Create(ctx context.Context, rem *db.EmailReminder) error {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO email_reminders
		 (source_kind, source_id, user_id, scheduled_time, status, cancel_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		rem.SourceKind, rem.SourceID, rem.UserID, rem.ScheduledTime, rem.Status, rem.CancelToken,
	).Scan(&rem.ID, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting reminder: %w", err)
	}
	return nil
}

// FindPendingBySource returns the pending reminder for a source booking, or
// nil when none exists.
func (r *ReminderRepository) FindPendingBySource(ctx context.Context, kind string, sourceID int64) (*db.EmailReminder, error) {
	var rem db.EmailReminder
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, source_kind, source_id, user_id, scheduled_time, sent_at, status,
		        provider_message_id, error_message, cancel_token, created_at, updated_at
		 FROM email_reminders
		 WHERE source_kind = $1 AND source_id = $2 AND status = $3 AND deleted_at IS NULL`,
		kind, sourceID, db.ReminderStatusPending,
	).Scan(&rem.ID, &rem.SourceKind, &rem.SourceID, &rem.UserID, &rem.ScheduledTime,
		&rem.SentAt, &rem.Status, &rem.ProviderMessageID, &rem.ErrorMessage,
		&rem.CancelToken, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying pending reminder: %w", err)
	}
	return &rem, nil
}

// ClaimDue atomically claims up to limit due pending reminders for this run.
// Rows already locked by a concurrent run are skipped, not waited on.
func (r *ReminderRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]db.EmailReminder, error) {
	rows, err := r.DB.QueryContext(ctx,
		`UPDATE email_reminders SET status = $1, updated_at = NOW()
		 WHERE id IN (
		     SELECT id FROM email_reminders
		     WHERE status = $2 AND scheduled_time <= $3 AND deleted_at IS NULL
		     ORDER BY scheduled_time
		     LIMIT $4
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, source_kind, source_id, user_id, scheduled_time, status, cancel_token, created_at, updated_at`,
		db.ReminderStatusProcessing, db.ReminderStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("error claiming due reminders: %w", err)
	}
	defer rows.Close()

	var claimed []db.EmailReminder
	for rows.Next() {
		var rem db.EmailReminder
		if err := rows.Scan(&rem.ID, &rem.SourceKind, &rem.SourceID, &rem.UserID,
			&rem.ScheduledTime, &rem.Status, &rem.CancelToken, &rem.CreatedAt, &rem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning claimed reminder: %w", err)
		}
		claimed = append(claimed, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating claimed reminders: %w", err)
	}
	return claimed, nil
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time, providerMessageID string) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE email_reminders
		 SET status = $1, sent_at = $2, provider_message_id = $3, updated_at = NOW()
		 WHERE id = $4 AND status = $5`,
		db.ReminderStatusSent, sentAt, providerMessageID, id, db.ReminderStatusProcessing)
	if err != nil {
		return fmt.Errorf("error marking reminder %d sent: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("claimed reminder")
	}
	return nil
}

func (r *ReminderRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE email_reminders
		 SET status = $1, error_message = $2, updated_at = NOW()
		 WHERE id = $3 AND status IN ($4, $5)`,
		db.ReminderStatusFailed, errorMessage, id, db.ReminderStatusPending, db.ReminderStatusProcessing)
	if err != nil {
		return fmt.Errorf("error marking reminder %d failed: %w", id, err)
	}
	return nil
}

// FailPendingBySource fails every still-pending reminder for a source
// booking, used when the booking is cancelled so no email goes out.
func (r *ReminderRepository) FailPendingBySource(ctx context.Context, kind string, sourceID int64, errorMessage string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE email_reminders
		 SET status = $1, error_message = $2, updated_at = NOW()
		 WHERE source_kind = $3 AND source_id = $4 AND status = $5`,
		db.ReminderStatusFailed, errorMessage, kind, sourceID, db.ReminderStatusPending)
	if err != nil {
		return fmt.Errorf("error failing pending reminders for %s %d: %w", kind, sourceID, err)
	}
	return nil
}

// GetSource loads the denormalized source booking for a claimed reminder.
func (r *ReminderRepository) GetSource(ctx context.Context, kind string, sourceID int64) (*entities.ReminderSource, error) {
	switch kind {
	case db.ReminderKindClassEnrollment:
		return r.enrollmentSource(ctx, sourceID)
	case db.ReminderKindRoomBooking:
		return r.bookingSource(ctx, sourceID)
	default:
		return nil, fmt.Errorf("unknown reminder source kind %q", kind)
	}
}

func (r *ReminderRepository) enrollmentSource(ctx context.Context, enrollmentID int64) (*entities.ReminderSource, error) {
	src := entities.ReminderSource{Kind: db.ReminderKindClassEnrollment, SourceID: enrollmentID}
	var enrollmentStatus, classStatus string
	var phone sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT e.status, c.status, c.title, c.start_time, c.end_time,
		        rm.name, t.username, u.username, u.email, u.phone
		 FROM class_enrollments e
		 JOIN fitness_classes c ON c.id = e.class_id
		 JOIN rooms rm ON rm.id = c.room_id
		 JOIN users t ON t.id = c.trainer_id
		 JOIN users u ON u.id = e.user_id
		 WHERE e.id = $1 AND e.deleted_at IS NULL`,
		enrollmentID,
	).Scan(&enrollmentStatus, &classStatus, &src.Title, &src.StartTime, &src.EndTime,
		&src.RoomName, &src.TrainerName, &src.UserName, &src.UserEmail, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("class reservation")
		}
		return nil, fmt.Errorf("error loading enrollment %d for reminder: %w", enrollmentID, err)
	}
	src.UserPhone = phone.String
	src.Active = classStatus == db.ClassStatusActive &&
		(enrollmentStatus == db.EnrollmentStatusPending || enrollmentStatus == db.EnrollmentStatusConfirmed)
	return &src, nil
}

func (r *ReminderRepository) bookingSource(ctx context.Context, bookingID int64) (*entities.ReminderSource, error) {
	src := entities.ReminderSource{Kind: db.ReminderKindRoomBooking, SourceID: bookingID}
	var status string
	var phone sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT b.status, b.title, b.start_time, b.end_time,
		        rm.name, u.username, u.email, u.phone
		 FROM room_bookings b
		 JOIN rooms rm ON rm.id = b.room_id
		 JOIN users u ON u.id = b.user_id
		 WHERE b.id = $1 AND b.deleted_at IS NULL`,
		bookingID,
	).Scan(&status, &src.Title, &src.StartTime, &src.EndTime,
		&src.RoomName, &src.UserName, &src.UserEmail, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("room reservation")
		}
		return nil, fmt.Errorf("error loading room booking %d for reminder: %w", bookingID, err)
	}
	src.UserPhone = phone.String
	src.Active = status == db.BookingStatusActive
	return &src, nil
}

// CountByStatus reports reminder totals per status for the jobs endpoint.
func (r *ReminderRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM email_reminders
		 WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("error counting reminders: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning reminder count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating reminder counts: %w", err)
	}
	return counts, nil
}
