package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gymslots/internal/db"
	apperrors "gymslots/internal/errors"
)

// ScheduleRepository owns the transactional check-then-insert paths for room
// bookings and fitness classes. The conflict reads run inside the same
// transaction as the insert and take row locks (FOR UPDATE) on the existing
// active rows, so two concurrent overlapping create calls cannot both pass
// the check: one blocks until the other commits, then re-evaluates.
type ScheduleRepository struct {
	DB *sql.DB
}

func NewScheduleRepository(database *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{DB: database}
}

func (r *ScheduleRepository) GetRoom(ctx context.Context, id int64) (*db.Room, error) {
	var room db.Room
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, capacity, created_at, updated_at
		 FROM rooms WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&room.ID, &room.Name, &room.Capacity, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("room")
		}
		return nil, fmt.Errorf("error querying room %d: %w", id, err)
	}
	return &room, nil
}

func (r *ScheduleRepository) GetUser(ctx context.Context, id int64) (*db.User, error) {
	var u db.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, username, email, phone, password_hash, role, created_at, updated_at
		 FROM users WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, fmt.Errorf("error querying user %d: %w", id, err)
	}
	return &u, nil
}

func (r *ScheduleRepository) GetClass(ctx context.Context, id int64) (*db.FitnessClass, error) {
	var c db.FitnessClass
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, trainer_id, room_id, title, start_time, end_time, capacity, status, created_at, updated_at
		 FROM fitness_classes WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&c.ID, &c.TrainerID, &c.RoomID, &c.Title, &c.StartTime, &c.EndTime, &c.Capacity, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("class")
		}
		return nil, fmt.Errorf("error querying class %d: %w", id, err)
	}
	return &c, nil
}

func (r *ScheduleRepository) GetRoomBooking(ctx context.Context, id int64) (*db.RoomBooking, error) {
	var b db.RoomBooking
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, room_id, user_id, title, start_time, end_time, status, created_at, updated_at
		 FROM room_bookings WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&b.ID, &b.RoomID, &b.UserID, &b.Title, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("room reservation")
		}
		return nil, fmt.Errorf("error querying room booking %d: %w", id, err)
	}
	return &b, nil
}

func (r *ScheduleRepository) GetEnrollment(ctx context.Context, id int64) (*db.ClassEnrollment, error) {
	var e db.ClassEnrollment
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, class_id, user_id, status, created_at, updated_at
		 FROM class_enrollments WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&e.ID, &e.ClassID, &e.UserID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("class reservation")
		}
		return nil, fmt.Errorf("error querying enrollment %d: %w", id, err)
	}
	return &e, nil
}

// CreateBookingIfAvailable checks both booking kinds for an overlap in the
// room and inserts the booking, all in one transaction.
func (r *ScheduleRepository) CreateBookingIfAvailable(ctx context.Context, b *db.RoomBooking) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning booking transaction: %w", err)
	}
	defer tx.Rollback()

	conflict, err := r.hasRoomBookingOverlap(ctx, tx, b.RoomID, b.StartTime, b.EndTime)
	if err != nil {
		return err
	}
	if conflict {
		return apperrors.NewConflict(apperrors.ConflictRoom, "room is already reserved for this time period")
	}

	conflict, err = r.hasClassOverlapInRoom(ctx, tx, b.RoomID, b.StartTime, b.EndTime)
	if err != nil {
		return err
	}
	if conflict {
		return apperrors.NewConflict(apperrors.ConflictReserved, "room is occupied by a fitness class during this time")
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO room_bookings (room_id, user_id, title, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		b.RoomID, b.UserID, b.Title, b.StartTime, b.EndTime, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting room booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing room booking: %w", err)
	}
	return nil
}

// CreateClassIfAvailable checks the trainer's own schedule and both booking
// kinds in the room, then inserts the class, all in one transaction.
func (r *ScheduleRepository) CreateClassIfAvailable(ctx context.Context, c *db.FitnessClass) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning class transaction: %w", err)
	}
	defer tx.Rollback()

	conflict, err := r.hasTrainerOverlap(ctx, tx, c.TrainerID, c.StartTime, c.EndTime)
	if err != nil {
		return err
	}
	if conflict {
		return apperrors.NewConflict(apperrors.ConflictInstructor, "trainer is already scheduled for another class during this time")
	}

	conflict, err = r.hasClassOverlapInRoom(ctx, tx, c.RoomID, c.StartTime, c.EndTime)
	if err != nil {
		return err
	}
	if conflict {
		return apperrors.NewConflict(apperrors.ConflictRoom, "room is already occupied by another class during this time")
	}

	conflict, err = r.hasRoomBookingOverlap(ctx, tx, c.RoomID, c.StartTime, c.EndTime)
	if err != nil {
		return err
	}
	if conflict {
		return apperrors.NewConflict(apperrors.ConflictReserved, "room is already reserved during this time")
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO fitness_classes (trainer_id, room_id, title, start_time, end_time, capacity, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		c.TrainerID, c.RoomID, c.Title, c.StartTime, c.EndTime, c.Capacity, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting fitness class: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing fitness class: %w", err)
	}
	return nil
}

// CreateEnrollment enrolls a user into a class. The class row is locked so
// the seat count cannot be oversubscribed by concurrent enrollments.
func (r *ScheduleRepository) CreateEnrollment(ctx context.Context, e *db.ClassEnrollment) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning enrollment transaction: %w", err)
	}
	defer tx.Rollback()

	var capacity int
	err = tx.QueryRowContext(ctx,
		`SELECT capacity FROM fitness_classes
		 WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		 FOR UPDATE`,
		e.ClassID, db.ClassStatusActive,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("class")
		}
		return fmt.Errorf("error locking class %d: %w", e.ClassID, err)
	}

	var duplicate bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM class_enrollments
		     WHERE class_id = $1 AND user_id = $2 AND status <> $3 AND deleted_at IS NULL
		 )`,
		e.ClassID, e.UserID, db.EnrollmentStatusCancelled,
	).Scan(&duplicate)
	if err != nil {
		return fmt.Errorf("error checking duplicate enrollment: %w", err)
	}
	if duplicate {
		return apperrors.NewConflict(apperrors.ConflictEnrollment, "user is already enrolled in this class")
	}

	var enrolled int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM class_enrollments
		 WHERE class_id = $1 AND status IN ($2, $3) AND deleted_at IS NULL`,
		e.ClassID, db.EnrollmentStatusPending, db.EnrollmentStatusConfirmed,
	).Scan(&enrolled)
	if err != nil {
		return fmt.Errorf("error counting enrollments: %w", err)
	}
	if enrolled >= capacity {
		return apperrors.NewConflict(apperrors.ConflictCapacity, "class is full")
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO class_enrollments (class_id, user_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		e.ClassID, e.UserID, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing enrollment: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) CancelRoomBooking(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE room_bookings SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		db.BookingStatusCancelled, id)
	if err != nil {
		return fmt.Errorf("error cancelling room booking %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("room reservation")
	}
	return nil
}

func (r *ScheduleRepository) CancelEnrollment(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE class_enrollments SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		db.EnrollmentStatusCancelled, id)
	if err != nil {
		return fmt.Errorf("error cancelling enrollment %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("class reservation")
	}
	return nil
}

// ActiveBookingIDsPastEnd finds Active room bookings whose end time passed.
func (r *ScheduleRepository) ActiveBookingIDsPastEnd(ctx context.Context, now time.Time) ([]int64, error) {
	return r.idsPastEnd(ctx,
		`SELECT id FROM room_bookings
		 WHERE status = $1 AND end_time < $2 AND deleted_at IS NULL`,
		db.BookingStatusActive, now)
}

func (r *ScheduleRepository) MarkBookingsFinished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE room_bookings SET status = $1, updated_at = NOW() WHERE id = ANY($2)`,
		db.BookingStatusFinished, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error marking bookings finished: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ActiveClassIDsPastEnd(ctx context.Context, now time.Time) ([]int64, error) {
	return r.idsPastEnd(ctx,
		`SELECT id FROM fitness_classes
		 WHERE status = $1 AND end_time < $2 AND deleted_at IS NULL`,
		db.ClassStatusActive, now)
}

func (r *ScheduleRepository) MarkClassesCompleted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE fitness_classes SET status = $1, updated_at = NOW() WHERE id = ANY($2)`,
		db.ClassStatusCompleted, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error marking classes completed: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) idsPastEnd(ctx context.Context, query string, status string, now time.Time) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, query, status, now)
	if err != nil {
		return nil, fmt.Errorf("error querying records past end time: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}

// Overlap predicate: [s1,e1) and [s2,e2) overlap iff s1 < e2 AND s2 < e1.
// An interval ending exactly when another begins does not conflict. The
// FOR UPDATE locks the matched rows until commit, serializing concurrent
// create calls that target the same slot.

func (r *ScheduleRepository) hasRoomBookingOverlap(ctx context.Context, tx *sql.Tx, roomID int64, start, end time.Time) (bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM room_bookings
		 WHERE room_id = $1 AND status = $2 AND deleted_at IS NULL
		   AND start_time < $4 AND end_time > $3
		 FOR UPDATE`,
		roomID, db.BookingStatusActive, start, end)
	if err != nil {
		return false, fmt.Errorf("error checking room booking conflicts: %w", err)
	}
	return anyRow(rows)
}

func (r *ScheduleRepository) hasClassOverlapInRoom(ctx context.Context, tx *sql.Tx, roomID int64, start, end time.Time) (bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM fitness_classes
		 WHERE room_id = $1 AND status = $2 AND deleted_at IS NULL
		   AND start_time < $4 AND end_time > $3
		 FOR UPDATE`,
		roomID, db.ClassStatusActive, start, end)
	if err != nil {
		return false, fmt.Errorf("error checking class conflicts in room: %w", err)
	}
	return anyRow(rows)
}

func (r *ScheduleRepository) hasTrainerOverlap(ctx context.Context, tx *sql.Tx, trainerID int64, start, end time.Time) (bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM fitness_classes
		 WHERE trainer_id = $1 AND status = $2 AND deleted_at IS NULL
		   AND start_time < $4 AND end_time > $3
		 FOR UPDATE`,
		trainerID, db.ClassStatusActive, start, end)
	if err != nil {
		return false, fmt.Errorf("error checking trainer conflicts: %w", err)
	}
	return anyRow(rows)
}

func anyRow(rows *sql.Rows) (bool, error) {
	defer rows.Close()
	if rows.Next() {
		return true, rows.Err()
	}
	return false, rows.Err()
}
