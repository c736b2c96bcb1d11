package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

// Reminders go out one hour before the booking starts.
const reminderLead = time.Hour

const cancelledByUserMessage = "Reservation cancelled by user"

// ReminderScheduler is what the booking and class services call after a
// successful create.
type ReminderScheduler interface {
	ScheduleForBooking(ctx context.Context, b *db.RoomBooking) (*db.EmailReminder, error)
	ScheduleForEnrollment(ctx context.Context, e *db.ClassEnrollment, c *db.FitnessClass) (*db.EmailReminder, error)
}

type ReminderStore interface {
	Create(ctx context.Context, rem *db.EmailReminder) error
	FindPendingBySource(ctx context.Context, kind string, sourceID int64) (*db.EmailReminder, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]db.EmailReminder, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time, providerMessageID string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	FailPendingBySource(ctx context.Context, kind string, sourceID int64, errorMessage string) error
	GetSource(ctx context.Context, kind string, sourceID int64) (*entities.ReminderSource, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// CancelStore is what the token-cancel flow needs from the schedule side.
type CancelStore interface {
	GetRoomBooking(ctx context.Context, id int64) (*db.RoomBooking, error)
	CancelRoomBooking(ctx context.Context, id int64) error
	GetEnrollment(ctx context.Context, id int64) (*db.ClassEnrollment, error)
	CancelEnrollment(ctx context.Context, id int64) error
}

// NotificationGateway sends one templated message and returns the provider
// message id.
type NotificationGateway interface {
	SendTemplate(ctx context.Context, toEmail, toName, templateID string, params map[string]string) (string, error)
}

// SMSSender is optional; leave nil to disable the SMS nudge.
type SMSSender interface {
	SendSMS(toNumber, body string) error
}

type TokenSigner interface {
	IssueCancelToken(kind string, sourceID, userID int64) (string, error)
	VerifyCancelToken(token string) (*CancelClaims, error)
}

type ReminderService struct {
	Store    ReminderStore
	Schedule CancelStore
	Gateway  NotificationGateway
	SMS      SMSSender
	Signer   TokenSigner
	Clock    Clock

	FrontendBaseURL string
	ClassTemplateID string
	RoomTemplateID  string
	BatchSize       int
	Location        *time.Location
}

func NewReminderService(store ReminderStore, schedule CancelStore, gateway NotificationGateway,
	sms SMSSender, signer TokenSigner, clock Clock,
	frontendBaseURL, classTemplateID, roomTemplateID string, batchSize int, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		Store:           store,
		Schedule:        schedule,
		Gateway:         gateway,
		SMS:             sms,
		Signer:          signer,
		Clock:           clock,
		FrontendBaseURL: frontendBaseURL,
		ClassTemplateID: classTemplateID,
		RoomTemplateID:  roomTemplateID,
		BatchSize:       batchSize,
		Location:        loc,
	}
}

func (s *ReminderService) ScheduleForBooking(ctx context.Context, b *db.RoomBooking) (*db.EmailReminder, error) {
	return s.schedule(ctx, db.ReminderKindRoomBooking, b.ID, b.UserID, b.StartTime)
}

func (s *ReminderService) ScheduleForEnrollment(ctx context.Context, e *db.ClassEnrollment, c *db.FitnessClass) (*db.EmailReminder, error) {
	return s.schedule(ctx, db.ReminderKindClassEnrollment, e.ID, e.UserID, c.StartTime)
}

// schedule persists one pending reminder at start-1h. If a pending reminder
// already references this source, it is returned unchanged.
func (s *ReminderService) schedule(ctx context.Context, kind string, sourceID, userID int64, start time.Time) (*db.EmailReminder, error) {
	existing, err := s.Store.FindPendingBySource(ctx, kind, sourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("reminder already pending for %s %d, skipping", kind, sourceID)
		return existing, nil
	}

	token, err := s.Signer.IssueCancelToken(kind, sourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("error issuing cancel token: %w", err)
	}

	reminder := &db.EmailReminder{
		SourceKind:    kind,
		SourceID:      sourceID,
		UserID:        userID,
		ScheduledTime: start.Add(-reminderLead),
		Status:        db.ReminderStatusPending,
		CancelToken:   token,
	}
	if err := s.Store.Create(ctx, reminder); err != nil {
		return nil, err
	}
	log.Printf("reminder %d scheduled for %s %d at %s", reminder.ID, kind, sourceID,
		reminder.ScheduledTime.Format(time.RFC3339))
	return reminder, nil
}

// ProcessPendingReminders claims due reminders and sends them. Items are
// independent: a failure marks that reminder failed and the batch moves on.
func (s *ReminderService) ProcessPendingReminders(ctx context.Context) (*entities.DispatchResult, error) {
	claimed, err := s.Store.ClaimDue(ctx, s.Clock.Now(), s.BatchSize)
	if err != nil {
		return nil, err
	}

	result := &entities.DispatchResult{}
	for i := range claimed {
		reminder := &claimed[i]
		result.Processed++
		if err := s.dispatch(ctx, reminder); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, entities.ReminderError{
				ReminderID: reminder.ID,
				Message:    err.Error(),
			})
		} else {
			result.Sent++
		}
	}

	if result.Processed > 0 {
		log.Printf("reminder batch done: processed=%d sent=%d failed=%d",
			result.Processed, result.Sent, result.Failed)
	}
	return result, nil
}

func (s *ReminderService) dispatch(ctx context.Context, reminder *db.EmailReminder) error {
	source, err := s.Store.GetSource(ctx, reminder.SourceKind, reminder.SourceID)
	if err != nil {
		s.markFailed(ctx, reminder.ID, err.Error())
		return err
	}
	if !source.Active {
		// A cancelled booking must never generate an email.
		msg := "reservation no longer active"
		s.markFailed(ctx, reminder.ID, msg)
		return fmt.Errorf("%s", msg)
	}

	templateID := s.RoomTemplateID
	if reminder.SourceKind == db.ReminderKindClassEnrollment {
		templateID = s.ClassTemplateID
	}

	params := s.emailParams(source, reminder.CancelToken)
	messageID, err := s.Gateway.SendTemplate(ctx, source.UserEmail, source.UserName, templateID, params)
	if err != nil {
		s.markFailed(ctx, reminder.ID, err.Error())
		return err
	}

	if err := s.Store.MarkSent(ctx, reminder.ID, s.Clock.Now(), messageID); err != nil {
		// The email is already out. Count it sent and surface the bookkeeping
		// failure in the log; the row stays in processing for an operator.
		log.Printf("reminder %d delivered (message %s) but could not be marked sent: %v",
			reminder.ID, messageID, err)
		return nil
	}

	if s.SMS != nil && source.UserPhone != "" {
		body := fmt.Sprintf("Reminder: %s in %s at %s.", source.Title, source.RoomName,
			source.StartTime.In(s.Location).Format("02/01 15:04"))
		if err := s.SMS.SendSMS(source.UserPhone, body); err != nil {
			log.Printf("reminder %d sent, but the SMS nudge to %s failed: %v",
				reminder.ID, source.UserPhone, err)
		}
	}
	return nil
}

func (s *ReminderService) markFailed(ctx context.Context, id int64, message string) {
	if err := s.Store.MarkFailed(ctx, id, message); err != nil {
		log.Printf("could not mark reminder %d failed: %v", id, err)
	}
}

func (s *ReminderService) emailParams(source *entities.ReminderSource, cancelToken string) map[string]string {
	trainerName := source.TrainerName
	cancelPath := "/cancel-room-reservation"
	if source.Kind == db.ReminderKindClassEnrollment {
		cancelPath = "/cancel-reservation"
	} else if trainerName == "" {
		trainerName = "Personal reservation"
	}

	duration := int(source.EndTime.Sub(source.StartTime).Minutes())
	return map[string]string{
		"firstName":      firstName(source.UserName),
		"className":      source.Title,
		"roomName":       source.RoomName,
		"trainerName":    trainerName,
		"startTimeLocal": source.StartTime.In(s.Location).Format("2006-01-02 15:04"),
		"duration":       strconv.Itoa(duration),
		"cancelUrl":      fmt.Sprintf("%s%s?token=%s", s.FrontendBaseURL, cancelPath, cancelToken),
	}
}

// CancelViaToken cancels the booking a reminder email's link points at. The
// token proves possession, not ownership: the booking must still belong to
// the user the token was issued for.
func (s *ReminderService) CancelViaToken(ctx context.Context, token string) error {
	claims, err := s.Signer.VerifyCancelToken(token)
	if err != nil {
		return err
	}

	switch claims.Kind {
	case db.ReminderKindRoomBooking:
		booking, err := s.Schedule.GetRoomBooking(ctx, claims.SourceID)
		if err != nil {
			return err
		}
		if booking.UserID != claims.UserID {
			return apperrors.NewNotFound("room reservation")
		}
		if booking.Status == db.BookingStatusCancelled {
			return apperrors.NewValidation("this reservation has already been cancelled")
		}
		if err := s.Schedule.CancelRoomBooking(ctx, booking.ID); err != nil {
			return err
		}
	case db.ReminderKindClassEnrollment:
		enrollment, err := s.Schedule.GetEnrollment(ctx, claims.SourceID)
		if err != nil {
			return err
		}
		if enrollment.UserID != claims.UserID {
			return apperrors.NewNotFound("class reservation")
		}
		if enrollment.Status == db.EnrollmentStatusCancelled {
			return apperrors.NewValidation("this reservation has already been cancelled")
		}
		if err := s.Schedule.CancelEnrollment(ctx, enrollment.ID); err != nil {
			return err
		}
	default:
		return apperrors.NewInvalidToken("the cancellation link has expired or is invalid")
	}

	// Best effort: the dispatcher re-checks the source status before sending,
	// so even if this update is lost no email goes out.
	if err := s.Store.FailPendingBySource(ctx, claims.Kind, claims.SourceID, cancelledByUserMessage); err != nil {
		log.Printf("booking cancelled, but failing its pending reminder failed: %v", err)
	}

	log.Printf("%s %d cancelled via email link by user %d", claims.Kind, claims.SourceID, claims.UserID)
	return nil
}

// Statistics reports reminder counts per status.
func (s *ReminderService) Statistics(ctx context.Context) (map[string]int, error) {
	return s.Store.CountByStatus(ctx)
}

func firstName(username string) string {
	parts := strings.Fields(strings.TrimSpace(username))
	if len(parts) == 0 || len(parts[0]) < 2 {
		return "there"
	}
	return parts[0]
}
