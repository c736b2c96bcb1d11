package entities

import "time"

// ReminderSource is the denormalized view of the booking a reminder points
// at, loaded just before sending. Active reflects the source's status at
// load time; a reminder for an inactive source must never produce an email.
type ReminderSource struct {
	Kind        string
	SourceID    int64
	Active      bool
	Title       string
	StartTime   time.Time
	EndTime     time.Time
	RoomName    string
	TrainerName string
	UserName    string
	UserEmail   string
	UserPhone   string
}

type ReminderError struct {
	ReminderID int64  `json:"reminder_id"`
	Message    string `json:"message"`
}

// DispatchResult summarizes one dispatcher batch. Items are independent:
// one failure never aborts the rest of the batch.
type DispatchResult struct {
	Processed int             `json:"processed"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Errors    []ReminderError `json:"errors,omitempty"`
}
