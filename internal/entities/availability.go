package entities

import "time"

// Timeline entry kinds.
const (
	TimelineKindClass       = "fitness_class"
	TimelineKindRoomBooking = "room_reservation"
)

// TimelineEntry is one occupied slot on a room's or user's timeline. It is a
// display projection only; the authoritative conflict check always re-reads
// the source tables with locks at write time.
type TimelineEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"type"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start"`
	EndTime   time.Time `json:"end"`
	RoomName  string    `json:"room_name,omitempty"`
	OwnerName string    `json:"owner_name,omitempty"`
	Capacity  int       `json:"capacity,omitempty"`
	Enrolled  int       `json:"enrolled,omitempty"`
	Status    string    `json:"status,omitempty"`
}
