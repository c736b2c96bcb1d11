package entities

import "time"

type BookingResponse struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	RoomName  string    `json:"room_name"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

type ClassResponse struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"room_id"`
	RoomName    string    `json:"room_name"`
	TrainerID   int64     `json:"trainer_id"`
	TrainerName string    `json:"trainer_name"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Capacity    int       `json:"capacity"`
	Status      string    `json:"status"`
}

type EnrollmentResponse struct {
	ID      int64  `json:"id"`
	ClassID int64  `json:"class_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status"`
}
