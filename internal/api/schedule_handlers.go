package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"gymslots/internal/auth"
	"gymslots/internal/db"
	"gymslots/internal/entities"
)

type BookingService interface {
	ReserveRoom(ctx context.Context, roomID, userID int64, start, end time.Time, title string) (*entities.BookingResponse, error)
}

type ClassService interface {
	CreateClass(ctx context.Context, trainerID, roomID int64, start, end time.Time, title string, capacity int) (*entities.ClassResponse, error)
	EnrollInClass(ctx context.Context, classID, userID int64) (*entities.EnrollmentResponse, error)
}

type AvailabilityService interface {
	GetRoomAvailability(ctx context.Context, roomID int64, from, to time.Time) ([]entities.TimelineEntry, error)
	GetUserCalendar(ctx context.Context, userID int64, from, to time.Time, role string) ([]entities.TimelineEntry, error)
}

type ScheduleHandler struct {
	Bookings     BookingService
	Classes      ClassService
	Availability AvailabilityService
	validate     *validator.Validate
}

func NewScheduleHandler(bookings BookingService, classes ClassService, availability AvailabilityService) *ScheduleHandler {
	return &ScheduleHandler{
		Bookings:     bookings,
		Classes:      classes,
		Availability: availability,
		validate:     validator.New(),
	}
}

// CreateRoomBooking handles POST /api/rooms/{id}/reservations.
func (h *ScheduleHandler) CreateRoomBooking(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid room id", http.StatusBadRequest)
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Missing required fields: start_time, end_time", http.StatusBadRequest)
		return
	}

	booking, err := h.Bookings.ReserveRoom(r.Context(), roomID, auth.UserID(r), req.StartTime, req.EndTime, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Room reserved successfully",
		"reservation": booking,
	})
}

// CreateClass handles POST /api/classes. Trainer role required.
func (h *ScheduleHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	role := auth.Role(r)
	if role != db.RoleTrainer && role != db.RoleAdmin {
		http.Error(w, "Access denied. Trainer role required.", http.StatusForbidden)
		return
	}

	var req CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Missing required fields: room_id, start_time, end_time, title, capacity", http.StatusBadRequest)
		return
	}

	class, err := h.Classes.CreateClass(r.Context(), auth.UserID(r), req.RoomID, req.StartTime, req.EndTime, req.Title, req.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Fitness class created successfully",
		"class":   class,
	})
}

// Enroll handles POST /api/classes/{id}/enrollments.
func (h *ScheduleHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	classID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid class id", http.StatusBadRequest)
		return
	}

	enrollment, err := h.Classes.EnrollInClass(r.Context(), classID, auth.UserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Enrolled successfully",
		"enrollment": enrollment,
	})
}

// GetRoomAvailability handles GET /api/calendar/rooms/{id}?from=...&to=...
// A single ?date=YYYY-MM-DD covers that whole day.
func (h *ScheduleHandler) GetRoomAvailability(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid room id", http.StatusBadRequest)
		return
	}

	from, to, err := windowFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.Availability.GetRoomAvailability(r.Context(), roomID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"occupied_slots": entries})
}

// GetUserCalendar handles GET /api/calendar/user?from=...&to=...
func (h *ScheduleHandler) GetUserCalendar(w http.ResponseWriter, r *http.Request) {
	from, to, err := windowFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.Availability.GetUserCalendar(r.Context(), auth.UserID(r), from, to, auth.Role(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func windowFromQuery(r *http.Request) (time.Time, time.Time, error) {
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDate
		}
		return day, day.AddDate(0, 0, 1), nil
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidDate
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidDate
	}
	return from, to, nil
}
