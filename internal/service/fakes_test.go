package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gymslots/internal/db"
	"gymslots/internal/entities"
	apperrors "gymslots/internal/errors"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory schedule store. The mutex makes the
// check-then-insert atomic, mirroring what the SQL store does with
// row locks inside a transaction.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	rooms       map[int64]*db.Room
	users       map[int64]*db.User
	bookings    map[int64]*db.RoomBooking
	classes     map[int64]*db.FitnessClass
	enrollments map[int64]*db.ClassEnrollment
}

func newMemStore() *memStore {
	return &memStore{
		rooms:       make(map[int64]*db.Room),
		users:       make(map[int64]*db.User),
		bookings:    make(map[int64]*db.RoomBooking),
		classes:     make(map[int64]*db.FitnessClass),
		enrollments: make(map[int64]*db.ClassEnrollment),
	}
}

func (s *memStore) addRoom(room db.Room) *db.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = &room
	return &room
}

func (s *memStore) addUser(user db.User) *db.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &user
	return &user
}

func (s *memStore) addClass(class db.FitnessClass) *db.FitnessClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class.ID] = &class
	return &class
}

func (s *memStore) addBooking(b db.RoomBooking) *db.RoomBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = &b
	return &b
}

func (s *memStore) addEnrollment(e db.ClassEnrollment) *db.ClassEnrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = &e
	return &e
}

func (s *memStore) GetRoom(_ context.Context, id int64) (*db.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, apperrors.NewNotFound("room")
	}
	copied := *room
	return &copied, nil
}

func (s *memStore) GetUser(_ context.Context, id int64) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user")
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) GetClass(_ context.Context, id int64) (*db.FitnessClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	class, ok := s.classes[id]
	if !ok {
		return nil, apperrors.NewNotFound("class")
	}
	copied := *class
	return &copied, nil
}

func (s *memStore) GetRoomBooking(_ context.Context, id int64) (*db.RoomBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[id]
	if !ok {
		return nil, apperrors.NewNotFound("room reservation")
	}
	copied := *booking
	return &copied, nil
}

func (s *memStore) GetEnrollment(_ context.Context, id int64) (*db.ClassEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return nil, apperrors.NewNotFound("class reservation")
	}
	copied := *enrollment
	return &copied, nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func (s *memStore) CreateBookingIfAvailable(_ context.Context, b *db.RoomBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.bookings {
		if other.RoomID == b.RoomID && other.Status == db.BookingStatusActive &&
			overlaps(b.StartTime, b.EndTime, other.StartTime, other.EndTime) {
			return apperrors.NewConflict(apperrors.ConflictRoom, "room is already reserved for this time period")
		}
	}
	for _, class := range s.classes {
		if class.RoomID == b.RoomID && class.Status == db.ClassStatusActive &&
			overlaps(b.StartTime, b.EndTime, class.StartTime, class.EndTime) {
			return apperrors.NewConflict(apperrors.ConflictReserved, "room is occupied by a fitness class during this time")
		}
	}

	s.nextID++
	b.ID = s.nextID
	copied := *b
	s.bookings[b.ID] = &copied
	return nil
}

func (s *memStore) CreateClassIfAvailable(_ context.Context, c *db.FitnessClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.classes {
		if other.Status != db.ClassStatusActive ||
			!overlaps(c.StartTime, c.EndTime, other.StartTime, other.EndTime) {
			continue
		}
		if other.TrainerID == c.TrainerID {
			return apperrors.NewConflict(apperrors.ConflictInstructor, "trainer is already scheduled for another class during this time")
		}
		if other.RoomID == c.RoomID {
			return apperrors.NewConflict(apperrors.ConflictRoom, "room is occupied by a fitness class during this time")
		}
	}
	for _, booking := range s.bookings {
		if booking.RoomID == c.RoomID && booking.Status == db.BookingStatusActive &&
			overlaps(c.StartTime, c.EndTime, booking.StartTime, booking.EndTime) {
			return apperrors.NewConflict(apperrors.ConflictReserved, "room is already reserved during this time")
		}
	}

	s.nextID++
	c.ID = s.nextID
	copied := *c
	s.classes[c.ID] = &copied
	return nil
}

func (s *memStore) CreateEnrollment(_ context.Context, e *db.ClassEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	class, ok := s.classes[e.ClassID]
	if !ok {
		return apperrors.NewNotFound("class")
	}

	live := 0
	for _, other := range s.enrollments {
		if other.ClassID != e.ClassID || other.Status == db.EnrollmentStatusCancelled {
			continue
		}
		if other.UserID == e.UserID {
			return apperrors.NewConflict(apperrors.ConflictEnrollment, "user is already enrolled in this class")
		}
		if other.Status == db.EnrollmentStatusPending || other.Status == db.EnrollmentStatusConfirmed {
			live++
		}
	}
	if live >= class.Capacity {
		return apperrors.NewConflict(apperrors.ConflictCapacity, "class is full")
	}

	s.nextID++
	e.ID = s.nextID
	copied := *e
	s.enrollments[e.ID] = &copied
	return nil
}

func (s *memStore) CancelRoomBooking(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[id]
	if !ok {
		return apperrors.NewNotFound("room reservation")
	}
	booking.Status = db.BookingStatusCancelled
	return nil
}

func (s *memStore) CancelEnrollment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return apperrors.NewNotFound("class reservation")
	}
	enrollment.Status = db.EnrollmentStatusCancelled
	return nil
}

func (s *memStore) ActiveBookingIDsPastEnd(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, b := range s.bookings {
		if b.Status == db.BookingStatusActive && !b.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) MarkBookingsFinished(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if b, ok := s.bookings[id]; ok {
			b.Status = db.BookingStatusFinished
		}
	}
	return nil
}

func (s *memStore) ActiveClassIDsPastEnd(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, c := range s.classes {
		if c.Status == db.ClassStatusActive && !c.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) MarkClassesCompleted(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if c, ok := s.classes[id]; ok {
			c.Status = db.ClassStatusCompleted
		}
	}
	return nil
}

// memReminderStore is the in-memory counterpart of the reminder repository.
// ClaimDue flips pending rows to processing under the same lock that reads
// them, so concurrent batches never share a row.
type memReminderStore struct {
	mu        sync.Mutex
	nextID    int64
	reminders   map[int64]*db.EmailReminder
	sources     map[string]*entities.ReminderSource
	createErr   error
	markSentErr error
}

func newMemReminderStore() *memReminderStore {
	return &memReminderStore{
		reminders: make(map[int64]*db.EmailReminder),
		sources:   make(map[string]*entities.ReminderSource),
	}
}

func sourceKey(kind string, sourceID int64) string {
	return fmt.Sprintf("%s/%d", kind, sourceID)
}

func (s *memReminderStore) setSource(src entities.ReminderSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[sourceKey(src.Kind, src.SourceID)] = &src
}

func (s *memReminderStore) get(id int64) db.EmailReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reminders[id]
}

func (s *memReminderStore) Create(_ context.Context, rem *db.EmailReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	rem.ID = s.nextID
	copied := *rem
	s.reminders[rem.ID] = &copied
	return nil
}

func (s *memReminderStore) FindPendingBySource(_ context.Context, kind string, sourceID int64) (*db.EmailReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rem := range s.reminders {
		if rem.SourceKind == kind && rem.SourceID == sourceID && rem.Status == db.ReminderStatusPending {
			copied := *rem
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memReminderStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]db.EmailReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []db.EmailReminder
	for _, rem := range s.reminders {
		if len(claimed) >= limit {
			break
		}
		if rem.Status == db.ReminderStatusPending && !rem.ScheduledTime.After(now) {
			rem.Status = db.ReminderStatusProcessing
			claimed = append(claimed, *rem)
		}
	}
	return claimed, nil
}

func (s *memReminderStore) MarkSent(_ context.Context, id int64, sentAt time.Time, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markSentErr != nil {
		return s.markSentErr
	}
	rem, ok := s.reminders[id]
	if !ok || rem.Status != db.ReminderStatusProcessing {
		return apperrors.NewNotFound("reminder")
	}
	rem.Status = db.ReminderStatusSent
	rem.SentAt = sqlTime(sentAt)
	rem.ProviderMessageID = sqlString(providerMessageID)
	return nil
}

func (s *memReminderStore) MarkFailed(_ context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[id]
	if !ok {
		return apperrors.NewNotFound("reminder")
	}
	rem.Status = db.ReminderStatusFailed
	rem.ErrorMessage = sqlString(errorMessage)
	return nil
}

func (s *memReminderStore) FailPendingBySource(_ context.Context, kind string, sourceID int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rem := range s.reminders {
		if rem.SourceKind == kind && rem.SourceID == sourceID && rem.Status == db.ReminderStatusPending {
			rem.Status = db.ReminderStatusFailed
			rem.ErrorMessage = sqlString(errorMessage)
		}
	}
	return nil
}

func (s *memReminderStore) GetSource(_ context.Context, kind string, sourceID int64) (*entities.ReminderSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceKey(kind, sourceID)]
	if !ok {
		return nil, apperrors.NewNotFound("reminder source")
	}
	copied := *src
	return &copied, nil
}

func (s *memReminderStore) CountByStatus(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, rem := range s.reminders {
		counts[rem.Status]++
	}
	return counts, nil
}

type sentMessage struct {
	ToEmail    string
	ToName     string
	TemplateID string
	Params     map[string]string
}

// fakeGateway records template sends. failFor marks recipient addresses
// whose sends should error.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[string]error)}
}

func (g *fakeGateway) SendTemplate(_ context.Context, toEmail, toName, templateID string, params map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failFor[toEmail]; ok {
		return "", err
	}
	g.sent = append(g.sent, sentMessage{ToEmail: toEmail, ToName: toName, TemplateID: templateID, Params: params})
	return fmt.Sprintf("msg-%d", len(g.sent)), nil
}

func (g *fakeGateway) sentMessages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

// recordingScheduler captures async reminder scheduling calls. The channel
// lets tests wait for the goroutine the services fire after a create.
type recordingScheduler struct {
	bookings    chan db.RoomBooking
	enrollments chan db.ClassEnrollment
	err         error
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{
		bookings:    make(chan db.RoomBooking, 16),
		enrollments: make(chan db.ClassEnrollment, 16),
	}
}

func (r *recordingScheduler) ScheduleForBooking(_ context.Context, b *db.RoomBooking) (*db.EmailReminder, error) {
	r.bookings <- *b
	if r.err != nil {
		return nil, r.err
	}
	return &db.EmailReminder{SourceKind: db.ReminderKindRoomBooking, SourceID: b.ID}, nil
}

func (r *recordingScheduler) ScheduleForEnrollment(_ context.Context, e *db.ClassEnrollment, _ *db.FitnessClass) (*db.EmailReminder, error) {
	r.enrollments <- *e
	if r.err != nil {
		return nil, r.err
	}
	return &db.EmailReminder{SourceKind: db.ReminderKindClassEnrollment, SourceID: e.ID}, nil
}

func sqlTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func sqlString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
