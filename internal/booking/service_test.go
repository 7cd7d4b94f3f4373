package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

// RunInTx hands the callback the mock itself, so expectations set on the
// mock cover both direct and transactional calls.
func (m *MockDBLayer) RunInTx(ctx context.Context, fn func(tx booking.DBLayer) error) error {
	return fn(m)
}

func (m *MockDBLayer) GetEvent(ctx context.Context, eventID, tenantID string) (*models.Event, error) {
	args := m.Called(eventID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) CountBookings(ctx context.Context, eventID, tenantID, status string) (int, error) {
	args := m.Called(eventID, tenantID, status)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) CreateBooking(ctx context.Context, booking models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockDBLayer) GetBookingByID(ctx context.Context, bookingID, tenantID string) (*models.Booking, error) {
	args := m.Called(bookingID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	args := m.Called(bookingID, status)
	return args.Error(0)
}

func (m *MockDBLayer) FindOldestWaitlisted(ctx context.Context, eventID, tenantID string) (*models.Booking, error) {
	args := m.Called(eventID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) ListBookingsByUser(ctx context.Context, userID, tenantID string) ([]models.Booking, error) {
	args := m.Called(userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockEventLock struct {
	mock.Mock
}

func (m *MockEventLock) Acquire(ctx context.Context, tenantID, eventID, token string) (bool, error) {
	args := m.Called(tenantID, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventLock) Release(ctx context.Context, tenantID, eventID, token string) error {
	args := m.Called(tenantID, eventID)
	return args.Error(0)
}

type MockSideEffects struct {
	mock.Mock
}

func (m *MockSideEffects) BookingCreated(ctx context.Context, booking models.Booking, event *models.Event) {
	m.Called(booking, event)
}

func (m *MockSideEffects) BookingCanceled(ctx context.Context, booking models.Booking, prevStatus string) {
	m.Called(booking, prevStatus)
}

func (m *MockSideEffects) BookingPromoted(ctx context.Context, booking models.Booking) {
	m.Called(booking)
}

func newTestService(db *MockDBLayer, lock *MockEventLock, effects *MockSideEffects) *booking.Service {
	svc := booking.NewService(db, lock, effects, logger.NewLogger())
	svc.LockRetryDelay = time.Millisecond
	return svc
}

func attendee(userID, tenantID string) auth.Principal {
	return auth.Principal{UserID: userID, TenantID: tenantID, Role: models.RoleAttendee}
}

func testEvent(capacity int) *models.Event {
	return &models.Event{
		ID:       "event1",
		TenantID: "tenant1",
		Title:    "Go Meetup",
		Date:     time.Now().AddDate(0, 0, 7),
		Capacity: capacity,
	}
}

// Tests start here
func TestSubmitRequest_ConfirmsUnderCapacity(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	event := testEvent(10)
	mockDB.On("GetEvent", "event1", "tenant1").Return(event, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).Return(3, nil)
	mockDB.On("CreateBooking", mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.StatusConfirmed && b.EventID == "event1" && b.UserID == "user1"
	})).Return(nil)
	mockEffects.On("BookingCreated", mock.Anything, event).Return()

	result, err := svc.SubmitRequest(context.Background(), "event1", attendee("user1", "tenant1"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, result.Status)
	assert.NotEmpty(t, result.ID)
	mockDB.AssertExpectations(t)
	mockLock.AssertExpectations(t)
	mockEffects.AssertExpectations(t)
}

func TestSubmitRequest_WaitlistsAtCapacity(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	event := testEvent(5)
	mockDB.On("GetEvent", "event1", "tenant1").Return(event, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).Return(5, nil)
	mockDB.On("CreateBooking", mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.StatusWaitlisted
	})).Return(nil)
	mockEffects.On("BookingCreated", mock.Anything, event).Return()

	result, err := svc.SubmitRequest(context.Background(), "event1", attendee("user1", "tenant1"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusWaitlisted, result.Status)
	mockDB.AssertExpectations(t)
}

func TestSubmitRequest_EventNotFound(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	mockDB.On("GetEvent", "missing", "tenant1").Return(nil, nil)

	result, err := svc.SubmitRequest(context.Background(), "missing", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	mockLock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
}

func TestSubmitRequest_OnlyAttendeesCanBook(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	organizer := auth.Principal{UserID: "org1", TenantID: "tenant1", Role: models.RoleOrganizer}

	result, err := svc.SubmitRequest(context.Background(), "event1", organizer)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrForbidden)
	mockDB.AssertNotCalled(t, "GetEvent", mock.Anything, mock.Anything)
}

func TestSubmitRequest_LockExhaustionIsUnavailable(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)
	svc.LockAttempts = 3

	mockDB.On("GetEvent", "event1", "tenant1").Return(testEvent(10), nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(false, nil).Times(3)

	result, err := svc.SubmitRequest(context.Background(), "event1", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrUnavailable)
	mockLock.AssertExpectations(t)
	mockDB.AssertNotCalled(t, "CreateBooking", mock.Anything)
}

func TestCancel_OwnConfirmedBookingTriggersPromotion(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	confirmed := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "user1",
		TenantID: "tenant1",
		Status:   models.StatusConfirmed,
	}
	waiting := &models.Booking{
		ID:       "booking2",
		EventID:  "event1",
		UserID:   "user2",
		TenantID: "tenant1",
		Status:   models.StatusWaitlisted,
	}

	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(confirmed, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("UpdateBookingStatus", "booking1", models.StatusCanceled).Return(nil)
	mockEffects.On("BookingCanceled", mock.Anything, models.StatusConfirmed).Return()

	// The cancellation freed a confirmed seat, so a promotion pass runs.
	mockDB.On("GetEvent", "event1", "tenant1").Return(testEvent(1), nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).Return(0, nil)
	mockDB.On("FindOldestWaitlisted", "event1", "tenant1").Return(waiting, nil)
	mockDB.On("UpdateBookingStatus", "booking2", models.StatusConfirmed).Return(nil)
	mockEffects.On("BookingPromoted", mock.MatchedBy(func(b models.Booking) bool {
		return b.ID == "booking2" && b.Status == models.StatusConfirmed
	})).Return()

	result, err := svc.Cancel(context.Background(), "booking1", attendee("user1", "tenant1"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, result.Status)
	mockDB.AssertExpectations(t)
	mockEffects.AssertExpectations(t)
}

func TestCancel_WaitlistedBookingDoesNotPromote(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	waitlisted := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "user1",
		TenantID: "tenant1",
		Status:   models.StatusWaitlisted,
	}

	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(waitlisted, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("UpdateBookingStatus", "booking1", models.StatusCanceled).Return(nil)
	mockEffects.On("BookingCanceled", mock.Anything, models.StatusWaitlisted).Return()

	result, err := svc.Cancel(context.Background(), "booking1", attendee("user1", "tenant1"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, result.Status)
	// No seat was freed, so the promoter never runs.
	mockDB.AssertNotCalled(t, "FindOldestWaitlisted", mock.Anything, mock.Anything)
}

func TestCancel_OtherUsersBookingIsForbidden(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	other := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "someone-else",
		TenantID: "tenant1",
		Status:   models.StatusConfirmed,
	}
	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(other, nil)

	result, err := svc.Cancel(context.Background(), "booking1", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrForbidden)
	mockDB.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything)
}

func TestCancel_OrganizerCanCancelAnyBookingInTenant(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	b := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "user1",
		TenantID: "tenant1",
		Status:   models.StatusWaitlisted,
	}
	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(b, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("UpdateBookingStatus", "booking1", models.StatusCanceled).Return(nil)
	mockEffects.On("BookingCanceled", mock.Anything, models.StatusWaitlisted).Return()

	organizer := auth.Principal{UserID: "org1", TenantID: "tenant1", Role: models.RoleOrganizer}
	result, err := svc.Cancel(context.Background(), "booking1", organizer)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, result.Status)
	mockDB.AssertExpectations(t)
}

func TestCancel_AlreadyCanceled(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	canceled := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "user1",
		TenantID: "tenant1",
		Status:   models.StatusCanceled,
	}
	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(canceled, nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)

	result, err := svc.Cancel(context.Background(), "booking1", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrAlreadyCanceled)
	mockDB.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything)
	mockEffects.AssertNotCalled(t, "BookingCanceled", mock.Anything, mock.Anything)
}

func TestCancel_BookingNotFound(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	mockDB.On("GetBookingByID", "missing", "tenant1").Return(nil, nil)

	result, err := svc.Cancel(context.Background(), "missing", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestPromoteIfPossible_NoFreeSeatIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	mockDB.On("GetEvent", "event1", "tenant1").Return(testEvent(2), nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).Return(2, nil)

	promoted, err := svc.PromoteIfPossible(context.Background(), "event1", "tenant1")

	assert.NoError(t, err)
	assert.Nil(t, promoted)
	mockDB.AssertNotCalled(t, "FindOldestWaitlisted", mock.Anything, mock.Anything)
	mockEffects.AssertNotCalled(t, "BookingPromoted", mock.Anything)
}

func TestPromoteIfPossible_EmptyWaitlistIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	mockDB.On("GetEvent", "event1", "tenant1").Return(testEvent(2), nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).Return(1, nil)
	mockDB.On("FindOldestWaitlisted", "event1", "tenant1").Return(nil, nil)

	promoted, err := svc.PromoteIfPossible(context.Background(), "event1", "tenant1")

	assert.NoError(t, err)
	assert.Nil(t, promoted)
	mockDB.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything)
}

func TestGetBooking_AttendeeCannotSeeOthersBooking(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	other := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "someone-else",
		TenantID: "tenant1",
		Status:   models.StatusConfirmed,
	}
	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(other, nil)

	result, err := svc.GetBooking(context.Background(), "booking1", attendee("user1", "tenant1"))

	// Indistinguishable from a missing booking.
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestGetBooking_OrganizerSeesAnyBookingInTenant(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	b := &models.Booking{
		ID:       "booking1",
		EventID:  "event1",
		UserID:   "user1",
		TenantID: "tenant1",
		Status:   models.StatusConfirmed,
	}
	mockDB.On("GetBookingByID", "booking1", "tenant1").Return(b, nil)

	organizer := auth.Principal{UserID: "org1", TenantID: "tenant1", Role: models.RoleOrganizer}
	result, err := svc.GetBooking(context.Background(), "booking1", organizer)

	assert.NoError(t, err)
	assert.Equal(t, "booking1", result.ID)
}

func TestListByUser(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	bookings := []models.Booking{
		{ID: uuid.NewString(), UserID: "user1", TenantID: "tenant1", Status: models.StatusConfirmed},
		{ID: uuid.NewString(), UserID: "user1", TenantID: "tenant1", Status: models.StatusWaitlisted},
	}
	mockDB.On("ListBookingsByUser", "user1", "tenant1").Return(bookings, nil)

	result, err := svc.ListByUser(context.Background(), attendee("user1", "tenant1"))

	assert.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestSubmitRequest_DBErrorPropagates(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockEventLock)
	mockEffects := new(MockSideEffects)
	svc := newTestService(mockDB, mockLock, mockEffects)

	mockDB.On("GetEvent", "event1", "tenant1").Return(testEvent(10), nil)
	mockLock.On("Acquire", "tenant1", "event1").Return(true, nil)
	mockLock.On("Release", "tenant1", "event1").Return(nil)
	mockDB.On("CountBookings", "event1", "tenant1", models.StatusConfirmed).
		Return(0, errors.New("connection reset"))

	result, err := svc.SubmitRequest(context.Background(), "event1", attendee("user1", "tenant1"))

	assert.Nil(t, result)
	assert.Error(t, err)
	mockEffects.AssertNotCalled(t, "BookingCreated", mock.Anything, mock.Anything)
	// The lock is always released, even when the transaction fails.
	mockLock.AssertExpectations(t)
}
