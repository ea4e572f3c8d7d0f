package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"hanapbahay/internal/events"
	"hanapbahay/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockDirectory) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) Notify(ctx context.Context, listingID, tenantID, ownerID int64, body string) error {
	return m.Called(ctx, listingID, tenantID, ownerID, body).Error(0)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func textTo(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func TestNotifier_BookingApproved(t *testing.T) {
	dir := new(mockDirectory)
	poster := new(mockPoster)
	sender := new(mockSender)
	bus := events.NewEventBus()
	NewNotifier(dir, poster, NewTelegramChannel(sender), testLogger()).Subscribe(bus)

	dir.On("GetUserByID", mock.Anything, int64(20)).Return(&models.User{ID: 20, TelegramChatID: 777}, nil)
	poster.On("Notify", mock.Anything, int64(5), int64(20), int64(10), mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "approved")
	})).Return(nil).Once()
	sender.On("Send", textTo(777, "Studio")).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventBookingApproved, events.BookingEventPayload{
		BookingID:    1,
		ListingID:    5,
		ListingTitle: "Studio",
		TenantID:     20,
		OwnerID:      10,
		MoveInDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	poster.AssertExpectations(t)
	sender.AssertExpectations(t)
	dir.AssertNotCalled(t, "GetUserByID", mock.Anything, int64(10))
}

func TestNotifier_PaymentOverdueReachesBoth(t *testing.T) {
	dir := new(mockDirectory)
	poster := new(mockPoster)
	sender := new(mockSender)
	bus := events.NewEventBus()
	NewNotifier(dir, poster, NewTelegramChannel(sender), testLogger()).Subscribe(bus)

	dir.On("GetBooking", mock.Anything, int64(3)).Return(&models.Booking{ID: 3, ListingID: 9}, nil)
	dir.On("GetUserByID", mock.Anything, int64(20)).Return(&models.User{ID: 20, TelegramChatID: 777}, nil)
	dir.On("GetUserByID", mock.Anything, int64(10)).Return(&models.User{ID: 10}, nil)
	poster.On("Notify", mock.Anything, int64(9), int64(20), int64(10), mock.Anything).Return(nil).Once()
	sender.On("Send", textTo(777, "₱8,400.00")).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventPaymentOverdue, events.PaymentEventPayload{
		PaymentID: 7,
		BookingID: 3,
		TenantID:  20,
		OwnerID:   10,
		Period:    "2025-05",
		Status:    models.PaymentOverdue,
		Amount:    800000,
		LateFee:   40000,
	}))

	poster.AssertExpectations(t)
	sender.AssertExpectations(t)
	dir.AssertCalled(t, "GetUserByID", mock.Anything, int64(10))
}

func TestNotifier_FailuresDoNotStopDelivery(t *testing.T) {
	dir := new(mockDirectory)
	poster := new(mockPoster)
	sender := new(mockSender)
	bus := events.NewEventBus()
	NewNotifier(dir, poster, NewTelegramChannel(sender), testLogger()).Subscribe(bus)

	dir.On("GetUserByID", mock.Anything, int64(10)).Return(&models.User{ID: 10, TelegramChatID: 555}, nil)
	poster.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db locked")).Once()
	sender.On("Send", textTo(555, "Juan")).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventBookingRequested, events.BookingEventPayload{
		ListingID:    5,
		ListingTitle: "Studio",
		TenantID:     20,
		OwnerID:      10,
		TenantName:   "Juan",
	}))

	sender.AssertExpectations(t)
}

func TestNotifier_WithoutTelegram(t *testing.T) {
	dir := new(mockDirectory)
	poster := new(mockPoster)
	bus := events.NewEventBus()
	NewNotifier(dir, poster, nil, testLogger()).Subscribe(bus)

	dir.On("GetBooking", mock.Anything, int64(3)).Return(&models.Booking{ID: 3, ListingID: 9}, nil)
	poster.On("Notify", mock.Anything, int64(9), int64(20), int64(10), "Payment for 2025-05 confirmed. Salamat!").
		Return(nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventPaymentConfirmed, events.PaymentEventPayload{
		BookingID: 3,
		TenantID:  20,
		OwnerID:   10,
		Period:    "2025-05",
		Status:    models.PaymentPaid,
	}))

	poster.AssertExpectations(t)
	dir.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestNotifier_GatewayMoneyNotices(t *testing.T) {
	dir := new(mockDirectory)
	poster := new(mockPoster)
	bus := events.NewEventBus()
	NewNotifier(dir, poster, nil, testLogger()).Subscribe(bus)

	dir.On("GetBooking", mock.Anything, int64(3)).Return(&models.Booking{ID: 3, ListingID: 9}, nil)
	poster.On("Notify", mock.Anything, int64(9), int64(20), int64(10), mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "₱4,000.00") && strings.Contains(body, "not applied")
	})).Return(nil).Once()
	poster.On("Notify", mock.Anything, int64(9), int64(20), int64(10), mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "set aside")
	})).Return(nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventPaymentUnapplied, events.PaymentEventPayload{
		BookingID:     3,
		TenantID:      20,
		OwnerID:       10,
		Period:        "2025-05",
		Status:        models.PaymentPaid,
		GatewayAmount: 400000,
	}))
	require.NoError(t, bus.PublishJSON(events.EventPaymentGateway, events.PaymentEventPayload{
		BookingID:  3,
		TenantID:   20,
		OwnerID:    10,
		Period:     "2025-05",
		Status:     models.PaymentPaid,
		AmountPaid: 800000,
		Reason:     "superseded by online payment",
	}))

	poster.AssertExpectations(t)
}

func TestPeso(t *testing.T) {
	assert.Equal(t, "₱0.00", Peso(0))
	assert.Equal(t, "₱8.05", Peso(805))
	assert.Equal(t, "₱8,000.00", Peso(800000))
	assert.Equal(t, "₱1,234,567.89", Peso(123456789))
	assert.Equal(t, "-₱400.00", Peso(-40000))
}
