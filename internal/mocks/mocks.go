package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"upnext-service/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, displayName, passwordHash string) (models.User, error) {
	args := m.Called(ctx, username, displayName, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkSummaries(ctx context.Context, ids []int) ([]models.UserSummary, error) {
	args := m.Called(ctx, ids)
	var list []models.UserSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.UserSummary)
	}
	return list, args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, bool, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) CreateConversation(ctx context.Context, participantIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, participantIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ParticipantIDs(ctx context.Context, conversationID int) ([]int, error) {
	args := m.Called(ctx, conversationID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content, replyToID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID, userID int) (models.ReadReceipt, bool, error) {
	args := m.Called(ctx, messageID, userID)
	var receipt models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipt = val.(models.ReadReceipt)
	}
	return receipt, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) UnreadMessages(ctx context.Context, conversationID, userID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID, userID int, reaction string) (models.MessageReaction, error) {
	args := m.Called(ctx, messageID, userID, reaction)
	var saved models.MessageReaction
	if val := args.Get(0); val != nil {
		saved = val.(models.MessageReaction)
	}
	return saved, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteReaction(ctx context.Context, messageID, userID int) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListReactions(ctx context.Context, messageID int) ([]models.MessageReaction, error) {
	args := m.Called(ctx, messageID)
	var list []models.MessageReaction
	if val := args.Get(0); val != nil {
		list = val.([]models.MessageReaction)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) SetTyping(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ClearTyping(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type EventRepositoryMock struct {
	mock.Mock
}

func (m *EventRepositoryMock) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	args := m.Called(ctx, event)
	var created models.Event
	if val := args.Get(0); val != nil {
		created = val.(models.Event)
	}
	return created, args.Error(1)
}

func (m *EventRepositoryMock) GetEvent(ctx context.Context, eventID int) (models.Event, error) {
	args := m.Called(ctx, eventID)
	var event models.Event
	if val := args.Get(0); val != nil {
		event = val.(models.Event)
	}
	return event, args.Error(1)
}

func (m *EventRepositoryMock) Attend(ctx context.Context, eventID, userID int) (models.EventAttendee, bool, error) {
	args := m.Called(ctx, eventID, userID)
	var attendee models.EventAttendee
	if val := args.Get(0); val != nil {
		attendee = val.(models.EventAttendee)
	}
	return attendee, args.Bool(1), args.Error(2)
}

func (m *EventRepositoryMock) CancelAttendance(ctx context.Context, eventID, userID int) (*models.EventAttendee, error) {
	args := m.Called(ctx, eventID, userID)
	var promoted *models.EventAttendee
	if val := args.Get(0); val != nil {
		promoted = val.(*models.EventAttendee)
	}
	return promoted, args.Error(1)
}

func (m *EventRepositoryMock) ListAttendees(ctx context.Context, eventID int) ([]models.EventAttendee, error) {
	args := m.Called(ctx, eventID)
	var list []models.EventAttendee
	if val := args.Get(0); val != nil {
		list = val.([]models.EventAttendee)
	}
	return list, args.Error(1)
}

type VenueRepositoryMock struct {
	mock.Mock
}

func (m *VenueRepositoryMock) CreateVenue(ctx context.Context, venue models.Venue) (models.Venue, error) {
	args := m.Called(ctx, venue)
	var created models.Venue
	if val := args.Get(0); val != nil {
		created = val.(models.Venue)
	}
	return created, args.Error(1)
}

func (m *VenueRepositoryMock) GetVenue(ctx context.Context, venueID int) (models.Venue, error) {
	args := m.Called(ctx, venueID)
	var venue models.Venue
	if val := args.Get(0); val != nil {
		venue = val.(models.Venue)
	}
	return venue, args.Error(1)
}

func (m *VenueRepositoryMock) AddAvailability(ctx context.Context, availability models.VenueAvailability) (models.VenueAvailability, error) {
	args := m.Called(ctx, availability)
	var created models.VenueAvailability
	if val := args.Get(0); val != nil {
		created = val.(models.VenueAvailability)
	}
	return created, args.Error(1)
}

func (m *VenueRepositoryMock) ListAvailability(ctx context.Context, venueID int) ([]models.VenueAvailability, error) {
	args := m.Called(ctx, venueID)
	var list []models.VenueAvailability
	if val := args.Get(0); val != nil {
		list = val.([]models.VenueAvailability)
	}
	return list, args.Error(1)
}

func (m *VenueRepositoryMock) CreateBooking(ctx context.Context, venueID, bookerID int, bookingDate, startTime, endTime string) (models.VenueBooking, error) {
	args := m.Called(ctx, venueID, bookerID, bookingDate, startTime, endTime)
	var booking models.VenueBooking
	if val := args.Get(0); val != nil {
		booking = val.(models.VenueBooking)
	}
	return booking, args.Error(1)
}

func (m *VenueRepositoryMock) GetBooking(ctx context.Context, bookingID int) (models.VenueBooking, error) {
	args := m.Called(ctx, bookingID)
	var booking models.VenueBooking
	if val := args.Get(0); val != nil {
		booking = val.(models.VenueBooking)
	}
	return booking, args.Error(1)
}

func (m *VenueRepositoryMock) CancelBooking(ctx context.Context, bookingID int) (models.VenueBooking, error) {
	args := m.Called(ctx, bookingID)
	var booking models.VenueBooking
	if val := args.Get(0); val != nil {
		booking = val.(models.VenueBooking)
	}
	return booking, args.Error(1)
}

func (m *VenueRepositoryMock) ListBookings(ctx context.Context, venueID int) ([]models.VenueBooking, error) {
	args := m.Called(ctx, venueID)
	var list []models.VenueBooking
	if val := args.Get(0); val != nil {
		list = val.([]models.VenueBooking)
	}
	return list, args.Error(1)
}

func (m *VenueRepositoryMock) CreateReview(ctx context.Context, review models.VenueReview) (models.VenueReview, error) {
	args := m.Called(ctx, review)
	var created models.VenueReview
	if val := args.Get(0); val != nil {
		created = val.(models.VenueReview)
	}
	return created, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) MessageCreated(ctx context.Context, msg models.Message) {
	m.Called(ctx, msg)
}

func (m *NotifierMock) ReadReceiptCreated(ctx context.Context, receipt models.ReadReceipt) {
	m.Called(ctx, receipt)
}

func (m *NotifierMock) ReactionSaved(ctx context.Context, msg models.Message, reaction models.MessageReaction) {
	m.Called(ctx, msg, reaction)
}
