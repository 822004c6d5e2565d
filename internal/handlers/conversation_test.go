package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"upnext-service/internal/mocks"
	"upnext-service/internal/models"
	"upnext-service/internal/repositories"
	"upnext-service/internal/ws"
)

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.POST("/conversations", handler.CreateConversation)
	r.POST("/conversations/direct", handler.StartDirect)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.POST("/messages/:message_id/read", handler.MarkMessageRead)
	r.POST("/messages/:message_id/edit", handler.EditMessage)
	r.POST("/messages/:message_id/react", handler.ReactToMessage)
	r.DELETE("/messages/:message_id/reaction", handler.RemoveReaction)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversationRepo, nil, nil, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	conversationRepo.On("ListSummaries", mock.Anything, 1).Return([]models.ConversationSummary{{ID: 3, UnreadCount: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.ConversationSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["conversations"], 1)
	assert.Equal(t, 3, resp["conversations"][0].ID)

	conversationRepo.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversationRepo, nil, nil, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	conversationRepo.On("ListSummaries", mock.Anything, 1).Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	conversationRepo.AssertExpectations(t)
}

func TestStartDirectSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(conversationRepo, nil, userRepo, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil).Once()
	conversationRepo.On("GetOrCreateDirect", mock.Anything, 1, 2).Return(models.Conversation{ID: 9}, true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	conversationRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestStartDirectExistingReturnsOK(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(conversationRepo, nil, userRepo, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	conversationRepo.On("GetOrCreateDirect", mock.Anything, 1, 2).Return(models.Conversation{ID: 9}, false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartDirectWithSelfRejected(t *testing.T) {
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), nil, new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectUnknownUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), nil, userRepo, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	userRepo.On("GetUser", mock.Anything, 99).Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestGetMessagesForbiddenForNonParticipant(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversationRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	conversationRepo.AssertExpectations(t)
}

func TestGetMessagesSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), nil)
	router := setupConversationRouter(handler)

	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("ListConversationMessages", mock.Anything, 5).Return([]models.Message{
		{ID: 10, ConversationID: 5, SenderID: 2, Content: "hi"},
	}, nil).Once()
	userRepo.On("BulkSummaries", mock.Anything, []int{2}).Return([]models.UserSummary{{ID: 2, Username: "bob"}}, nil).Once()
	messageRepo.On("ListReactions", mock.Anything, 10).Return([]models.MessageReaction{
		{MessageID: 10, UserID: 1, Reaction: models.ReactionLike},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	assert.Equal(t, "bob", resp["messages"][0]["sender_username"])

	conversationRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), notifier)
	router := setupConversationRouter(handler)

	stored := models.Message{ID: 11, ConversationID: 5, SenderID: 1, Content: "hello", CreatedAt: time.Now()}
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 5, 1, "hello", (*int)(nil)).Return(stored, nil).Once()
	notifier.On("MessageCreated", mock.Anything, stored).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	conversationRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPostMessageEmptyContentRejected(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversationRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkMessageReadFirstTimeNotifies(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), notifier)
	router := setupConversationRouter(handler)

	receipt := models.ReadReceipt{MessageID: 11, UserID: 1, ReadAt: time.Now()}
	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 2}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 11, 1).Return(receipt, true, nil).Once()
	notifier.On("ReadReceiptCreated", mock.Anything, receipt).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertExpectations(t)
}

func TestMarkMessageReadRepeatIsIdempotent(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), notifier)
	router := setupConversationRouter(handler)

	receipt := models.ReadReceipt{MessageID: 11, UserID: 1, ReadAt: time.Now()}
	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 2}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 11, 1).Return(receipt, false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertNotCalled(t, "ReadReceiptCreated", mock.Anything, mock.Anything)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	editedAt := time.Now()
	updated := models.Message{ID: 11, ConversationID: 5, SenderID: 1, Content: "changed", EditedAt: &editedAt}
	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 1, Content: "old"}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, 11, 1, "changed").Return(updated, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/edit", bytes.NewBufferString(`{"content":"changed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "changed", resp.Content)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageByNonSenderForbidden(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 2}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, 11, 1, "changed").Return(models.Message{}, repositories.ErrNotMessageSender).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/edit", bytes.NewBufferString(`{"content":"changed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestReactToMessageSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), notifier)
	router := setupConversationRouter(handler)

	msg := models.Message{ID: 11, ConversationID: 5, SenderID: 2}
	reaction := models.MessageReaction{MessageID: 11, UserID: 1, Reaction: models.ReactionLove}
	messageRepo.On("GetMessage", mock.Anything, 11).Return(msg, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("UpsertReaction", mock.Anything, 11, 1, models.ReactionLove).Return(reaction, nil).Once()
	notifier.On("ReactionSaved", mock.Anything, msg, reaction).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/react", bytes.NewBufferString(`{"reaction":"love"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestReactToMessageInvalidReaction(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/react", bytes.NewBufferString(`{"reaction":"sparkles"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "UpsertReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReactToMessageForbiddenForNonParticipant(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 9}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 9, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/react", bytes.NewBufferString(`{"reaction":"like"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "UpsertReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveReactionSuccess(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 2}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("DeleteReaction", mock.Anything, 11, 1).Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/11/reaction", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestRemoveReactionMissingIsStillNoContent(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, new(mocks.UserRepositoryMock), ws.NewHub(), new(mocks.NotifierMock))
	router := setupConversationRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 11).Return(models.Message{ID: 11, ConversationID: 5, SenderID: 2}, nil).Once()
	conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("DeleteReaction", mock.Anything, 11, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/11/reaction", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestCreateConversationWithInitialMessage(t *testing.T) {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewConversationHandler(conversationRepo, messageRepo, userRepo, ws.NewHub(), notifier)
	router := setupConversationRouter(handler)

	stored := models.Message{ID: 20, ConversationID: 12, SenderID: 1, Content: "welcome"}
	userRepo.On("BulkSummaries", mock.Anything, []int{1, 2, 3}).Return([]models.UserSummary{{ID: 1}, {ID: 2}, {ID: 3}}, nil).Once()
	conversationRepo.On("CreateConversation", mock.Anything, []int{1, 2, 3}).Return(models.Conversation{ID: 12}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 12, 1, "welcome", (*int)(nil)).Return(stored, nil).Once()
	notifier.On("MessageCreated", mock.Anything, stored).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"participant_ids":[2,3],"content":"welcome"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	conversationRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}
