package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
)

type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) AppendMessage(ctx context.Context, input service.AppendMessageInput) (*service.AppendMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AppendMessageOutput), args.Error(1)
}

func (m *MockConversationService) GetMessages(ctx context.Context, userID, publicID string) ([]*domain.Message, error) {
	args := m.Called(ctx, userID, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockConversationService) ListConversations(ctx context.Context, input service.ListConversationsInput) (*service.ListConversationsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListConversationsOutput), args.Error(1)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestConversation() *domain.Conversation {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Conversation{
		ID:        3,
		PublicID:  "c0ffee00-0000-0000-0000-000000000001",
		UserID:    "user-1",
		OrgID:     "org-1",
		Title:     "How do we deploy?",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestConversationHandler_AppendMessage_Success(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	out := &service.AppendMessageOutput{
		Conversation: newTestConversation(),
		Message: &domain.Message{
			ID:             10,
			ConversationID: 3,
			Role:           domain.MessageRoleUser,
			Content:        "How do we deploy?",
			CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	mockSvc.On("AppendMessage", mock.Anything, service.AppendMessageInput{
		UserID:  "user-1",
		OrgID:   "org-1",
		Role:    domain.MessageRoleUser,
		Content: "How do we deploy?",
	}).Return(out, nil)

	body := `{"role":"user","content":"How do we deploy?"}`
	req := requestWithIdentity(http.MethodPost, "/conversations/messages", []byte(body))
	w := httptest.NewRecorder()

	handler.AppendMessage(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	conversation := data["conversation"].(map[string]interface{})
	assert.Equal(t, "c0ffee00-0000-0000-0000-000000000001", conversation["id"])
	message := data["message"].(map[string]interface{})
	assert.Equal(t, "user", message["role"])
	mockSvc.AssertExpectations(t)
}

func TestConversationHandler_AppendMessage_DefaultsToUserRole(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	out := &service.AppendMessageOutput{
		Conversation: newTestConversation(),
		Message:      &domain.Message{ID: 10, Role: domain.MessageRoleUser, Content: "hello"},
	}
	mockSvc.On("AppendMessage", mock.Anything, mock.MatchedBy(func(input service.AppendMessageInput) bool {
		return input.Role == domain.MessageRoleUser
	})).Return(out, nil)

	body := `{"content":"hello"}`
	req := requestWithIdentity(http.MethodPost, "/conversations/messages", []byte(body))
	w := httptest.NewRecorder()

	handler.AppendMessage(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestConversationHandler_AppendMessage_MissingContent(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	body := `{"role":"user"}`
	req := requestWithIdentity(http.MethodPost, "/conversations/messages", []byte(body))
	w := httptest.NewRecorder()

	handler.AppendMessage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "content is required")
	mockSvc.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
}

func TestConversationHandler_GetMessages_Success(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	messages := []*domain.Message{
		{ID: 1, Role: domain.MessageRoleUser, Content: "question"},
		{ID: 2, Role: domain.MessageRoleAssistant, Content: "answer"},
	}
	mockSvc.On("GetMessages", mock.Anything, "user-1", "conv-public-id").Return(messages, nil)

	req := requestWithIdentity(http.MethodGet, "/conversations/conv-public-id/messages", nil)
	req = withURLParam(req, "id", "conv-public-id")
	w := httptest.NewRecorder()

	handler.GetMessages(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].([]interface{})
	assert.Len(t, data, 2)
	mockSvc.AssertExpectations(t)
}

func TestConversationHandler_GetMessages_NotFound(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	mockSvc.On("GetMessages", mock.Anything, "user-1", "missing").Return(nil, domain.ErrConversationNotFound)

	req := requestWithIdentity(http.MethodGet, "/conversations/missing/messages", nil)
	req = withURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.GetMessages(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_List_Success(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	out := &service.ListConversationsOutput{
		Items:   []*domain.Conversation{newTestConversation()},
		Cursor:  "next-cursor",
		HasMore: true,
	}
	mockSvc.On("ListConversations", mock.Anything, service.ListConversationsInput{
		UserID: "user-1",
		Cursor: "prev-cursor",
		Limit:  10,
	}).Return(out, nil)

	req := requestWithIdentity(http.MethodGet, "/conversations?cursor=prev-cursor&limit=10", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "next-cursor", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	mockSvc.AssertExpectations(t)
}

func TestConversationHandler_List_InvalidLimit(t *testing.T) {
	mockSvc := new(MockConversationService)
	handler := NewConversationHandler(mockSvc)

	req := requestWithIdentity(http.MethodGet, "/conversations?limit=abc", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ListConversations", mock.Anything, mock.Anything)
}
