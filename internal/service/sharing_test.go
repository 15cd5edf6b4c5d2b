package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRequestRepository is a mock implementation of RequestRepositoryInterface
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, req *domain.KnowledgeRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) HasPending(ctx context.Context, embeddingID int64, requesterID string) (bool, error) {
	args := m.Called(ctx, embeddingID, requesterID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRequestRepository) List(ctx context.Context, q ListRequestsQuery) ([]*RequestDetail, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RequestDetail), args.Error(1)
}

// MockShareRepository is a mock implementation of ShareRepositoryInterface
type MockShareRepository struct {
	mock.Mock
}

func (m *MockShareRepository) Exists(ctx context.Context, embeddingID int64, userID string) (bool, error) {
	args := m.Called(ctx, embeddingID, userID)
	return args.Bool(0), args.Error(1)
}

// MockEmbeddingLookupRepository is a mock implementation of EmbeddingLookupRepository
type MockEmbeddingLookupRepository struct {
	mock.Mock
}

func (m *MockEmbeddingLookupRepository) GetChunkOwner(ctx context.Context, embeddingID int64) (*ChunkOwner, error) {
	args := m.Called(ctx, embeddingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChunkOwner), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, orgID, email string) (*domain.User, error) {
	args := m.Called(ctx, orgID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockNotificationRepository is a mock implementation of the notification write interfaces
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockRequestTxRepository is a mock implementation of RequestTxRepository
type MockRequestTxRepository struct {
	mock.Mock
}

func (m *MockRequestTxRepository) GetPendingForOwner(ctx context.Context, id int64, ownerID string) (*domain.KnowledgeRequest, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeRequest), args.Error(1)
}

func (m *MockRequestTxRepository) UpdateStatus(ctx context.Context, req *domain.KnowledgeRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockShareTxRepository is a mock implementation of ShareTxRepository
type MockShareTxRepository struct {
	mock.Mock
}

func (m *MockShareTxRepository) Create(ctx context.Context, share *domain.KnowledgeShare) error {
	args := m.Called(ctx, share)
	return args.Error(0)
}

// MockNotifier records realtime pushes.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) RequestCreated(ctx context.Context, ownerID string, ev RequestCreatedEvent) error {
	args := m.Called(ctx, ownerID, ev)
	return args.Error(0)
}

func (m *MockNotifier) RequestResolved(ctx context.Context, requesterID string, ev RequestResolvedEvent) error {
	args := m.Called(ctx, requesterID, ev)
	return args.Error(0)
}

type sharingFixture struct {
	requests   *MockRequestRepository
	shares     *MockShareRepository
	embeddings *MockEmbeddingLookupRepository
	users      *MockUserRepository
	notifRepo  *MockNotificationRepository
	notifier   *MockNotifier

	txRequests *MockRequestTxRepository
	txShares   *MockShareTxRepository
	txNotifs   *MockNotificationRepository
	txRunner   *testTxRunner

	service *SharingService
}

func newSharingFixture() *sharingFixture {
	f := &sharingFixture{
		requests:   new(MockRequestRepository),
		shares:     new(MockShareRepository),
		embeddings: new(MockEmbeddingLookupRepository),
		users:      new(MockUserRepository),
		notifRepo:  new(MockNotificationRepository),
		notifier:   new(MockNotifier),
		txRequests: new(MockRequestTxRepository),
		txShares:   new(MockShareTxRepository),
		txNotifs:   new(MockNotificationRepository),
	}
	f.txRunner = &testTxRunner{repos: &testTxRepos{
		requests:      f.txRequests,
		shares:        f.txShares,
		notifications: f.txNotifs,
	}}
	f.service = NewSharingService(f.requests, f.shares, f.embeddings, f.users, f.notifRepo, f.notifier, f.txRunner)
	return f
}

func TestSharingService_CreateRequest(t *testing.T) {
	ctx := context.Background()

	requester := &domain.User{ID: "user-1", OrgID: "org-1", Name: "Ada", Email: "ada@example.com"}
	owner := &ChunkOwner{EmbeddingID: 42, OwnerID: "user-2", Content: "deploy steps"}

	t.Run("creates request and notifies owner", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(owner, nil)
		f.shares.On("Exists", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.requests.On("HasPending", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.users.On("GetByID", mock.Anything, "user-1").Return(requester, nil)
		f.requests.On("Create", mock.Anything, mock.AnythingOfType("*domain.KnowledgeRequest")).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.KnowledgeRequest).ID = 7
		}).Return(nil)
		f.notifRepo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.UserID == "user-2" &&
				n.Type == domain.NotificationTypeKnowledgeRequest &&
				n.Payload["chunkContent"] == "deploy steps" &&
				n.Payload["question"] == "how do we deploy?"
		})).Return(nil)
		f.notifier.On("RequestCreated", mock.Anything, "user-2", mock.MatchedBy(func(ev RequestCreatedEvent) bool {
			return ev.RequestID == 7 && ev.RequesterName == "Ada"
		})).Return(nil)

		req, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "how do we deploy?",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(7), req.ID)
		assert.Equal(t, domain.RequestStatusPending, req.Status)
		assert.Equal(t, "user-2", req.OwnerID)
		f.requests.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})

	t.Run("unknown embedding fails before ownership check", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(99)).Return(nil, domain.ErrEmbeddingNotFound)

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 99,
			Question:    "anything",
		})

		assert.ErrorIs(t, err, domain.ErrEmbeddingNotFound)
		f.shares.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("own chunk fails before share check", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(&ChunkOwner{EmbeddingID: 42, OwnerID: "user-1"}, nil)

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "my own stuff",
		})

		assert.ErrorIs(t, err, domain.ErrOwnKnowledge)
		f.shares.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already shared fails before pending check", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(owner, nil)
		f.shares.On("Exists", mock.Anything, int64(42), "user-1").Return(true, nil)

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "again please",
		})

		assert.ErrorIs(t, err, domain.ErrAlreadyShared)
		f.requests.AssertNotCalled(t, "HasPending", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate pending request is rejected", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(owner, nil)
		f.shares.On("Exists", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.requests.On("HasPending", mock.Anything, int64(42), "user-1").Return(true, nil)

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "still waiting",
		})

		assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
		f.requests.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("empty question is rejected without lookups", func(t *testing.T) {
		f := newSharingFixture()

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "   ",
		})

		assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
		f.embeddings.AssertNotCalled(t, "GetChunkOwner", mock.Anything, mock.Anything)
	})

	t.Run("failed realtime push does not fail the request", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(owner, nil)
		f.shares.On("Exists", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.requests.On("HasPending", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.users.On("GetByID", mock.Anything, "user-1").Return(requester, nil)
		f.requests.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.notifRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.notifier.On("RequestCreated", mock.Anything, "user-2", mock.Anything).Return(errors.New("socket gone"))

		req, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "how do we deploy?",
		})

		require.NoError(t, err)
		assert.NotNil(t, req)
	})

	t.Run("failed durable notification does not fail the request", func(t *testing.T) {
		f := newSharingFixture()
		f.embeddings.On("GetChunkOwner", mock.Anything, int64(42)).Return(owner, nil)
		f.shares.On("Exists", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.requests.On("HasPending", mock.Anything, int64(42), "user-1").Return(false, nil)
		f.users.On("GetByID", mock.Anything, "user-1").Return(requester, nil)
		f.requests.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.notifRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db hiccup"))
		f.notifier.On("RequestCreated", mock.Anything, "user-2", mock.Anything).Return(nil)

		_, err := f.service.CreateRequest(ctx, CreateRequestInput{
			RequesterID: "user-1",
			EmbeddingID: 42,
			Question:    "how do we deploy?",
		})

		require.NoError(t, err)
	})
}

func TestSharingService_Respond(t *testing.T) {
	ctx := context.Background()

	conversationID := int64(11)
	newPending := func() *domain.KnowledgeRequest {
		return &domain.KnowledgeRequest{
			ID:             7,
			RequesterID:    "user-1",
			OwnerID:        "user-2",
			EmbeddingID:    42,
			ConversationID: &conversationID,
			Question:       "how do we deploy?",
			Status:         domain.RequestStatusPending,
			CreatedAt:      time.Now().UTC().Add(-time.Hour),
		}
	}

	t.Run("approve grants access and notifies requester", func(t *testing.T) {
		f := newSharingFixture()
		pending := newPending()
		f.txRequests.On("GetPendingForOwner", mock.Anything, int64(7), "user-2").Return(pending, nil)
		f.txRequests.On("UpdateStatus", mock.Anything, pending).Return(nil)
		f.txShares.On("Create", mock.Anything, mock.MatchedBy(func(share *domain.KnowledgeShare) bool {
			return share.EmbeddingID == 42 && share.SharedWithUserID == "user-1" && share.OwnerID == "user-2"
		})).Return(nil)
		f.txNotifs.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.UserID == "user-1" &&
				n.Type == domain.NotificationTypeKnowledgeApproved &&
				n.Payload["question"] == "how do we deploy?" &&
				n.Payload["conversationId"] == conversationID
		})).Return(nil)
		f.notifier.On("RequestResolved", mock.Anything, "user-1", mock.MatchedBy(func(ev RequestResolvedEvent) bool {
			return ev.RequestID == 7 &&
				ev.Status == domain.RequestStatusApproved &&
				ev.Question == "how do we deploy?" &&
				ev.ConversationID != nil && *ev.ConversationID == conversationID
		})).Return(nil)

		resolved, err := f.service.Respond(ctx, RespondInput{
			RequestID:       7,
			OwnerID:         "user-2",
			Decision:        "approve",
			ResponseContent: "sure, here you go",
		})

		require.NoError(t, err)
		assert.True(t, f.txRunner.called)
		assert.Equal(t, domain.RequestStatusApproved, resolved.Status)
		assert.NotNil(t, resolved.RespondedAt)
		f.txShares.AssertExpectations(t)
		f.txNotifs.AssertExpectations(t)
	})

	t.Run("deny records no grant", func(t *testing.T) {
		f := newSharingFixture()
		pending := newPending()
		f.txRequests.On("GetPendingForOwner", mock.Anything, int64(7), "user-2").Return(pending, nil)
		f.txRequests.On("UpdateStatus", mock.Anything, pending).Return(nil)
		f.txNotifs.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.Type == domain.NotificationTypeKnowledgeDenied
		})).Return(nil)
		f.notifier.On("RequestResolved", mock.Anything, "user-1", mock.Anything).Return(nil)

		resolved, err := f.service.Respond(ctx, RespondInput{
			RequestID: 7,
			OwnerID:   "user-2",
			Decision:  "deny",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusDenied, resolved.Status)
		f.txShares.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing or foreign request maps to not found", func(t *testing.T) {
		f := newSharingFixture()
		f.txRequests.On("GetPendingForOwner", mock.Anything, int64(7), "user-3").Return(nil, domain.ErrRequestNotFound)

		_, err := f.service.Respond(ctx, RespondInput{
			RequestID: 7,
			OwnerID:   "user-3",
			Decision:  "approve",
		})

		assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	})

	t.Run("invalid decision is rejected before the transaction", func(t *testing.T) {
		f := newSharingFixture()

		_, err := f.service.Respond(ctx, RespondInput{
			RequestID: 7,
			OwnerID:   "user-2",
			Decision:  "maybe",
		})

		require.Error(t, err)
		assert.False(t, f.txRunner.called)
	})

	t.Run("grant failure rolls back the whole response", func(t *testing.T) {
		f := newSharingFixture()
		pending := newPending()
		f.txRequests.On("GetPendingForOwner", mock.Anything, int64(7), "user-2").Return(pending, nil)
		f.txRequests.On("UpdateStatus", mock.Anything, pending).Return(nil)
		f.txShares.On("Create", mock.Anything, mock.Anything).Return(errors.New("unique violation"))

		_, err := f.service.Respond(ctx, RespondInput{
			RequestID: 7,
			OwnerID:   "user-2",
			Decision:  "approve",
		})

		require.Error(t, err)
		f.notifier.AssertNotCalled(t, "RequestResolved", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSharingService_ListRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to received", func(t *testing.T) {
		f := newSharingFixture()
		f.requests.On("List", mock.Anything, ListRequestsQuery{UserID: "user-2", Direction: DirectionReceived}).
			Return([]*RequestDetail{}, nil)

		_, err := f.service.ListRequests(ctx, ListRequestsInput{UserID: "user-2"})

		require.NoError(t, err)
		f.requests.AssertExpectations(t)
	})

	t.Run("passes direction and status filter", func(t *testing.T) {
		f := newSharingFixture()
		f.requests.On("List", mock.Anything, ListRequestsQuery{
			UserID:    "user-1",
			Direction: DirectionSent,
			Status:    domain.RequestStatusPending,
		}).Return([]*RequestDetail{}, nil)

		_, err := f.service.ListRequests(ctx, ListRequestsInput{
			UserID:    "user-1",
			Direction: "sent",
			Status:    "pending",
		})

		require.NoError(t, err)
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		f := newSharingFixture()

		_, err := f.service.ListRequests(ctx, ListRequestsInput{UserID: "user-1", Direction: "inbound"})

		require.Error(t, err)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newSharingFixture()

		_, err := f.service.ListRequests(ctx, ListRequestsInput{UserID: "user-1", Status: "stalled"})

		require.Error(t, err)
	})
}
