package realtime

import (
	"context"
	"time"

	"github.com/hivemesh/hivemesh/internal/service"
)

const (
	// EventKnowledgeRequest is pushed to a knowledge owner when a new
	// access request arrives.
	EventKnowledgeRequest = "knowledge-request"
	// EventKnowledgeResponse is pushed to a requester when the owner
	// approves or denies their request.
	EventKnowledgeResponse = "knowledge-response"
)

// HubNotifier adapts the Hub to the sharing service's notifier. Pushes
// never fail: a user without open connections simply receives nothing.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier publishing through the given hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// RequestCreated pushes a new access request to its knowledge owner.
func (n *HubNotifier) RequestCreated(_ context.Context, ownerID string, ev service.RequestCreatedEvent) error {
	n.hub.Publish(ownerID, Event{
		Type: EventKnowledgeRequest,
		Payload: map[string]any{
			"requestId":      ev.RequestID,
			"question":       ev.Question,
			"requesterName":  ev.RequesterName,
			"requesterEmail": ev.RequesterEmail,
			"createdAt":      ev.CreatedAt.Format(time.RFC3339),
		},
	})
	return nil
}

// RequestResolved pushes an owner's decision to the requester. The
// originating question and conversation ride along so the client can
// resume the interrupted conversation.
func (n *HubNotifier) RequestResolved(_ context.Context, requesterID string, ev service.RequestResolvedEvent) error {
	payload := map[string]any{
		"requestId":       ev.RequestID,
		"status":          string(ev.Status),
		"question":        ev.Question,
		"responseContent": ev.ResponseContent,
		"respondedAt":     ev.RespondedAt.Format(time.RFC3339),
	}
	if ev.ConversationID != nil {
		payload["conversationId"] = *ev.ConversationID
	}
	n.hub.Publish(requesterID, Event{
		Type:    EventKnowledgeResponse,
		Payload: payload,
	})
	return nil
}
