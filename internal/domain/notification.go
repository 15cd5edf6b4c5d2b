package domain

import "time"

// NotificationType classifies durable notifications
type NotificationType string

const (
	NotificationTypeKnowledgeRequest  NotificationType = "knowledge_request"
	NotificationTypeKnowledgeApproved NotificationType = "knowledge_approved"
	NotificationTypeKnowledgeDenied   NotificationType = "knowledge_denied"
	NotificationTypeGeneral           NotificationType = "general"
)

// Notification is the durable record behind a realtime event. Realtime
// delivery is best effort; these rows are what clients poll when a push
// was missed.
type Notification struct {
	ID        int64
	UserID    string
	Type      NotificationType
	Payload   map[string]any
	Read      bool
	CreatedAt time.Time
}
