package interfaces

import "github.com/inboxd/inboxd/internal/enum"

type MailEventType string

const (
	MailEventConnectionChanged MailEventType = "connection_changed"
	MailEventSyncStarted       MailEventType = "sync_started"
	MailEventSyncProgress      MailEventType = "sync_progress"
	MailEventMessagesChanged   MailEventType = "messages_changed"
	MailEventSyncCompleted     MailEventType = "sync_completed"
	MailEventSyncFailed        MailEventType = "sync_failed"
)

// MailEvent is what the UI layer receives on its subscription stream.
type MailEvent struct {
	Type      MailEventType        `json:"type"`
	AccountID string               `json:"accountId"`
	State     enum.ConnectionState `json:"state,omitempty"`
	Current   int                  `json:"current,omitempty"`
	Total     int                  `json:"total,omitempty"`
	Count     int                  `json:"count,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// EventDispatcher fans sync and connection events out to subscribers.
type EventDispatcher interface {
	Publish(event MailEvent)
	Subscribe(accountID string) (<-chan MailEvent, func())
	Close()
}
