package events

import (
	"context"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/logger"
)

// MirroringDispatcher wraps an in-process dispatcher and copies every
// published event onto the broker. Broker failures are logged and do
// not block local delivery.
type MirroringDispatcher struct {
	inner     interfaces.EventDispatcher
	publisher *RabbitMQPublisher
	log       logger.Logger
}

func NewMirroringDispatcher(inner interfaces.EventDispatcher, publisher *RabbitMQPublisher, log logger.Logger) *MirroringDispatcher {
	return &MirroringDispatcher{inner: inner, publisher: publisher, log: log}
}

func (m *MirroringDispatcher) Publish(event interfaces.MailEvent) {
	m.inner.Publish(event)
	go func() {
		if err := m.publisher.PublishMailEvent(context.Background(), event); err != nil {
			m.log.Warnf("[%s] failed to mirror %s event to broker: %v", event.AccountID, event.Type, err)
		}
	}()
}

func (m *MirroringDispatcher) Subscribe(accountID string) (<-chan interfaces.MailEvent, func()) {
	return m.inner.Subscribe(accountID)
}

func (m *MirroringDispatcher) Close() {
	m.inner.Close()
	if err := m.publisher.Close(); err != nil {
		m.log.Errorf("error closing broker publisher: %v", err)
	}
}
