package events

import (
	"sync"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/logger"
)

const subscriberBuffer = 64

// InMemoryDispatcher fans mail events out to in-process subscribers.
// Publish never blocks: a subscriber that stops draining its channel
// loses events instead of stalling the sync engine.
type InMemoryDispatcher struct {
	mu          sync.RWMutex
	closed      bool
	nextID      int
	subscribers map[int]*subscription
	log         logger.Logger
}

type subscription struct {
	accountID string // empty subscribes to all accounts
	ch        chan interfaces.MailEvent
}

func NewInMemoryDispatcher(log logger.Logger) *InMemoryDispatcher {
	return &InMemoryDispatcher{
		subscribers: make(map[int]*subscription),
		log:         log,
	}
}

func (d *InMemoryDispatcher) Publish(event interfaces.MailEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, sub := range d.subscribers {
		if sub.accountID != "" && sub.accountID != event.AccountID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			d.log.Warnf("[%s] dropping %s event for slow subscriber", event.AccountID, event.Type)
		}
	}
}

func (d *InMemoryDispatcher) Subscribe(accountID string) (<-chan interfaces.MailEvent, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	sub := &subscription{
		accountID: accountID,
		ch:        make(chan interfaces.MailEvent, subscriberBuffer),
	}
	if d.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	d.subscribers[id] = sub

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if existing, ok := d.subscribers[id]; ok {
			delete(d.subscribers, id)
			close(existing.ch)
		}
	}
	return sub.ch, cancel
}

func (d *InMemoryDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for id, sub := range d.subscribers {
		delete(d.subscribers, id)
		close(sub.ch)
	}
}
