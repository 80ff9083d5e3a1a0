package bus

import (
	"fmt"
	"sync"
	"time"
)

// InMemory is the single-process Bus implementation. Shared data lives in a
// sync.Map because keys are independent and written concurrently by steps
// in a parallel batch; subscriptions and action states sit behind a mutex
// since they are low-traffic.
type InMemory struct {
	shared sync.Map

	mu          sync.Mutex
	subs        map[string]map[int]Handler
	nextSubID   int
	actionState map[string]string
	waiters     map[string][]chan string
}

// NewInMemory returns an empty in-process bus.
func NewInMemory() *InMemory {
	return &InMemory{
		subs:        make(map[string]map[int]Handler),
		actionState: make(map[string]string),
		waiters:     make(map[string][]chan string),
	}
}

// SendMessage delivers the message synchronously to every subscriber of its
// type. Delivery order across subscribers is unspecified.
func (b *InMemory) SendMessage(msgType string, payload any, target string) error {
	msg := Message{Type: msgType, Payload: payload, Target: target, Sent: time.Now()}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[msgType]))
	for _, h := range b.subs[msgType] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// GetSharedData reads a key from the shared scratch space.
func (b *InMemory) GetSharedData(key string) (any, bool) {
	return b.shared.Load(key)
}

// SetSharedData writes a key into the shared scratch space.
func (b *InMemory) SetSharedData(key string, value any) {
	b.shared.Store(key, value)
}

// SetActionState records the state of an action and releases anyone blocked
// in WaitForAction on its id. Actions and tests call this; the engine
// itself only waits.
func (b *InMemory) SetActionState(actionID, state string) {
	b.mu.Lock()
	b.actionState[actionID] = state
	waiting := b.waiters[actionID]
	delete(b.waiters, actionID)
	b.mu.Unlock()

	for _, ch := range waiting {
		ch <- state
	}
}

// WaitForAction blocks until a state is recorded for the action id or the
// timeout elapses.
func (b *InMemory) WaitForAction(actionID string, timeout time.Duration) (string, error) {
	b.mu.Lock()
	if state, ok := b.actionState[actionID]; ok {
		b.mu.Unlock()
		return state, nil
	}
	ch := make(chan string, 1)
	b.waiters[actionID] = append(b.waiters[actionID], ch)
	b.mu.Unlock()

	select {
	case state := <-ch:
		return state, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for action %q after %s", actionID, timeout)
	}
}

// SubscribeToMessages registers a handler for a message type. The returned
// function removes the subscription; calling it more than once is safe.
func (b *InMemory) SubscribeToMessages(msgType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[msgType] == nil {
		b.subs[msgType] = make(map[int]Handler)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[msgType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[msgType], id)
	}
}
