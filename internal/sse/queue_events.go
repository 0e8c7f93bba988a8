package sse

import (
	"context"
	"sync"
)

// EventType tags what changed.
type EventType string

const (
	EventQueueChanged    EventType = "queue-changed"
	EventSettingsChanged EventType = "settings-changed"
)

// Event is one change notification fanned out to open UIs.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Emitter manages SSE connections and broadcasts queue and settings
// change events to every subscribed UI client.
type Emitter struct {
	clients     []chan Event
	clientMutex sync.RWMutex
}

// NewEmitter creates a new SSE event emitter
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe adds a client; the subscription ends when ctx does.
func (e *Emitter) Subscribe(ctx context.Context) chan Event {
	clientChan := make(chan Event, 10)

	e.clientMutex.Lock()
	e.clients = append(e.clients, clientChan)
	e.clientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeClient(clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to all subscribed clients.
func (e *Emitter) Emit(event Event) {
	e.clientMutex.RLock()
	clients := e.clients
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- event:
		default:
			// Channel buffer full, skip this client for now
		}
	}
}

func (e *Emitter) removeClient(clientChan chan Event) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	for i, ch := range e.clients {
		if ch == clientChan {
			e.clients = append(e.clients[:i], e.clients[i+1:]...)
			close(clientChan)
			break
		}
	}
}

// ClientCount returns the number of currently subscribed clients.
func (e *Emitter) ClientCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}
