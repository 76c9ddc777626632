package sse

import (
	"context"
	"sync"

	"gameday-ticketing/internal/models"
)

// ScanEventEmitter fans gate scans out to dashboard subscribers per event.
type ScanEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.ScanEvent
}

func NewScanEventEmitter() *ScanEventEmitter {
	return &ScanEventEmitter{clients: make(map[string][]chan models.ScanEvent)}
}

// Subscribe returns a channel of scans for eventID. The channel is closed
// once ctx is done.
func (e *ScanEventEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.ScanEvent {
	ch := make(chan models.ScanEvent, 16)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, ch)
	}()

	return ch
}

// Emit never blocks; slow subscribers miss events.
func (e *ScanEventEmitter) Emit(evt models.ScanEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[evt.EventID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (e *ScanEventEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}

func (e *ScanEventEmitter) remove(eventID string, ch chan models.ScanEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, c := range clients {
		if c == ch {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}
