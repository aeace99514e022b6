// Package keypad queues keypresses until the controller opens a write
// window.
package keypad

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/panel"
)

// DefaultDrainMax is the number of keys sent per write window when Drain
// is called with a non-positive limit.
const DefaultDrainMax = 4

// Sender transmits a single key to the controller.
type Sender func(k panel.Key) error

// Queue is an unbounded FIFO of pending keypresses.
type Queue struct {
	mu      sync.Mutex
	pending []panel.Key

	senderMu sync.RWMutex
	sender   Sender
}

// NewQueue creates an empty queue with no sender.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue queues the key with the given symbolic name. It returns false for
// unknown names.
func (q *Queue) Enqueue(name string) bool {
	k, ok := panel.KeyByName(name)
	if !ok {
		log.Debug().Str("key", name).Msg("Unknown key name")
		return false
	}
	q.EnqueueKey(k)
	return true
}

// EnqueueKey queues k.
func (q *Queue) EnqueueKey(k panel.Key) {
	q.mu.Lock()
	q.pending = append(q.pending, k)
	q.mu.Unlock()
	log.Debug().Stringer("key", k).Msg("Keypress queued")
}

// RegisterSender installs the function used by Drain.
func (q *Queue) RegisterSender(fn Sender) {
	q.senderMu.Lock()
	defer q.senderMu.Unlock()
	q.sender = fn
}

// Len returns the number of queued keys.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain sends up to max queued keys in FIFO order and returns how many were
// sent. Without a sender nothing is dequeued. A key whose send fails is
// dropped and ends the cycle.
func (q *Queue) Drain(max int) int {
	if max <= 0 {
		max = DefaultDrainMax
	}

	q.senderMu.RLock()
	send := q.sender
	q.senderMu.RUnlock()
	if send == nil {
		return 0
	}

	sent := 0
	for sent < max {
		k, ok := q.pop()
		if !ok {
			break
		}
		if err := send(k); err != nil {
			log.Warn().Err(err).Stringer("key", k).Msg("Keypress dropped")
			break
		}
		sent++
	}
	return sent
}

func (q *Queue) pop() (panel.Key, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return 0, false
	}
	k := q.pending[0]
	q.pending = q.pending[1:]
	return k, true
}
