// Package memory keeps an in-process read model of approval lifecycle
// events: which requests are pending and how the resolved ones were decided.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/viant/ulma/service/approval"
	"github.com/viant/ulma/service/messaging"
)

const idleDelay = 50 * time.Millisecond

// Journal records approval events.
type Journal struct {
	mu        sync.RWMutex
	requests  map[string]*approval.Request
	decisions map[string]*approval.Decision
}

// Record applies one event.
func (j *Journal) Record(event *approval.Event) {
	if event == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	switch event.Topic {
	case approval.TopicRequestCreated, approval.TopicRequestReused:
		if event.Request != nil {
			request := *event.Request
			request.Reused = false
			j.requests[request.ID] = &request
		}
	case approval.TopicDecisionCreated:
		if event.Decision != nil {
			decision := *event.Decision
			j.decisions[decision.ID] = &decision
		}
	}
}

// ListPending returns undecided requests ordered by creation time.
func (j *Journal) ListPending() []*approval.Request {
	j.mu.RLock()
	defer j.mu.RUnlock()
	pending := make([]*approval.Request, 0, len(j.requests))
	for id, request := range j.requests {
		if _, ok := j.decisions[id]; !ok {
			pending = append(pending, request)
		}
	}
	sort.Slice(pending, func(i, k int) bool { return pending[i].CreatedAt.Before(pending[k].CreatedAt) })
	return pending
}

// Decision returns the decision recorded for a request id.
func (j *Journal) Decision(id string) (*approval.Decision, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	decision, ok := j.decisions[id]
	return decision, ok
}

// Follow consumes queue until ctx is done, recording every event.
func (j *Journal) Follow(ctx context.Context, queue messaging.Queue[approval.Event]) {
	for ctx.Err() == nil {
		msg, err := queue.Consume(ctx)
		if err != nil || msg == nil {
			if err != nil && ctx.Err() == nil {
				log.Warn(ctx, log.KV{K: "msg", V: "approval journal consume failed"}, log.KV{K: "err", V: err.Error()})
			}
			select {
			case <-ctx.Done():
			case <-time.After(idleDelay):
			}
			continue
		}
		j.Record(msg.T())
		_ = msg.Ack()
	}
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{
		requests:  map[string]*approval.Request{},
		decisions: map[string]*approval.Decision{},
	}
}
