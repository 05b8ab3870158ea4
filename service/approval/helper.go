package approval

import (
	"context"
	"time"

	"goa.design/clue/log"

	"github.com/viant/ulma/service/mailbox"
	"github.com/viant/ulma/service/messaging"
)

// Replier writes a human reply; memory.Mailbox implements it.
type Replier interface {
	Reply(filename, body string)
}

// DecisionFunc decides a request: (true, "") approves, (false, note) rejects.
type DecisionFunc func(r *Request) (approved bool, note string)

// ReplyBody renders a complete reply understood by mailbox.ParseReply.
func ReplyBody(approved bool, note, sentinel string) string {
	if sentinel == "" {
		sentinel = mailbox.DefaultSentinel
	}
	verdict := "Not approved"
	if approved {
		verdict = "Approved"
	}
	if note != "" {
		verdict += "\n" + note
	}
	return verdict + "\n" + sentinel + "\n"
}

// AutoDecider consumes request.created events from queue and answers each
// request through replier using fn. It is meant for development and tests
// where no human is in the loop. Other events are acknowledged and skipped.
// Call the returned stop (or cancel ctx) to exit.
func AutoDecider(ctx context.Context, queue messaging.Queue[Event], replier Replier, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for ctx.Err() == nil {
			msg, err := queue.Consume(ctx)
			if err != nil || msg == nil {
				if err != nil && ctx.Err() == nil {
					log.Warn(ctx, log.KV{K: "msg", V: "auto decider consume failed"}, log.KV{K: "err", V: err.Error()})
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(interval):
				}
				continue
			}
			event := msg.T()
			if event.Topic == TopicRequestCreated && event.Request != nil {
				approved, note := fn(event.Request)
				replier.Reply(event.Request.ID, ReplyBody(approved, note, ""))
			}
			_ = msg.Ack()
		}
	}()
	return cancel
}

// AutoApprove approves every request.
func AutoApprove(ctx context.Context, queue messaging.Queue[Event], replier Replier, interval time.Duration) func() {
	return AutoDecider(ctx, queue, replier, func(*Request) (bool, string) { return true, "" }, interval)
}

// AutoReject rejects every request with note.
func AutoReject(ctx context.Context, queue messaging.Queue[Event], replier Replier, note string, interval time.Duration) func() {
	return AutoDecider(ctx, queue, replier, func(*Request) (bool, string) { return false, note }, interval)
}
