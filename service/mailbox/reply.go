package mailbox

import (
	"bytes"
	"strings"
)

var rejectionKeywords = []string{"not approved", "rejected", "disapproved", "denied"}

const approvalKeyword = "approved"

// ParseReply interprets a reply body. A nil body means no reply exists.
func ParseReply(data []byte, sentinel string) *Reply {
	if data == nil {
		return &Reply{Status: StatusPending, Reason: "no reply yet"}
	}
	sentinel = strings.ToLower(strings.TrimSpace(sentinel))
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	var hasSentinel, rejected, approved bool
	for raw := range bytes.Lines(data) {
		line := strings.ToLower(strings.TrimSpace(string(raw)))
		if line == "" {
			continue
		}
		if line == sentinel {
			hasSentinel = true
			continue
		}
		if containsAny(line, rejectionKeywords) {
			rejected = true
			continue
		}
		if strings.Contains(line, approvalKeyword) {
			approved = true
		}
	}
	reply := &Reply{Status: StatusPending}
	switch {
	case rejected:
		reply.Decision = DecisionRejected
	case approved:
		reply.Decision = DecisionApproved
	}
	switch {
	case reply.Decision == DecisionNone && !hasSentinel:
		reply.Reason = "reply has no decision keyword and no '" + sentinel + "' line"
	case reply.Decision == DecisionNone:
		reply.Reason = "reply has no decision keyword"
	case !hasSentinel:
		reply.Reason = "reply has no '" + sentinel + "' line"
	default:
		reply.Status = Status(reply.Decision)
		reply.Done = true
	}
	return reply
}

func containsAny(line string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(line, keyword) {
			return true
		}
	}
	return false
}
