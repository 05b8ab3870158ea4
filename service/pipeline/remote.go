package pipeline

import (
	"context"
	"encoding/json"

	"github.com/viant/ulma/internal/clock"
	"github.com/viant/ulma/service/directory"
	"github.com/viant/ulma/service/mailbox"
)

// DefaultRemoteLocation is the location whose users are handled remotely.
const DefaultRemoteLocation = "Branch B"

// KindDelegations is the mailbox kind used for remote work orders.
const KindDelegations mailbox.Kind = "delegations"

// Remote executes a request for principals managed by another site.
type Remote interface {
	Delegate(ctx context.Context, request *Request) (*directory.Result, error)
}

// MailboxRemote deposits the request as a JSON work order in the mailbox.
type MailboxRemote struct {
	Channel mailbox.Channel
}

func (m *MailboxRemote) Delegate(ctx context.Context, request *Request) (*directory.Result, error) {
	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return nil, err
	}
	filename := string(KindDelegations) + "_" + mailbox.Slug(request.User) + "_" + clock.Timestamp(clock.Now()) + ".json"
	envelope, err := m.Channel.Send(ctx, KindDelegations, string(data), filename)
	if err != nil {
		return nil, err
	}
	return &directory.Result{
		Status:  directory.StatusSuccess,
		Code:    "DELEGATED",
		Message: "request for " + request.User + " delegated to " + envelope.IncomingURL,
	}, nil
}
