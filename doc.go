// Package ulma is the approval and session coordination core of a user
// lifecycle assistant.
//
// A turn is handed to a supervisor pipeline that validates the request,
// evaluates policy and drives directory changes. High-risk actions pause the
// pipeline; the service then deposits an approval request in a mailbox,
// waits for a human reply file and resumes the pipeline with the decision.
// Session state survives restarts through a pluggable state store
// (memory, afs files or redis).
//
//	srv, _ := ulma.New(ctx, ulma.DefaultConfig())
//	reply, _ := srv.Run(ctx, "", "Delete user jane.doe@corp")
//	// ... a human adds logs/teams/outgoing/<file> containing "approved" and "over"
//	reply, _ = srv.Run(ctx, reply.SessionID, "check again")
//
// Sub-packages:
//
//   - runtime/coordinator – hydrate, dispatch, pause, resume, persist
//   - service/approval    – approval gate over the mailbox
//   - service/mailbox     – file exchange with humans
//   - service/state       – durable session state
//   - service/pipeline    – supervisor pipeline
package ulma
