// Package approval implements the human-in-the-loop gate that pauses a
// high-risk operation until an explicit decision arrives through the mailbox.
//
// The gate keeps no state of its own. Everything it knows about an
// outstanding request lives in the session under the APPROVAL_* keys, so a
// restarted process resumes exactly where the previous one stopped:
//
//	NONE -> REQUESTED -> APPROVED | REJECTED
//
// A timeout or a cancelled wait leaves the request REQUESTED.
package approval
