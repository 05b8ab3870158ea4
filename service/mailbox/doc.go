// Package mailbox defines the asynchronous human channel used for approval
// requests and manager summaries.
//
// Requests are deposited under an incoming location, one file per message.
// A human answers by placing a file with the same name in the outgoing
// location. The system only ever reads the outgoing location.
//
// A reply is complete when one of its lines equals the sentinel ("over" by
// default) and it carries a decision keyword. Rejection keywords win over
// "approved", so "Not approved" never reads as an approval.
package mailbox
