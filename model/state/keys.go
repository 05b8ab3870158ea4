package state

import "strings"

// Session state keys persisted between invocations.
const (
	KeyApprovalStatus   = "APPROVAL_STATUS"      // string - APPROVED | REJECTED, absent while unresolved
	KeyApprovalFilename = "APPROVAL_FILENAME"    // string - correlation key of the outstanding request
	KeyApprovalSubject  = "APPROVAL_SUBJECT"     // string - principal the request is about
	KeyApprovalAction   = "APPROVAL_ACTION"      // string - high-risk action, e.g. deletion
	KeyApprovalRaisedAt = "APPROVAL_RAISED_AT"   // string - RFC3339 time the request was written
	KeyApprovalTS       = "APPROVAL_TS"          // string - RFC3339 resolution time
	KeyApprovalToken    = "APPROVAL_TOKEN"       // string - pipeline pause token awaiting a decision
	KeyWaiting          = "WAITING_FOR_APPROVAL" // bool
	KeyPendingRequest   = "PENDING_REQUEST"      // string - JSON encoded request held across a pause
	KeyPlanSummary      = "PLAN_SUMMARY"         // string - human readable plan of the current request
	KeyLastOutcome      = "LAST_OUTCOME"         // string - SUCCESS | FAILURE | PENDING
)

// Approval status values stored under KeyApprovalStatus.
const (
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// Step names recognised by the ledger.
const (
	StepPolicy           = "policy"
	StepIdentity         = "identity"
	StepTeams            = "teams"
	StepTeamsReporting   = "teams_reporting"
	StepRemoteDelegation = "remote_delegation"
	StepApprovalRequest  = "approval_request"
)

// Steps is the closed step vocabulary mapped to their state keys.
var Steps = map[string]string{
	StepPolicy:           StepKeyPrefix + "POLICY" + StepKeySuffix,
	StepIdentity:         StepKeyPrefix + "IDENTITY" + StepKeySuffix,
	StepTeams:            StepKeyPrefix + "TEAMS" + StepKeySuffix,
	StepTeamsReporting:   StepKeyPrefix + "TEAMS_REPORTING" + StepKeySuffix,
	StepRemoteDelegation: StepKeyPrefix + "REMOTE_DELEGATION" + StepKeySuffix,
	StepApprovalRequest:  StepKeyPrefix + "APPROVAL_REQUEST" + StepKeySuffix,
}

const (
	StepKeyPrefix = "STATE_"
	StepKeySuffix = "_OK"
)

// StepKey returns the state key for a step name, or false when the step is
// outside the vocabulary.
func StepKey(step string) (string, bool) {
	key, ok := Steps[strings.ToLower(strings.TrimSpace(step))]
	return key, ok
}
