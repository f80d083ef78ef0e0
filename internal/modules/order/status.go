// README: Canonical order status set, vocabulary normalization, and status groups.
package order

import "strings"

// Status is one of the fixed canonical lifecycle states. Every status read
// from or written to the store goes through Normalize / ParseStatus; no caller
// compares raw status strings.
type Status string

const (
	StatusActive         Status = "ACTIVE"
	StatusNotAssigned    Status = "NOT_ASSIGNED"
	StatusNotAccepted    Status = "NOT_ACCEPTED"
	StatusNotStartedYet  Status = "NOT_STARTED_YET"
	StatusStarted        Status = "STARTED"
	StatusPickedUp       Status = "PICKED_UP"
	StatusReadyToDeliver Status = "READY_TO_DELIVER"
	StatusDelivered      Status = "ALREADY_DELIVERED"
	StatusFailedDelivery Status = "FAILED_DELIVERY"
	StatusIncomplete     Status = "INCOMPLETE"
	StatusCancelled      Status = "CANCELLED"
)

// canonicalSet is the closed set of persistable statuses.
var canonicalSet = map[Status]struct{}{
	StatusActive:         {},
	StatusNotAssigned:    {},
	StatusNotAccepted:    {},
	StatusNotStartedYet:  {},
	StatusStarted:        {},
	StatusPickedUp:       {},
	StatusReadyToDeliver: {},
	StatusDelivered:      {},
	StatusFailedDelivery: {},
	StatusIncomplete:     {},
	StatusCancelled:      {},
}

// statusAliases maps every known legacy and dispatch-provider token onto its
// canonical state. The mapping is many-to-one and intentionally exhaustive for
// every token the system has ever produced; tokens are matched after
// canonicalization (upper-case, whitespace and hyphens collapsed to
// underscores), so lowercase variants never need their own entries.
var statusAliases = map[string]Status{
	// early admin-console vocabulary
	"PENDING":    StatusNotAssigned,
	"NEW":        StatusNotAssigned,
	"CREATED":    StatusNotAssigned,
	"UNASSIGNED": StatusNotAssigned,
	"OPEN":       StatusNotAssigned,

	"OFFERED":             StatusNotAccepted,
	"AWAITING_ACCEPTANCE": StatusNotAccepted,

	"ACCEPTED":  StatusNotStartedYet,
	"CONFIRMED": StatusNotStartedYet,
	"SCHEDULED": StatusNotStartedYet,

	"ASSIGNED":           StatusStarted,
	"DRIVER_ASSIGNED":    StatusStarted,
	"ON_THE_WAY":         StatusStarted,
	"EN_ROUTE_TO_PICKUP": StatusStarted,

	"COLLECTED":  StatusPickedUp,
	"AT_PICKUP":  StatusPickedUp,
	"IN_TRANSIT": StatusPickedUp,

	"OUT_FOR_DELIVERY": StatusReadyToDeliver,
	"ARRIVED":          StatusReadyToDeliver,
	"NEAR_DROPOFF":     StatusReadyToDeliver,

	"DELIVERED":  StatusDelivered,
	"COMPLETED":  StatusDelivered,
	"COMPLETE":   StatusDelivered,
	"DONE":       StatusDelivered,
	"SUCCESSFUL": StatusDelivered,

	"FAILED":          StatusFailedDelivery,
	"DELIVERY_FAILED": StatusFailedDelivery,
	"RETURNED":        StatusFailedDelivery,

	"PARTIAL": StatusIncomplete,

	"CANCELED": StatusCancelled,
	"VOID":     StatusCancelled,
	"REJECTED": StatusCancelled,
	"EXPIRED":  StatusCancelled,

	"IN_PROGRESS": StatusActive,
	"PROCESSING":  StatusActive,
}

// canonicalizeToken upper-cases raw and collapses runs of whitespace and
// hyphens to single underscores.
func canonicalizeToken(raw string) string {
	fields := strings.FieldsFunc(strings.ToUpper(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

// ParseStatus resolves raw to a canonical status. It returns false when the
// token is empty or not a recognized member of any known vocabulary; the
// update path uses this to fail closed instead of persisting garbage.
func ParseStatus(raw string) (Status, bool) {
	token := canonicalizeToken(raw)
	if token == "" {
		return "", false
	}
	if _, ok := canonicalSet[Status(token)]; ok {
		return Status(token), true
	}
	if s, ok := statusAliases[token]; ok {
		return s, true
	}
	return "", false
}

// Normalize resolves raw to a canonical status, returning NOT_ASSIGNED for
// unknown or absent tokens. It never fails and never returns a value outside
// the canonical set; every read path runs stored statuses through it.
func Normalize(raw string) Status {
	if s, ok := ParseStatus(raw); ok {
		return s
	}
	return StatusNotAssigned
}

// IsCanonical reports membership in the closed canonical set.
func IsCanonical(s Status) bool {
	_, ok := canonicalSet[s]
	return ok
}

// ActiveStatuses are the states that are neither terminal-success nor
// terminal-failure; "active orders" queries use exactly this subset.
var ActiveStatuses = []Status{
	StatusActive,
	StatusNotAssigned,
	StatusNotAccepted,
	StatusNotStartedYet,
	StatusStarted,
	StatusPickedUp,
	StatusReadyToDeliver,
}

// pendingStatuses vs inProgressStatuses split the active set for stats.
var pendingStatuses = map[Status]struct{}{
	StatusNotAssigned: {},
	StatusNotAccepted: {},
}

var cancelLikeStatuses = map[Status]struct{}{
	StatusFailedDelivery: {},
	StatusIncomplete:     {},
	StatusCancelled:      {},
}

// IsTerminalSuccess reports whether s is the delivered terminal state.
func IsTerminalSuccess(s Status) bool { return s == StatusDelivered }

// IsTerminalFailure reports whether s is one of the failure/cancel terminal states.
func IsTerminalFailure(s Status) bool {
	_, ok := cancelLikeStatuses[s]
	return ok
}

// IsTerminal reports whether s is a final state. Terminal orders accept no
// further status changes: moving a delivered order to a cancel-like state (or
// the reverse) would leave both completedAt and cancelledAt set.
func IsTerminal(s Status) bool {
	return IsTerminalSuccess(s) || IsTerminalFailure(s)
}

// IsActive reports whether s is a non-terminal state.
func IsActive(s Status) bool {
	return IsCanonical(s) && !IsTerminal(s)
}
