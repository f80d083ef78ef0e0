// README: Status normalization tests.
package order

import "testing"

func TestNormalizeKnownTokens(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		// canonical values pass through
		{"ALREADY_DELIVERED", StatusDelivered},
		{"NOT_STARTED_YET", StatusNotStartedYet},
		{"READY_TO_DELIVER", StatusReadyToDeliver},
		// legacy admin-console vocabulary
		{"PENDING", StatusNotAssigned},
		{"NEW", StatusNotAssigned},
		{"ASSIGNED", StatusStarted},
		{"ACCEPTED", StatusNotStartedYet},
		{"IN_TRANSIT", StatusPickedUp},
		{"DELIVERED", StatusDelivered},
		{"COMPLETED", StatusDelivered},
		{"FAILED", StatusFailedDelivery},
		{"CANCELED", StatusCancelled},
		{"REJECTED", StatusCancelled},
		{"IN_PROGRESS", StatusActive},
		// lowercase and loose whitespace variants
		{"pending", StatusNotAssigned},
		{"picked_up", StatusPickedUp},
		{"  delivered  ", StatusDelivered},
		{"ready to deliver", StatusReadyToDeliver},
		{"out-for-delivery", StatusReadyToDeliver},
		{"not started yet", StatusNotStartedYet},
	}
	for _, tc := range cases {
		if got := Normalize(tc.raw); got != tc.want {
			t.Errorf("Normalize(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeUnknownDefaultsToNotAssigned(t *testing.T) {
	for _, raw := range []string{"", "   ", "BANANA", "status-9000", "délivré"} {
		got := Normalize(raw)
		if got != StatusNotAssigned {
			t.Errorf("Normalize(%q) = %s, want NOT_ASSIGNED", raw, got)
		}
		if !IsCanonical(got) {
			t.Errorf("Normalize(%q) returned non-canonical %s", raw, got)
		}
	}
}

func TestNormalizeAlwaysCanonical(t *testing.T) {
	for raw := range statusAliases {
		if got := Normalize(raw); !IsCanonical(got) {
			t.Errorf("alias %q normalizes to non-canonical %s", raw, got)
		}
	}
}

func TestParseStatusFailsClosed(t *testing.T) {
	if _, ok := ParseStatus("GARBAGE"); ok {
		t.Error("ParseStatus accepted an unknown token")
	}
	if _, ok := ParseStatus(""); ok {
		t.Error("ParseStatus accepted the empty token")
	}
	if st, ok := ParseStatus("assigned"); !ok || st != StatusStarted {
		t.Errorf("ParseStatus(assigned) = %s, %v; want STARTED, true", st, ok)
	}
}

func TestStatusGroupsDisjoint(t *testing.T) {
	for st := range canonicalSet {
		success := IsTerminalSuccess(st)
		failure := IsTerminalFailure(st)
		active := IsActive(st)
		n := 0
		for _, b := range []bool{success, failure, active} {
			if b {
				n++
			}
		}
		if n != 1 {
			t.Errorf("status %s belongs to %d groups, want exactly 1", st, n)
		}
	}
	if len(ActiveStatuses) != 7 {
		t.Errorf("ActiveStatuses has %d entries, want 7", len(ActiveStatuses))
	}
}
