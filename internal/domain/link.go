package domain

// LinkStatus is the lifecycle state of a Vista record's primary link.
type LinkStatus string

const (
	LinkStatusUnmatched     LinkStatus = "unmatched"
	LinkStatusAutoMatched   LinkStatus = "auto_matched"
	LinkStatusManualMatched LinkStatus = "manual_matched"
	LinkStatusIgnored       LinkStatus = "ignored"
)

// linkTransitions enumerates every permitted status change. Anything absent
// here is rejected; idempotent re-link to the same titan record is handled as
// a no-op before this table is consulted.
var linkTransitions = map[LinkStatus][]LinkStatus{
	LinkStatusUnmatched:     {LinkStatusAutoMatched, LinkStatusManualMatched, LinkStatusIgnored},
	LinkStatusAutoMatched:   {LinkStatusManualMatched, LinkStatusUnmatched, LinkStatusIgnored},
	LinkStatusManualMatched: {LinkStatusUnmatched, LinkStatusIgnored},
	LinkStatusIgnored:       {LinkStatusUnmatched},
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s LinkStatus) CanTransitionTo(next LinkStatus) bool {
	for _, allowed := range linkTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Linked reports whether the status carries an active titan reference.
func (s LinkStatus) Linked() bool {
	return s == LinkStatusAutoMatched || s == LinkStatusManualMatched
}

// ParseLinkStatus validates a status taken from a query parameter.
func ParseLinkStatus(raw string) (LinkStatus, error) {
	switch LinkStatus(raw) {
	case LinkStatusUnmatched, LinkStatusAutoMatched, LinkStatusManualMatched, LinkStatusIgnored:
		return LinkStatus(raw), nil
	}
	return "", NewValidationError("unknown link status %q", raw)
}

func (s LinkStatus) String() string { return string(s) }
