package ir

// Tier is one of the escalation policies selected by iteration count.
type Tier int

const (
	// TierName calls the child by name.
	TierName Tier = iota + 1
	// TierPhrase uses the special phrase.
	TierPhrase
	// TierGiveUp ends the session without a response.
	TierGiveUp
)

// Tier boundaries. These are policy constants of the routine, not settings.
const (
	// NameCalls is the number of call-by-name stimuli (iterations 0-4).
	NameCalls = 5
	// PhraseCalls is the number of special-phrase stimuli (iterations 5-6).
	PhraseCalls = 2
)

// TierFor returns the tier for the next stimulus given the number of
// stimuli already presented. It is monotonic in iteration.
func TierFor(iteration int) Tier {
	switch {
	case iteration < NameCalls:
		return TierName
	case iteration < NameCalls+PhraseCalls:
		return TierPhrase
	default:
		return TierGiveUp
	}
}

// Payload returns the present-stimulus event value for the tier:
// 1 for name, 2 for phrase, 0 for give up (never published).
func (t Tier) Payload() int64 {
	switch t {
	case TierName:
		return 1
	case TierPhrase:
		return 2
	default:
		return 0
	}
}

// TierFromPayload maps a present-stimulus event value back to a tier.
func TierFromPayload(v int64) (Tier, bool) {
	switch v {
	case 1:
		return TierName, true
	case 2:
		return TierPhrase, true
	default:
		return 0, false
	}
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case TierName:
		return "name"
	case TierPhrase:
		return "phrase"
	case TierGiveUp:
		return "give-up"
	default:
		return "unknown"
	}
}
