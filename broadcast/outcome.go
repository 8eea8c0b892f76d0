package broadcast

import "strings"

// Outcome is the classification of one delivery attempt.
type Outcome int

const (
	// OutcomeSent indicates the message was delivered without error.
	OutcomeSent Outcome = iota
	// OutcomeBlocked indicates the recipient has blocked the bot or is otherwise
	// unreachable by policy. These are expected over time and never retried.
	OutcomeBlocked
	// OutcomeFailed covers every other delivery error (rate limit, network, unknown).
	OutcomeFailed
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeFailed:
		return "failed"
	default:
		return "failed"
	}
}

// Classify maps a delivery error to an outcome.
//
// Blocked (recipient unreachable by policy):
// - the recipient blocked the bot ("Forbidden: bot was blocked by the user")
// - the recipient deleted their account ("user is deactivated")
// - the bot never had a chat with the recipient ("chat not found")
//
// Failed (everything else, treated uniformly):
// - rate limiting ("Too Many Requests")
// - network errors, timeouts
// - unknown transport errors
//
// The patterns are matched against the transport error text because the Bot API
// surfaces these conditions only as message strings.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSent
	}
	lower := strings.ToLower(err.Error())
	blockedPatterns := []string{
		"blocked by the user",
		"bot was blocked",
		"user is deactivated",
		"chat not found",
		"bot can't initiate conversation",
	}
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return OutcomeBlocked
		}
	}
	return OutcomeFailed
}
