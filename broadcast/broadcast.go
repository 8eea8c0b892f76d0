// Package broadcast delivers one announcement to every authorized user, pacing sends to
// respect transport rate limits, classifying each delivery outcome, and streaming
// aggregate progress back to the initiator.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/valtero/relaybot/telemetry"
)

// Sender delivers one message to one recipient. Implemented by the chat transport.
type Sender interface {
	SendTo(ctx context.Context, userID int64, text string) error
}

// Progress is a point-in-time view of an in-flight fan-out.
type Progress struct {
	Sent      int
	Blocked   int
	Failed    int
	Remaining int
}

// Result holds the final aggregate counters of one fan-out.
// Sent + Blocked + Failed always equals the recipient snapshot size,
// unless the context was canceled mid-run.
type Result struct {
	Sent    int
	Blocked int
	Failed  int
}

// Engine runs broadcast fan-outs. The recipient list is a snapshot taken by the caller;
// allow-list edits during the run don't affect it. One Engine is shared by all
// broadcasts; the limiter state is per Send call.
type Engine struct {
	Sender Sender
	// Delay is the fixed inter-send pacing. This is a design requirement, not an
	// optimization: burst sends trip platform-level throttling.
	Delay time.Duration
	// ProgressEvery bounds progress-update frequency: an update is emitted on every
	// Nth attempt and on the final one.
	ProgressEvery int
}

// Send delivers content to every recipient in snapshot order. Each attempt is
// classified as sent, blocked, or failed; individual failures never abort the run.
// onProgress (optional) receives throttled live counters. A canceled context stops
// the loop early and returns the partial result.
func (e *Engine) Send(ctx context.Context, content string, recipients []int64, onProgress func(Progress)) Result {
	every := e.ProgressEvery
	if every <= 0 {
		every = 5
	}
	delay := e.Delay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	telemetry.BroadcastsStarted.Inc()
	telemetry.BroadcastInFlight(1)
	defer telemetry.BroadcastInFlight(-1)
	start := time.Now()

	var res Result
	total := len(recipients)
	for i, uid := range recipients {
		// The limiter wait is the pacing suspension point; it also observes
		// cancellation, so a shut-down process stops between deliveries.
		if err := limiter.Wait(ctx); err != nil {
			slog.Info("broadcast interrupted", slog.Int("delivered", i), slog.Int("total", total))
			break
		}
		switch Classify(e.Sender.SendTo(ctx, uid, content)) {
		case OutcomeSent:
			res.Sent++
			telemetry.BroadcastSent.Inc()
		case OutcomeBlocked:
			res.Blocked++
			telemetry.BroadcastBlocked.Inc()
		default:
			res.Failed++
			telemetry.BroadcastFailed.Inc()
		}
		if onProgress != nil && (i%every == 0 || i == total-1) {
			onProgress(Progress{Sent: res.Sent, Blocked: res.Blocked, Failed: res.Failed, Remaining: total - i - 1})
		}
	}

	telemetry.BroadcastDuration.Observe(time.Since(start).Seconds())
	slog.Info("broadcast complete",
		slog.Int("sent", res.Sent),
		slog.Int("blocked", res.Blocked),
		slog.Int("failed", res.Failed),
		slog.Int("total", total),
		slog.String("component", "broadcast"))
	return res
}
