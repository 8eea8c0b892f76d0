package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/valtero/relaybot/telemetry"
)

func init() {
	telemetry.Init()
}

// fakeSender records delivery order and fails configured recipients.
type fakeSender struct {
	mu       sync.Mutex
	attempts []int64
	blocked  map[int64]bool
	failing  map[int64]bool
}

func (f *fakeSender) SendTo(_ context.Context, userID int64, _ string) error {
	f.mu.Lock()
	f.attempts = append(f.attempts, userID)
	f.mu.Unlock()
	if f.blocked[userID] {
		return errors.New("telegram: Forbidden: bot was blocked by the user")
	}
	if f.failing[userID] {
		return errors.New("telegram: Too Many Requests: retry after 30")
	}
	return nil
}

func TestSendCountersAndOrder(t *testing.T) {
	recipients := make([]int64, 10)
	for i := range recipients {
		recipients[i] = int64(i + 1)
	}
	sender := &fakeSender{
		blocked: map[int64]bool{3: true, 7: true},        // M = 2
		failing: map[int64]bool{5: true, 8: true, 9: true}, // K = 3
	}
	e := &Engine{Sender: sender, Delay: time.Millisecond, ProgressEvery: 5}

	res := e.Send(context.Background(), "hello", recipients, nil)

	if got := res.Sent + res.Blocked + res.Failed; got != len(recipients) {
		t.Errorf("sent+blocked+failed = %d, want %d", got, len(recipients))
	}
	if res.Blocked != 2 {
		t.Errorf("blocked = %d, want 2", res.Blocked)
	}
	if res.Failed != 3 {
		t.Errorf("failed = %d, want 3", res.Failed)
	}
	if res.Sent != 5 {
		t.Errorf("sent = %d, want 5", res.Sent)
	}
	if len(sender.attempts) != len(recipients) {
		t.Fatalf("attempts = %d, want %d", len(sender.attempts), len(recipients))
	}
	for i, uid := range sender.attempts {
		if uid != recipients[i] {
			t.Errorf("attempt %d = user %d, want %d (snapshot order)", i, uid, recipients[i])
		}
	}
}

func TestProgressCadence(t *testing.T) {
	recipients := make([]int64, 12)
	for i := range recipients {
		recipients[i] = int64(i + 1)
	}
	sender := &fakeSender{}
	e := &Engine{Sender: sender, Delay: time.Millisecond, ProgressEvery: 5}

	var updates []Progress
	e.Send(context.Background(), "x", recipients, func(p Progress) {
		updates = append(updates, p)
	})

	// Attempts 0, 5, 10 plus the final attempt 11.
	if len(updates) != 4 {
		t.Fatalf("progress updates = %d, want 4", len(updates))
	}
	final := updates[len(updates)-1]
	if final.Remaining != 0 {
		t.Errorf("final remaining = %d, want 0", final.Remaining)
	}
	if final.Sent != len(recipients) {
		t.Errorf("final sent = %d, want %d", final.Sent, len(recipients))
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Remaining >= updates[i-1].Remaining {
			t.Errorf("remaining not decreasing: %v", updates)
		}
	}
}

func TestCanceledContextStopsEarly(t *testing.T) {
	recipients := make([]int64, 50)
	for i := range recipients {
		recipients[i] = int64(i + 1)
	}
	sender := &fakeSender{}
	e := &Engine{Sender: sender, Delay: 20 * time.Millisecond, ProgressEvery: 5}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := e.Send(ctx, "x", recipients, nil)

	if got := res.Sent + res.Blocked + res.Failed; got >= len(recipients) {
		t.Errorf("expected partial delivery under canceled context, got %d of %d", got, len(recipients))
	}
}

func TestSendEmptyRecipients(t *testing.T) {
	sender := &fakeSender{}
	e := &Engine{Sender: sender, Delay: time.Millisecond}
	res := e.Send(context.Background(), "x", nil, nil)
	if res != (Result{}) {
		t.Errorf("result for empty snapshot = %+v, want zero", res)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeSent},
		{errors.New("Forbidden: bot was blocked by the user"), OutcomeBlocked},
		{errors.New("Forbidden: user is deactivated"), OutcomeBlocked},
		{errors.New("Bad Request: chat not found"), OutcomeBlocked},
		{errors.New("Too Many Requests: retry after 5"), OutcomeFailed},
		{errors.New("dial tcp: connection refused"), OutcomeFailed},
		{errors.New("something entirely new"), OutcomeFailed},
	}
	for _, tc := range cases {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		t.Run(fmt.Sprintf("%.30s", name), func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeSent.String() != "sent" || OutcomeBlocked.String() != "blocked" || OutcomeFailed.String() != "failed" {
		t.Error("unexpected outcome names")
	}
}
