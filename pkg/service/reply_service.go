// Canned reply generator - simulates an assistant thinking and answering
package service

import (
	"context"
	"math/rand"
	"time"
)

// replyCorpus is the fixed set of canned assistant responses. Selection is
// uniform and entirely context-free.
var replyCorpus = []string{
	"I understand what you're saying.",
	"That's interesting! Tell me more.",
	"I'm here to help. What else would you like to discuss?",
	"I'm processing your message...",
	"Could you elaborate on that?",
	"That's a great point!",
	"I see what you mean.",
	"Let me think about that...",
	"Interesting perspective!",
	"I'm analyzing your message...",
}

// DelayFunc returns how long a reply should take to produce.
type DelayFunc func() time.Duration

// PickFunc returns an index in [0, n).
type PickFunc func(n int) int

// ReplyService produces canned assistant replies after a simulated delay.
// Both the delay and the choice are pluggable so tests can run
// deterministically with a zero delay and a fixed index.
type ReplyService struct {
	delay DelayFunc
	pick  PickFunc
}

// NewReplyService creates a reply service with a uniform random delay of
// minSeconds..maxSeconds (whole seconds, inclusive) and uniform random
// corpus selection.
func NewReplyService(minSeconds, maxSeconds int) *ReplyService {
	return &ReplyService{
		delay: func() time.Duration {
			return time.Duration(minSeconds+rand.Intn(maxSeconds-minSeconds+1)) * time.Second
		},
		pick: rand.Intn,
	}
}

// NewReplyServiceWithProviders creates a reply service with explicit delay
// and choice providers.
func NewReplyServiceWithProviders(delay DelayFunc, pick PickFunc) *ReplyService {
	return &ReplyService{delay: delay, pick: pick}
}

// Pick returns a corpus entry immediately, without the simulated delay.
// The synchronous REST path uses this; only the socket path simulates typing.
func (s *ReplyService) Pick() string {
	return replyCorpus[s.pick(len(replyCorpus))]
}

// Generate suspends for the configured delay, then returns one corpus entry.
// The conversation id does not influence the result.
func (s *ReplyService) Generate(ctx context.Context, conversationID string) (string, error) {
	timer := time.NewTimer(s.delay())
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return s.Pick(), nil
}
