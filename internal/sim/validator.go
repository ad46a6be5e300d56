package sim

import (
	"fmt"

	"cricket-sim/internal/domain"
)

// RejectReason is the closed set of chunk rejection causes. The reason is
// fed back to the provider as constraint text on the corrected re-request.
type RejectReason string

const (
	IllegalBowler            RejectReason = "IllegalBowler"
	ConsecutiveOverViolation RejectReason = "ConsecutiveOverViolation"
	OverflowChunk            RejectReason = "OverflowChunk"
)

// ChunkRejection is a recoverable validation failure.
type ChunkRejection struct {
	Reason RejectReason
	Detail string
}

func (r *ChunkRejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason RejectReason, format string, args ...any) *ChunkRejection {
	return &ChunkRejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ValidateChunk gates a provider chunk against the current innings state.
// Rules are checked in order: bowler quota, back-to-back overs, legal
// deliveries per over, and overflow past the innings end. The innings state
// is not mutated; quota consumed by earlier overs of the same chunk is
// simulated locally.
func ValidateChunk(format domain.Format, inn *domain.InningsState, chunk domain.OverChunk) error {
	if inn.AllOut() || inn.OversExhausted(format) || inn.TargetReached() {
		return reject(OverflowChunk, "innings is already complete")
	}

	// Overs the innings can still hold. Wicket- or target-driven early
	// termination cannot be known pre-simulation, so only the over limit
	// bounds the chunk here.
	oversLeft := format.InningsOvers() - inn.LegalBalls/6
	if len(chunk.Overs) > oversLeft {
		return reject(OverflowChunk, "chunk has %d overs but only %d remain in the innings", len(chunk.Overs), oversLeft)
	}

	extraQuota := make(map[string]int) // overs consumed earlier in this chunk
	lastBowler := inn.LastBowlerID

	for i, over := range chunk.Overs {
		if !onBowlingSide(inn, over.BowlerID) {
			return reject(IllegalBowler, "bowler %s is not in the bowling side (over %d of chunk)", over.BowlerID, i+1)
		}

		remaining := inn.RemainingOvers(format, over.BowlerID) - extraQuota[over.BowlerID]
		if remaining < 1 {
			return reject(IllegalBowler, "bowler %s has no overs remaining (over %d of chunk)", over.BowlerID, i+1)
		}

		if over.BowlerID == lastBowler && !onlyEligible(format, inn, extraQuota, over.BowlerID) {
			return reject(ConsecutiveOverViolation, "bowler %s bowled the previous over (over %d of chunk)", over.BowlerID, i+1)
		}

		legal := 0
		for _, ball := range over.Balls {
			if ball.Event.Legal() {
				legal++
			}
		}
		if legal > 6 {
			return reject(OverflowChunk, "over %d of chunk has %d legal deliveries", i+1, legal)
		}

		extraQuota[over.BowlerID]++
		lastBowler = over.BowlerID
	}

	return nil
}

// onBowlingSide reports whether bowlerID is on the fielding side's roster.
// Provider chunks may name any id; only rostered bowlers play.
func onBowlingSide(inn *domain.InningsState, bowlerID string) bool {
	for _, id := range inn.BowlingOrder {
		if id == bowlerID {
			return true
		}
	}
	return false
}

// onlyEligible reports whether bowlerID is the only bowler with quota left
// at this point of the chunk; back-to-back overs are tolerated only then.
func onlyEligible(format domain.Format, inn *domain.InningsState, extraQuota map[string]int, bowlerID string) bool {
	for _, id := range inn.BowlingOrder {
		if id == bowlerID {
			continue
		}
		if inn.RemainingOvers(format, id)-extraQuota[id] > 0 {
			return false
		}
	}
	return true
}
