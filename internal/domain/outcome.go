package domain

import "fmt"

// BallKind is the closed set of delivery outcome categories.
type BallKind int

const (
	BallRuns BallKind = iota // 0-6 off the bat
	BallWicket
	BallExtra
)

type WicketKind string

const (
	WicketNone    WicketKind = ""
	WicketBowled  WicketKind = "bowled"
	WicketCaught  WicketKind = "caught"
	WicketLBW     WicketKind = "lbw"
	WicketRunOut  WicketKind = "run_out"
	WicketStumped WicketKind = "stumped"
)

type ExtraKind string

const (
	ExtraNone   ExtraKind = ""
	ExtraWide   ExtraKind = "wide"
	ExtraNoBall ExtraKind = "no_ball"
	ExtraBye    ExtraKind = "bye"
	ExtraLegBye ExtraKind = "leg_bye"
)

// BallEvent is the decoded outcome of a single delivery, before commentary.
type BallEvent struct {
	Kind   BallKind
	Runs   int // runs off the bat, or runs conceded with the extra
	Wicket WicketKind
	Extra  ExtraKind
}

// Legal reports whether the delivery counts toward the 6-ball over limit.
// Byes and leg byes are legal deliveries; wides and no-balls are not.
func (e BallEvent) Legal() bool {
	return e.Extra != ExtraWide && e.Extra != ExtraNoBall
}

// TotalRuns is the number of runs the batting side scores off the delivery,
// including the one-run penalty for wides and no-balls.
func (e BallEvent) TotalRuns() int {
	if e.Extra == ExtraWide || e.Extra == ExtraNoBall {
		return e.Runs + 1
	}
	return e.Runs
}

// BatterRuns is the portion credited to the striker's batting record.
func (e BallEvent) BatterRuns() int {
	switch e.Extra {
	case ExtraWide, ExtraBye, ExtraLegBye:
		return 0
	default:
		return e.Runs
	}
}

func (e BallEvent) Describe() string {
	switch e.Kind {
	case BallWicket:
		if e.Wicket != WicketNone {
			return fmt.Sprintf("wicket (%s)", e.Wicket)
		}
		return "wicket"
	case BallExtra:
		return fmt.Sprintf("%s, %d run(s)", e.Extra, e.TotalRuns())
	default:
		switch e.Runs {
		case 0:
			return "no run"
		case 4:
			return "four runs"
		case 6:
			return "six runs"
		default:
			return fmt.Sprintf("%d run(s)", e.Runs)
		}
	}
}

// Format is a match format with its over limits.
type Format string

const (
	FormatT20 Format = "t20"
	FormatODI Format = "odi"
)

// InningsOvers is the over limit for one innings.
func (f Format) InningsOvers() int {
	if f == FormatODI {
		return 50
	}
	return 20
}

// BowlerQuota is the maximum number of overs a single bowler may bowl.
func (f Format) BowlerQuota() int {
	if f == FormatODI {
		return 10
	}
	return 4
}

func (f Format) Valid() bool {
	return f == FormatT20 || f == FormatODI
}
