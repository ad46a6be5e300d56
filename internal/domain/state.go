package domain

import "fmt"

// BatterState is the running batting record for one player in one innings.
type BatterState struct {
	PlayerID  string
	Position  int
	Runs      int
	Balls     int
	Fours     int
	Sixes     int
	Out       bool
	Dismissal WicketKind
}

// BowlerState is the running bowling record for one player in one innings.
type BowlerState struct {
	PlayerID     string
	Balls        int // legal deliveries bowled
	RunsConceded int
	Wickets      int
	Maidens      int
}

// OversCompleted is the number of finished 6-ball overs.
func (b *BowlerState) OversCompleted() int {
	return b.Balls / 6
}

// PartnershipState tracks the current unbroken stand.
type PartnershipState struct {
	Runs  int
	Balls int
}

// InningsState is the mutable per-innings half of MatchState.
type InningsState struct {
	Number        int
	BattingTeamID string
	BowlingTeamID string
	BattingOrder  []string
	BowlingOrder  []string
	nextBatter    int

	StrikerID    string
	NonStrikerID string

	Runs        int
	Wickets     int
	LegalBalls  int // legal deliveries across the innings
	BallInOver  int // legal deliveries completed in the current over
	DeliverySeq int // all deliveries including extras, 1-based after first ball

	CurrentBowlerID string
	LastBowlerID    string // bowler of the most recently completed over
	overRunsCharged int    // runs against the current bowler this over

	Target int // innings 2 only; 0 means no target

	Batters map[string]*BatterState
	Bowlers map[string]*BowlerState

	Partnership  PartnershipState
	Partnerships []Partnership

	// Delivery sequence numbers at which wickets fell, for the collapse
	// narrative window.
	WicketDeliveries []int
}

// MatchState is the single-owner mutable aggregate for one simulation.
// Only the orchestrator mutates it, strictly ball by ball.
type MatchState struct {
	MatchID    string
	Format     Format
	Scenario   MasterScenario
	TeamAID    string
	TeamBID    string
	Innings    [2]*InningsState
	InningsNum int // 1 or 2
	Finished   bool
	WinnerID   string
	ResultText string
}

func NewMatchState(matchID string, format Format, scenario MasterScenario, teamA, teamB string, battingOrderA, battingOrderB []string) *MatchState {
	m := &MatchState{
		MatchID:    matchID,
		Format:     format,
		Scenario:   scenario,
		TeamAID:    teamA,
		TeamBID:    teamB,
		InningsNum: 1,
	}
	m.Innings[0] = newInnings(1, teamA, teamB, battingOrderA, battingOrderB, 0)
	m.Innings[1] = newInnings(2, teamB, teamA, battingOrderB, battingOrderA, 0)
	return m
}

func newInnings(number int, battingTeam, bowlingTeam string, battingOrder, bowlingOrder []string, target int) *InningsState {
	inn := &InningsState{
		Number:        number,
		BattingTeamID: battingTeam,
		BowlingTeamID: bowlingTeam,
		BattingOrder:  battingOrder,
		BowlingOrder:  bowlingOrder,
		Target:        target,
		Batters:       make(map[string]*BatterState),
		Bowlers:       make(map[string]*BowlerState),
	}
	if len(battingOrder) > 0 {
		inn.StrikerID = battingOrder[0]
	}
	if len(battingOrder) > 1 {
		inn.NonStrikerID = battingOrder[1]
		inn.nextBatter = 2
	}
	return inn
}

// Current returns the innings in progress.
func (m *MatchState) Current() *InningsState {
	return m.Innings[m.InningsNum-1]
}

func (inn *InningsState) batter(id string) *BatterState {
	b, ok := inn.Batters[id]
	if !ok {
		b = &BatterState{PlayerID: id, Position: len(inn.Batters) + 1}
		inn.Batters[id] = b
	}
	return b
}

func (inn *InningsState) bowler(id string) *BowlerState {
	b, ok := inn.Bowlers[id]
	if !ok {
		b = &BowlerState{PlayerID: id}
		inn.Bowlers[id] = b
	}
	return b
}

// AllOut reports whether the batting side has no wickets left.
func (inn *InningsState) AllOut() bool {
	return inn.Wickets >= len(inn.BattingOrder)-1 || inn.Wickets >= 10
}

// OversExhausted reports whether the format's over limit has been reached.
func (inn *InningsState) OversExhausted(f Format) bool {
	return inn.LegalBalls >= f.InningsOvers()*6
}

// TargetReached reports whether the chasing side has passed its target.
func (inn *InningsState) TargetReached() bool {
	return inn.Target > 0 && inn.Runs >= inn.Target
}

// Done reports whether the innings can accept no further deliveries.
func (inn *InningsState) Done(f Format) bool {
	return inn.AllOut() || inn.OversExhausted(f) || inn.TargetReached()
}

// RemainingOvers is the bowler's unbowled quota for the format.
func (inn *InningsState) RemainingOvers(f Format, bowlerID string) int {
	b, ok := inn.Bowlers[bowlerID]
	if !ok {
		return f.BowlerQuota()
	}
	return f.BowlerQuota() - b.OversCompleted()
}

// EligibleBowlers lists bowling-side players with at least one over left,
// in bowling-order position.
func (inn *InningsState) EligibleBowlers(f Format) []string {
	var out []string
	for _, id := range inn.BowlingOrder {
		if inn.RemainingOvers(f, id) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// WicketsInWindow counts wickets among the last n deliveries.
func (inn *InningsState) WicketsInWindow(n int) int {
	count := 0
	for _, seq := range inn.WicketDeliveries {
		if inn.DeliverySeq-seq < n {
			count++
		}
	}
	return count
}

// BeginOver marks bowlerID as the active bowler for the next over. The
// caller must have validated legality first.
func (inn *InningsState) BeginOver(bowlerID string) {
	inn.CurrentBowlerID = bowlerID
	inn.BallInOver = 0
	inn.overRunsCharged = 0
	inn.bowler(bowlerID)
}

// ApplyBall folds one validated delivery into the innings and returns the
// striker the ball was bowled to. Strike rotation, over completion and
// partnership bookkeeping all happen here so the ordering is total.
func (inn *InningsState) ApplyBall(ev BallEvent) string {
	strikerID := inn.StrikerID
	inn.DeliverySeq++

	striker := inn.batter(strikerID)
	bowler := inn.bowler(inn.CurrentBowlerID)

	legal := ev.Legal()
	total := ev.TotalRuns()

	inn.Runs += total
	inn.Partnership.Runs += total
	if legal {
		inn.Partnership.Balls++
		inn.LegalBalls++
		inn.BallInOver++
		bowler.Balls++
	}

	// Wide deliveries are not faced; everything else is.
	if ev.Extra != ExtraWide {
		striker.Balls++
	}
	striker.Runs += ev.BatterRuns()
	switch ev.BatterRuns() {
	case 4:
		striker.Fours++
	case 6:
		striker.Sixes++
	}

	// Byes and leg byes are not charged to the bowler.
	if ev.Extra != ExtraBye && ev.Extra != ExtraLegBye {
		bowler.RunsConceded += total
		inn.overRunsCharged += total
	}

	if ev.Kind == BallWicket {
		inn.fallOfWicket(strikerID, ev.Wicket, bowler)
	} else if total%2 == 1 {
		inn.StrikerID, inn.NonStrikerID = inn.NonStrikerID, inn.StrikerID
	}

	if inn.BallInOver == 6 {
		inn.completeOver(bowler)
	}
	return strikerID
}

func (inn *InningsState) fallOfWicket(strikerID string, kind WicketKind, bowler *BowlerState) {
	striker := inn.batter(strikerID)
	striker.Out = true
	striker.Dismissal = kind
	if kind != WicketRunOut {
		bowler.Wickets++
	}
	inn.Wickets++
	inn.WicketDeliveries = append(inn.WicketDeliveries, inn.DeliverySeq)

	inn.Partnerships = append(inn.Partnerships, Partnership{
		Innings: inn.Number,
		Wicket:  inn.Wickets,
		Runs:    inn.Partnership.Runs,
		Balls:   inn.Partnership.Balls,
	})
	inn.Partnership = PartnershipState{}

	if inn.nextBatter < len(inn.BattingOrder) {
		inn.StrikerID = inn.BattingOrder[inn.nextBatter]
		inn.nextBatter++
	} else {
		inn.StrikerID = ""
	}
}

func (inn *InningsState) completeOver(bowler *BowlerState) {
	if inn.overRunsCharged == 0 {
		bowler.Maidens++
	}
	inn.LastBowlerID = inn.CurrentBowlerID
	inn.CurrentBowlerID = ""
	inn.BallInOver = 0
	inn.overRunsCharged = 0
	inn.StrikerID, inn.NonStrikerID = inn.NonStrikerID, inn.StrikerID
}

// CloseInnings records the final unbroken partnership, if any.
func (inn *InningsState) CloseInnings() {
	if inn.Partnership.Balls > 0 || inn.Partnership.Runs > 0 {
		inn.Partnerships = append(inn.Partnerships, Partnership{
			Innings: inn.Number,
			Wicket:  inn.Wickets + 1,
			Runs:    inn.Partnership.Runs,
			Balls:   inn.Partnership.Balls,
		})
		inn.Partnership = PartnershipState{}
	}
}

// StartSecondInnings closes the first innings and sets the chase target.
func (m *MatchState) StartSecondInnings() {
	first := m.Innings[0]
	first.CloseInnings()
	m.InningsNum = 2
	m.Innings[1].Target = first.Runs + 1
}

// Finish computes the winner and result text from both innings and marks the
// match complete.
func (m *MatchState) Finish() {
	m.Current().CloseInnings()
	m.Finished = true

	first, second := m.Innings[0], m.Innings[1]
	switch {
	case second.Target > 0 && second.Runs >= second.Target:
		m.WinnerID = second.BattingTeamID
		wicketsLeft := len(second.BattingOrder) - 1 - second.Wickets
		m.ResultText = fmt.Sprintf("%s won by %d wicket(s)", second.BattingTeamID, wicketsLeft)
	case second.Runs == first.Runs:
		m.WinnerID = ""
		m.ResultText = "match tied"
	default:
		m.WinnerID = first.BattingTeamID
		m.ResultText = fmt.Sprintf("%s won by %d run(s)", first.BattingTeamID, first.Runs-second.Runs)
	}
}
