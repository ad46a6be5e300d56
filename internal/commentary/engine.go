package commentary

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"cricket-sim/internal/constants"
	"cricket-sim/internal/domain"
)

// FallbackLine is emitted only when no template and no outcome description
// is available at all.
const FallbackLine = "Play continues."

// BallContext carries everything the engine needs to render one delivery.
// Running totals are post-application values, so milestone checks see the
// score the ball produced.
type BallContext struct {
	Event            domain.BallEvent
	BatterName       string
	BowlerName       string
	BattingTeamName  string
	FieldingTeamName string
	Hint             string // provider commentary suggestion, not authoritative

	BatterRuns      int // striker's total after this ball
	PartnershipRuns int // current stand after this ball
	WicketsInWindow int // wickets within the collapse window, this ball included
}

// Engine renders ball commentary in two layers: a micro line keyed by the
// outcome, and an optional narrative line appended when a stateful trigger
// fires. Template selection is the only nondeterminism and is seedable.
type Engine struct {
	catalog *Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(catalog *Catalog, seed int64) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		catalog: catalog,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Render produces the commentary line for one delivery.
func (e *Engine) Render(ctx BallContext) string {
	line := e.microLine(ctx)
	if narrative := e.macroLine(ctx); narrative != "" {
		line = line + " " + narrative
	}
	return line
}

func (e *Engine) microLine(ctx BallContext) string {
	for _, key := range keyChain(ctx.Event) {
		if templates, ok := e.catalog.Templates[key]; ok && len(templates) > 0 {
			return e.fill(e.pick(templates), ctx)
		}
	}
	if ctx.Hint != "" {
		return ctx.Hint
	}
	if desc := ctx.Event.Describe(); desc != "" {
		return desc
	}
	return FallbackLine
}

// keyChain maps the closed outcome variant to its template key plus
// fallbacks, most specific first. The chain is data, not code branches, so
// every outcome kind resolves through the same path.
func keyChain(ev domain.BallEvent) []string {
	switch ev.Kind {
	case domain.BallWicket:
		if ev.Wicket != domain.WicketNone {
			return []string{"wicket_" + string(ev.Wicket), "wicket"}
		}
		return []string{"wicket"}
	case domain.BallExtra:
		switch ev.Extra {
		case domain.ExtraWide:
			return []string{"wide"}
		case domain.ExtraNoBall:
			return []string{"noball"}
		case domain.ExtraBye:
			return []string{"bye"}
		case domain.ExtraLegBye:
			return []string{"leg_bye"}
		}
		return nil
	default:
		switch ev.Runs {
		case 0:
			return []string{"dot"}
		case 1:
			return []string{"single"}
		case 2:
			return []string{"two", "single"}
		case 3:
			return []string{"three", "single"}
		case 4:
			return []string{"boundary_four"}
		case 6:
			return []string{"boundary_six", "boundary_four"}
		default:
			// Unknown boundary-ish values degrade to the four template.
			return []string{"boundary_four"}
		}
	}
}

// macroLine checks the narrative triggers against the running state. All
// thresholds are exact-value matches so each fires once per crossing; a
// score that jumps over a milestone in one hit never triggers it.
func (e *Engine) macroLine(ctx BallContext) string {
	switch {
	case ctx.Event.Kind == domain.BallWicket && ctx.WicketsInWindow >= constants.CollapseWickets:
		return e.narrative("collapse", ctx)
	case ctx.Event.BatterRuns() > 0 && ctx.BatterRuns == constants.BatterMilestoneHundred:
		return e.narrative("batter_hundred", ctx)
	case ctx.Event.BatterRuns() > 0 && ctx.BatterRuns == constants.BatterMilestoneFifty:
		return e.narrative("batter_fifty", ctx)
	case ctx.Event.TotalRuns() > 0 && ctx.PartnershipRuns == constants.PartnershipMilestone:
		return e.narrative("partnership_fifty", ctx)
	}
	return ""
}

func (e *Engine) narrative(key string, ctx BallContext) string {
	lines, ok := e.catalog.Narratives[key]
	if !ok || len(lines) == 0 {
		return ""
	}
	return e.fill(e.pick(lines), ctx)
}

func (e *Engine) pick(candidates []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return candidates[e.rng.Intn(len(candidates))]
}

func (e *Engine) fill(template string, ctx BallContext) string {
	r := strings.NewReplacer(
		"{batter}", ctx.BatterName,
		"{bowler}", ctx.BowlerName,
		"{team}", ctx.BattingTeamName,
		"{fielding_team}", ctx.FieldingTeamName,
		"{runs}", strconv.Itoa(ctx.Event.TotalRuns()),
	)
	return r.Replace(template)
}
