// internal/health/score.go
package health

import (
	"math"
	"strings"
	"time"
)

// Factor weights. They must sum to 100.
const (
	weightStageProbability   = 25
	weightVelocity           = 20
	weightActivityRecency    = 15
	weightCloseDateIntegrity = 10
	weightACV                = 15
	weightNotesSignal        = 15
)

const dayMillis = 86_400_000

// stageBenchmarkDays maps a normalized stage name to the expected number of
// days between touches at that stage. Stages not listed fall back to
// defaultBenchmarkDays.
var stageBenchmarkDays = map[string]int{
	"solution qualified":    14,
	"presenting to edm":     21,
	"short listed":          21,
	"contract negotiations": 28,
	"contract signed":       14,
	"implementing":          30,
}

const defaultBenchmarkDays = 21

// ComputeHealthScore produces a composite 0-100 health score for a deal from
// its snapshot and a comparison population of deal values. It is deterministic
// given identical inputs and performs no I/O; now is the evaluation instant,
// injected so day arithmetic never reads the wall clock. All day counts are
// measured from midnight (UTC) of now's calendar date in whole 24h periods.
func ComputeHealthScore(snapshot Snapshot, population []float64, now time.Time) Result {
	midnight := startOfDay(now)

	debug := Debug{
		ResolvedStage:    normalizeStage(snapshot.StageName),
		PushSignals:      []string{},
		PositiveKeywords: []string{},
		NegativeKeywords: []string{},
	}
	notes := combinedNotes(snapshot)

	breakdown := Breakdown{
		StageProbability:   scoreStageProbability(snapshot.WinProbability),
		Velocity:           scoreVelocity(snapshot.LastActivityAt, debug.ResolvedStage, midnight, &debug),
		ActivityRecency:    scoreActivityRecency(snapshot.LatestNoteAt, snapshot.LastActivityAt, midnight),
		CloseDateIntegrity: scoreCloseDateIntegrity(snapshot.CloseDate, debug.ResolvedStage, notes, midnight, &debug),
		ACV:                scoreACV(snapshot.ValueAmount, population, &debug),
		NotesSignal:        scoreNotesSignal(notes, &debug),
	}

	weighted := weightStageProbability*breakdown.StageProbability +
		weightVelocity*breakdown.Velocity +
		weightActivityRecency*breakdown.ActivityRecency +
		weightCloseDateIntegrity*breakdown.CloseDateIntegrity +
		weightACV*breakdown.ACV +
		weightNotesSignal*breakdown.NotesSignal

	totalWeight := weightStageProbability + weightVelocity + weightActivityRecency +
		weightCloseDateIntegrity + weightACV + weightNotesSignal

	score := clamp(int(math.Round(float64(weighted)/float64(totalWeight))), 0, 100)

	return Result{
		Score:     score,
		Breakdown: breakdown,
		Debug:     debug,
	}
}

// startOfDay returns midnight UTC of t's calendar date. Anchoring day counts
// to midnight keeps a given date's score stable no matter what time of day the
// recompute fires.
func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysSince counts whole elapsed 24h periods from t to the midnight reference,
// floored at zero for timestamps later than the reference.
func daysSince(t, midnight time.Time) int {
	elapsed := midnight.Sub(t).Milliseconds() / dayMillis
	if elapsed < 0 {
		return 0
	}
	return int(elapsed)
}

// daysUntil counts 24h periods from the midnight reference to t, rounded up.
// Negative means t is already in the past.
func daysUntil(t, midnight time.Time) int {
	ms := t.Sub(midnight).Milliseconds()
	days := ms / dayMillis
	if ms%dayMillis > 0 {
		days++
	}
	return int(days)
}

func normalizeStage(stage *string) string {
	if stage == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*stage))
}

// combinedNotes joins the deal's inline notes field with the concatenated
// activity-log text, lower-cased for substring matching.
func combinedNotes(snapshot Snapshot) string {
	inline := ""
	if snapshot.DealNotesInline != nil {
		inline = *snapshot.DealNotesInline
	}
	return strings.ToLower(inline + "\n" + snapshot.AllNotesText)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
