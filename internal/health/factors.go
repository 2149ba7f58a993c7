// internal/health/factors.go
package health

import (
	"math"
	"strings"
	"time"
)

// pushSignals are phrases that indicate the close date has slipped. Each
// distinct phrase found deducts 20 points from the close-date factor.
var pushSignals = []string{"pushed", "delayed", "moved out", "rescheduled"}

// positiveKeywords and negativeKeywords drive the notes-signal factor at +10
// and -10 per distinct match. "pushed" and "delayed" also appear in
// pushSignals; the two factors match independently, so a slipped deal pays
// both penalties. That overlap is intentional.
var positiveKeywords = []string{
	"budget confirmed",
	"legal engaged",
	"exec sponsor",
	"timeline committed",
	"verbal commit",
	"procurement",
}

var negativeKeywords = []string{
	"no response",
	"circling back",
	"waiting on approval",
	"reviewing internally",
	"pushed",
	"delayed",
	"stalled",
}

// scoreStageProbability uses the stage-level win probability directly, clamped
// into range. Deals without a stage probability sit at 35.
func scoreStageProbability(winProbability *float64) int {
	if winProbability == nil {
		return 35
	}
	return clamp(int(math.Round(*winProbability)), 0, 100)
}

// scoreVelocity compares time since the last touch against a per-stage
// benchmark. Four coarse bands on the ratio; interpolating would suggest more
// precision than the proxy signal carries.
func scoreVelocity(lastActivityAt *time.Time, stage string, midnight time.Time, debug *Debug) int {
	benchmark, ok := stageBenchmarkDays[stage]
	if !ok {
		benchmark = defaultBenchmarkDays
	}
	debug.BenchmarkDays = benchmark

	if lastActivityAt == nil {
		return 70
	}

	days := daysSince(*lastActivityAt, midnight)
	debug.DaysSinceActivity = &days

	ratio := float64(days) / float64(benchmark)
	switch {
	case ratio <= 0.8:
		return 100
	case ratio <= 1.2:
		return 70
	case ratio <= 1.5:
		return 40
	default:
		return 10
	}
}

// scoreActivityRecency measures staleness of engagement independent of stage.
// Prefers the newest discrete note timestamp, falls back to the deal's last
// activity stamp.
func scoreActivityRecency(latestNoteAt, lastActivityAt *time.Time, midnight time.Time) int {
	ref := latestNoteAt
	if ref == nil {
		ref = lastActivityAt
	}
	if ref == nil {
		return 40
	}

	days := daysSince(*ref, midnight)
	switch {
	case days <= 7:
		return 100
	case days <= 14:
		return 70
	case days <= 30:
		return 40
	default:
		return 10
	}
}

// scoreCloseDateIntegrity penalizes close dates that look unreliable. An
// overdue date is fine once the deal is effectively won or implementing,
// alarming anywhere else. Each distinct push-signal phrase in the notes
// deducts 20 points, floored at 10.
func scoreCloseDateIntegrity(closeDate *time.Time, stage, notes string, midnight time.Time, debug *Debug) int {
	base := 60
	if closeDate != nil {
		until := daysUntil(*closeDate, midnight)
		debug.DaysUntilClose = &until

		switch {
		case until < 0:
			if strings.Contains(stage, "implement") || strings.Contains(stage, "won") {
				base = 100
			} else {
				base = 10
			}
		case until <= 30:
			base = 70
		default:
			base = 100
		}
	}

	matched := matchPhrases(notes, pushSignals)
	debug.PushSignals = matched

	return clamp(base-len(matched)*20, 10, 100)
}

// scoreACV ranks the deal's value against the comparison population. Unsized
// deals and empty populations land on a neutral 40.
func scoreACV(valueAmount *float64, population []float64, debug *Debug) int {
	if valueAmount == nil || *valueAmount <= 0 || len(population) == 0 {
		return 40
	}

	below := 0
	for _, v := range population {
		if v < *valueAmount {
			below++
		}
	}
	percentile := float64(below) / float64(len(population))
	debug.ValuePercentile = &percentile

	switch {
	case percentile >= 0.8:
		return 100
	case percentile >= 0.4:
		return 70
	default:
		return 40
	}
}

// scoreNotesSignal is a lexical sentiment proxy over the combined notes text:
// 50 base, +10 per distinct positive keyword, -10 per distinct negative one.
func scoreNotesSignal(notes string, debug *Debug) int {
	positive := matchPhrases(notes, positiveKeywords)
	negative := matchPhrases(notes, negativeKeywords)
	debug.PositiveKeywords = positive
	debug.NegativeKeywords = negative

	return clamp(50+len(positive)*10-len(negative)*10, 0, 100)
}

// matchPhrases returns the phrases present in text at least once, in list
// order. Repeats of the same phrase count once.
func matchPhrases(text string, phrases []string) []string {
	matched := []string{}
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}
