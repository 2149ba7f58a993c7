// internal/health/factors_test.go
package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Stage Probability
// ==========================

func TestStageProbability(t *testing.T) {
	tests := []struct {
		name           string
		winProbability *float64
		expected       int
	}{
		{"absent defaults to 35", nil, 35},
		{"used directly", floatPtr(72), 72},
		{"negative clamped to 0", floatPtr(-15), 0},
		{"above range clamped to 100", floatPtr(250), 100},
		{"fractional rounded", floatPtr(62.5), 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeHealthScore(Snapshot{WinProbability: tt.winProbability}, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.StageProbability)
		})
	}
}

// ==========================
// Velocity
// ==========================

func TestVelocity_StageBenchmarkBands(t *testing.T) {
	tests := []struct {
		name         string
		stage        string
		daysInactive int
		expected     int
	}{
		{"well under benchmark", "Solution Qualified", 11, 100}, // 11/14 = 0.79
		{"at benchmark", "Solution Qualified", 14, 70},          // 1.0
		{"past benchmark", "Solution Qualified", 18, 40},        // 1.29
		{"stalled", "Solution Qualified", 22, 10},               // 1.57
		{"slow stage tolerates longer gaps", "Implementing", 24, 100}, // 24/30 = 0.8
		{"unknown stage uses default benchmark", "Discovery", 16, 100}, // 16/21 = 0.76
		{"unknown stage past default benchmark", "Discovery", 23, 70},  // 23/21 = 1.10
		{"match is case-insensitive", "CONTRACT NEGOTIATIONS", 22, 100}, // 22/28 = 0.79
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := Snapshot{
				StageName:      strPtr(tt.stage),
				LastActivityAt: daysAgo(tt.daysInactive),
			}
			result := ComputeHealthScore(snapshot, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.Velocity)
		})
	}
}

func TestVelocity_NoActivityDefaults(t *testing.T) {
	result := ComputeHealthScore(Snapshot{StageName: strPtr("Short Listed")}, nil, testNow)
	assert.Equal(t, 70, result.Breakdown.Velocity)
}

// ==========================
// Activity Recency
// ==========================

func TestActivityRecency_Bands(t *testing.T) {
	tests := []struct {
		name     string
		days     int
		expected int
	}{
		{"touched this week", 6, 100},
		{"band edge at seven days", 7, 100},
		{"second week", 8, 70},
		{"two weeks out", 14, 70},
		{"going stale", 15, 40},
		{"month-old", 30, 40},
		{"cold", 31, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := Snapshot{LatestNoteAt: timePtr(startOfDay(testNow).AddDate(0, 0, -tt.days))}
			result := ComputeHealthScore(snapshot, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.ActivityRecency)
		})
	}
}

func TestActivityRecency_FallsBackToLastActivity(t *testing.T) {
	snapshot := Snapshot{LastActivityAt: daysAgo(20)}
	result := ComputeHealthScore(snapshot, nil, testNow)
	assert.Equal(t, 40, result.Breakdown.ActivityRecency)
}

func TestActivityRecency_PrefersLatestNote(t *testing.T) {
	snapshot := Snapshot{
		LatestNoteAt:   daysAgo(2),
		LastActivityAt: daysAgo(40),
	}
	result := ComputeHealthScore(snapshot, nil, testNow)
	assert.Equal(t, 100, result.Breakdown.ActivityRecency)
}

// ==========================
// Close Date Integrity
// ==========================

func TestCloseDateIntegrity_OverdueEscape(t *testing.T) {
	tests := []struct {
		name     string
		stage    string
		expected int
	}{
		{"implementing deals may run past the close date", "Implementing", 100},
		{"won deals may run past the close date", "Closed Won", 100},
		{"anywhere else an overdue close date alarms", "Short Listed", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := Snapshot{
				StageName: strPtr(tt.stage),
				CloseDate: daysAgo(10),
			}
			result := ComputeHealthScore(snapshot, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.CloseDateIntegrity)
		})
	}
}

func TestCloseDateIntegrity_FutureBands(t *testing.T) {
	near := ComputeHealthScore(Snapshot{CloseDate: daysAhead(30)}, nil, testNow)
	assert.Equal(t, 70, near.Breakdown.CloseDateIntegrity)

	far := ComputeHealthScore(Snapshot{CloseDate: daysAhead(31)}, nil, testNow)
	assert.Equal(t, 100, far.Breakdown.CloseDateIntegrity)
}

func TestCloseDateIntegrity_PushSignalDecay(t *testing.T) {
	tests := []struct {
		name     string
		notes    string
		expected int
	}{
		{"clean notes keep the base", "strong momentum with procurement", 100},
		{"two distinct signals", "close pushed out, rescheduled for Q3", 60},
		{"repeats of one phrase count once", "pushed, pushed, and pushed again", 80},
		{"all four signals stay above the floor", "pushed, delayed, moved out, rescheduled", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := Snapshot{
				CloseDate:    daysAhead(90),
				AllNotesText: tt.notes,
			}
			result := ComputeHealthScore(snapshot, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.CloseDateIntegrity)
		})
	}
}

func TestCloseDateIntegrity_ScansInlineNotesToo(t *testing.T) {
	snapshot := Snapshot{
		CloseDate:       daysAhead(90),
		DealNotesInline: strPtr("customer rescheduled the signing"),
	}
	result := ComputeHealthScore(snapshot, nil, testNow)
	assert.Equal(t, 80, result.Breakdown.CloseDateIntegrity)
}

// ==========================
// ACV Percentile
// ==========================

func TestACV_PercentileBoundaries(t *testing.T) {
	population := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		name     string
		value    *float64
		expected int
	}{
		{"top quintile", floatPtr(41), 100},
		{"middle of the pack", floatPtr(31), 70},
		{"two below stays mid band", floatPtr(25), 70}, // 10 and 20 are strictly below, 2/5 = 0.4
		{"one below lands bottom", floatPtr(15), 40},
		{"equal values do not count as below", floatPtr(50), 100},
		{"unsized deal", nil, 40},
		{"zero value treated as unsized", floatPtr(0), 40},
		{"negative value treated as unsized", floatPtr(-500), 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeHealthScore(Snapshot{ValueAmount: tt.value}, population, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.ACV)
		})
	}
}

func TestACV_EmptyPopulation(t *testing.T) {
	result := ComputeHealthScore(Snapshot{ValueAmount: floatPtr(99000)}, nil, testNow)
	assert.Equal(t, 40, result.Breakdown.ACV)
}

// ==========================
// Notes Signal
// ==========================

func TestNotesSignal_Keywords(t *testing.T) {
	tests := []struct {
		name     string
		inline   *string
		notes    string
		expected int
	}{
		{"neutral notes", nil, "had a good call today", 50},
		{"case-insensitive positives", nil, "Budget Confirmed and Exec Sponsor onboard", 70},
		{"negatives subtract", nil, "no response for weeks, deal stalled", 30},
		{"mixed signals offset", nil, "procurement engaged but circling back next month", 50},
		{"inline notes are scanned", strPtr("verbal commit from the CFO"), "", 60},
		{"floor clamps at zero", strPtr("no response, circling back, waiting on approval"), "reviewing internally, pushed, delayed, stalled", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := Snapshot{DealNotesInline: tt.inline, AllNotesText: tt.notes}
			result := ComputeHealthScore(snapshot, nil, testNow)
			assert.Equal(t, tt.expected, result.Breakdown.NotesSignal)
		})
	}
}

// "pushed" and "delayed" live in both the push-signal list and the negative
// keyword list. A slipped deal pays the penalty in both factors.
func TestNotesSignal_PushOverlapDoublePenalty(t *testing.T) {
	snapshot := Snapshot{
		CloseDate:    daysAhead(90),
		AllNotesText: "close pushed to next quarter",
	}
	result := ComputeHealthScore(snapshot, nil, testNow)

	assert.Equal(t, 80, result.Breakdown.CloseDateIntegrity)
	assert.Equal(t, 40, result.Breakdown.NotesSignal)
}
