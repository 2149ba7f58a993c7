// internal/health/snapshot.go
package health

import "time"

// Snapshot is the immutable per-invocation view of a deal. Callers assemble it
// fresh for every scoring request; nil pointer fields mean "not recorded".
// AllNotesText is the concatenation of every activity-log entry and may be
// empty but is never absent.
type Snapshot struct {
	WinProbability  *float64   `json:"winProbability,omitempty"`
	StageName       *string    `json:"stageName,omitempty"`
	ValueAmount     *float64   `json:"valueAmount,omitempty"`
	CloseDate       *time.Time `json:"closeDate,omitempty"`
	LastActivityAt  *time.Time `json:"lastActivityAt,omitempty"`
	DealNotesInline *string    `json:"dealNotesInline,omitempty"`
	LatestNoteAt    *time.Time `json:"latestNoteAt,omitempty"`
	AllNotesText    string     `json:"allNotesText"`
}

// Breakdown holds the six factor scores, each an integer in [0, 100].
type Breakdown struct {
	StageProbability   int `json:"stageProbability"`
	Velocity           int `json:"velocity"`
	ActivityRecency    int `json:"activityRecency"`
	CloseDateIntegrity int `json:"closeDateIntegrity"`
	ACV                int `json:"acv"`
	NotesSignal        int `json:"notesSignal"`
}

// Debug carries derived intermediates for diagnostics. Nothing here feeds back
// into the score.
type Debug struct {
	ResolvedStage     string   `json:"resolvedStage"`
	DaysSinceActivity *int     `json:"daysSinceActivity,omitempty"`
	DaysUntilClose    *int     `json:"daysUntilClose,omitempty"`
	BenchmarkDays     int      `json:"benchmarkDays"`
	ValuePercentile   *float64 `json:"valuePercentile,omitempty"`
	PushSignals       []string `json:"pushSignals"`
	PositiveKeywords  []string `json:"positiveKeywords"`
	NegativeKeywords  []string `json:"negativeKeywords"`
}

// Result is the full output of a single scoring pass.
type Result struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Debug     Debug     `json:"debug"`
}
