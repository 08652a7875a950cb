package domain

const (
	// LearningRate scales every strength delta. Updates are deliberately
	// gradual; repeated outcomes move a belief, single ones nudge it.
	LearningRate = 0.15

	DefaultStrength   = 0.5
	DefaultDifficulty = 3

	// PeakEndMultiplier amplifies updates from high-intensity or
	// end-of-interaction outcomes.
	PeakEndMultiplier      = 1.5
	PeakIntensityThreshold = 0.7
)

// CategoryMultiplier scales deltas by category and direction. The asymmetry
// is intentional: moral failures cut far deeper than moral successes build.
type CategoryMultiplier struct {
	Success float64
	Failure float64
}

var CategoryMultipliers = map[Category]CategoryMultiplier{
	CategoryMoral:      {Success: 0.8, Failure: 2.0},
	CategoryCompetence: {Success: 1.2, Failure: 1.0},
	CategoryTechnical:  {Success: 1.0, Failure: 1.0},
	CategoryPreference: {Success: 1.0, Failure: 0.8},
	CategoryIdentity:   {Success: 0, Failure: 0}, // identity never moves
}

// GetCategoryMultiplier picks the directional multiplier for a signal.
func GetCategoryMultiplier(c Category, signal float64) float64 {
	m, ok := CategoryMultipliers[c]
	if !ok {
		return 1.0
	}
	if signal < 0 {
		return m.Failure
	}
	return m.Success
}

// DifficultyMultipliers weight outcomes by how hard the attempted action was.
// Succeeding at a hard task says more than succeeding at an easy one.
var DifficultyMultipliers = map[int]float64{
	1: 0.5,
	2: 0.75,
	3: 1.0,
	4: 1.3,
	5: 1.6,
}

// GetDifficultyMultiplier clamps out-of-range levels to the nearest defined one.
func GetDifficultyMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return DifficultyMultipliers[level]
}
