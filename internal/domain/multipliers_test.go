package domain

import "testing"

func TestGetCategoryMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		signal   float64
		want     float64
	}{
		{"moral success dampened", CategoryMoral, 1, 0.8},
		{"moral failure amplified", CategoryMoral, -1, 2.0},
		{"competence success boosted", CategoryCompetence, 1, 1.2},
		{"competence failure neutral", CategoryCompetence, -1, 1.0},
		{"technical symmetric", CategoryTechnical, 1, 1.0},
		{"preference failure softened", CategoryPreference, -1, 0.8},
		{"identity success frozen", CategoryIdentity, 1, 0},
		{"identity failure frozen", CategoryIdentity, -1, 0},
		{"unknown category neutral", Category("other"), 1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetCategoryMultiplier(tt.category, tt.signal)
			if got != tt.want {
				t.Errorf("GetCategoryMultiplier(%s, %v) = %v, want %v", tt.category, tt.signal, got, tt.want)
			}
		})
	}
}

func TestGetDifficultyMultiplier(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{1, 0.5},
		{2, 0.75},
		{3, 1.0},
		{4, 1.3},
		{5, 1.6},
		// out-of-range levels clamp to the nearest band
		{0, 0.5},
		{-3, 0.5},
		{9, 1.6},
	}
	for _, tt := range tests {
		if got := GetDifficultyMultiplier(tt.level); got != tt.want {
			t.Errorf("GetDifficultyMultiplier(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
