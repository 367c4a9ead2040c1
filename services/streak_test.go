package services_test

import (
	"testing"
	"time"

	"cohort-points-system/services"

	"github.com/stretchr/testify/assert"
)

func days(ref time.Time, offsets ...int) []string {
	out := make([]string, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, ref.AddDate(0, 0, -o).Format(services.DateLayout))
	}
	return out
}

func TestStreakLength(t *testing.T) {
	ref := time.Date(2026, time.May, 20, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		offsets []int
		want    int
	}{
		{name: "no logins", offsets: nil, want: 0},
		{name: "seven consecutive days", offsets: []int{0, 1, 2, 3, 4, 5, 6}, want: 7},
		{name: "gap breaks the streak", offsets: []int{0, 1, 3, 4, 5, 6, 7}, want: 2},
		{name: "no login on reference date", offsets: []int{1, 2, 3}, want: 0},
		{name: "unordered input", offsets: []int{4, 0, 2, 1, 3}, want: 5},
		{name: "duplicates are harmless", offsets: []int{0, 0, 1, 1, 2}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.StreakLength(days(ref, tt.offsets...), ref))
		})
	}
}

func TestDetectMilestones(t *testing.T) {
	ref := time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC)

	t.Run("seven day streak fires", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 0, 1, 2, 3, 4, 5, 6), ref)
		assert.True(t, m.Streak)
		assert.Equal(t, 7, m.StreakLength)
		assert.False(t, m.Absence)
	})

	t.Run("eight day streak does not re-fire", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 0, 1, 2, 3, 4, 5, 6, 7), ref)
		assert.False(t, m.Streak)
		assert.Equal(t, 8, m.StreakLength)
	})

	t.Run("fourteen day streak fires again", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13), ref)
		assert.True(t, m.Streak)
		assert.Equal(t, 14, m.StreakLength)
	})

	t.Run("last login exactly three days ago", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 3), ref)
		assert.True(t, m.Absence)
		assert.False(t, m.Streak)
		assert.Equal(t, 0, m.StreakLength)
	})

	t.Run("last login two days ago reports neither", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 2), ref)
		assert.False(t, m.Absence)
		assert.False(t, m.Streak)
	})

	t.Run("four days away is not re-penalized", func(t *testing.T) {
		m := services.DetectMilestones(days(ref, 4), ref)
		assert.False(t, m.Absence)
	})

	t.Run("no logins at all", func(t *testing.T) {
		m := services.DetectMilestones(nil, ref)
		assert.False(t, m.Streak)
		assert.False(t, m.Absence)
	})
}
