package semaforo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func ptr(t time.Time) *time.Time { return &t }

func TestClassify_Thresholds(t *testing.T) {
	ref := date(2024, time.June, 1)

	cases := []struct {
		name   string
		target *time.Time
		days   int
		want   Level
	}{
		{"past date", ptr(date(2023, time.June, 1)), -366, LevelRed},
		{"today", ptr(ref), 0, LevelRed},
		{"about 153 days", ptr(date(2024, time.November, 1)), 153, LevelRed},
		{"182 days", ptr(date(2024, time.November, 30)), 182, LevelRed},
		{"183 days", ptr(date(2024, time.December, 1)), 183, LevelYellow},
		{"about 197 days", ptr(date(2024, time.December, 15)), 197, LevelYellow},
		{"365 days", ptr(date(2025, time.June, 1)), 365, LevelYellow},
		{"366 days", ptr(date(2025, time.June, 2)), 366, LevelGreen},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.days, DaysRemaining(*tc.target, ref))
			assert.Equal(t, tc.want, Classify(tc.target, ref))
		})
	}
}

func TestClassify_NilIsNone(t *testing.T) {
	ref := date(2024, time.June, 1)
	assert.Equal(t, LevelNone, Classify(nil, ref))
	assert.Equal(t, LevelNone, Classify(&time.Time{}, ref))
}

func TestDaysRemaining_IgnoresTimeOfDay(t *testing.T) {
	ref := time.Date(2024, time.June, 1, 23, 59, 0, 0, time.Local)
	target := time.Date(2024, time.June, 2, 0, 1, 0, 0, time.Local)
	assert.Equal(t, 1, DaysRemaining(target, ref))

	late := time.Date(2024, time.June, 1, 23, 0, 0, 0, time.Local)
	assert.Equal(t, 0, DaysRemaining(late, time.Date(2024, time.June, 1, 1, 0, 0, 0, time.Local)))
}

func TestClassifyString(t *testing.T) {
	ref := date(2024, time.June, 1)

	assert.Equal(t, LevelYellow, ClassifyString("2024-12-15", ref))
	assert.Equal(t, LevelGreen, ClassifyString("2025-06-02", ref))
	assert.Equal(t, LevelNone, ClassifyString("", ref))
	assert.Equal(t, LevelNone, ClassifyString("15/12/2024", ref))
	assert.Equal(t, LevelNone, ClassifyString("not a date", ref))
}

func TestEvaluate_Consistent(t *testing.T) {
	ref := date(2024, time.June, 1)

	for _, target := range []time.Time{
		date(2023, time.June, 1),
		date(2024, time.November, 30),
		date(2024, time.December, 1),
		date(2025, time.June, 1),
		date(2025, time.June, 2),
	} {
		st := Evaluate(ptr(target), ref)
		require.NotNil(t, st.DaysRemaining)
		assert.Equal(t, Classify(ptr(target), ref), st.Level)
		assert.Equal(t, levelForDays(*st.DaysRemaining), st.Level)
		assert.Equal(t, Label(st.Level), st.Label)
	}

	none := Evaluate(nil, ref)
	assert.Equal(t, LevelNone, none.Level)
	assert.Nil(t, none.DaysRemaining)
	assert.Equal(t, Label(LevelNone), none.Label)
}

func TestLabel_DistinctPerLevel(t *testing.T) {
	seen := map[string]Level{}
	for _, l := range []Level{LevelNone, LevelGreen, LevelYellow, LevelRed} {
		label := Label(l)
		assert.NotEmpty(t, label)
		_, dup := seen[label]
		assert.False(t, dup, "label %q reused", label)
		seen[label] = l
	}
}

func TestRank(t *testing.T) {
	assert.Less(t, Rank(LevelRed), Rank(LevelYellow))
	assert.Less(t, Rank(LevelYellow), Rank(LevelGreen))
	assert.Less(t, Rank(LevelGreen), Rank(LevelNone))
}
