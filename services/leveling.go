package services

import (
	"math"
	"sort"
	"sync"
)

// MaxLevel bounds the precomputed curve. XP beyond TotalXPForLevel(MaxLevel) stays at MaxLevel.
const MaxLevel = 10000

var (
	curveOnce  sync.Once
	curveTotal []int64 // curveTotal[n] = TotalXPForLevel(n)
)

// XPForLevel returns the XP needed to go from level n-1 to level n:
// floor(50*n^1.5 + 10n) scaled by the level band. Levels 0 and 1 are free.
func XPForLevel(n int) int64 {
	if n <= 1 {
		return 0
	}
	base := int64(math.Floor(50*math.Pow(float64(n), 1.5) + 10*float64(n)))
	switch {
	case n <= 20:
		return base * 8 / 10
	case n <= 60:
		return base
	case n <= 90:
		return base * 12 / 10
	default:
		return base * 15 / 10
	}
}

func buildCurve() {
	curveTotal = make([]int64, MaxLevel+1)
	for n := 1; n <= MaxLevel; n++ {
		curveTotal[n] = curveTotal[n-1] + XPForLevel(n)
	}
}

// TotalXPForLevel is the cumulative XP at which level n is reached. Levels past
// MaxLevel clamp to it, matching LevelFromXP.
func TotalXPForLevel(n int) int64 {
	if n <= 0 {
		return 0
	}
	curveOnce.Do(buildCurve)
	return curveTotal[min(n, MaxLevel)]
}

// LevelFromXP returns the largest level whose cumulative requirement is <= total.
// Negative totals are level 0; any non-negative total is at least level 1.
func LevelFromXP(total int64) int {
	if total < 0 {
		return 0
	}
	curveOnce.Do(buildCurve)
	// first n with curveTotal[n] > total, minus one
	n := sort.Search(MaxLevel+1, func(i int) bool { return curveTotal[i] > total })
	return n - 1
}

// XPToNextLevel is how much more XP total needs before the next level.
func XPToNextLevel(total int64) int64 {
	level := LevelFromXP(total)
	if level >= MaxLevel {
		return 0
	}
	if total < 0 {
		total = 0
	}
	return TotalXPForLevel(level+1) - total
}
