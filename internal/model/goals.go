package model

// QuadrantSize is the fixed number of goals in each quadrant.
const QuadrantSize = 3

type Goal struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	AchievementRate int    `json:"achievementRate"`
}

// Goals holds the two fixed 3-element quadrants tracked per day key.
type Goals struct {
	Primary   [QuadrantSize]Goal `json:"primary"`
	Secondary [QuadrantSize]Goal `json:"secondary"`
}

// DefaultGoals materializes the empty quadrants for a day key seen for the
// first time.
func DefaultGoals() Goals {
	var g Goals
	for i := 0; i < QuadrantSize; i++ {
		g.Primary[i] = Goal{ID: goalID("p", i)}
		g.Secondary[i] = Goal{ID: goalID("s", i)}
	}
	return g
}

func goalID(quadrant string, slot int) string {
	return "goal-" + quadrant + string(rune('1'+slot))
}

// ClampRate forces an achievement rate into [0,100].
func ClampRate(rate int) int {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// Empty reports whether no goal in either quadrant has been filled in.
func (g Goals) Empty() bool {
	for i := 0; i < QuadrantSize; i++ {
		if g.Primary[i].Text != "" || g.Primary[i].AchievementRate != 0 {
			return false
		}
		if g.Secondary[i].Text != "" || g.Secondary[i].AchievementRate != 0 {
			return false
		}
	}
	return true
}
