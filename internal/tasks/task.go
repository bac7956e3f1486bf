package tasks

import (
	"fmt"
	"math"
)

// Task is one planner item. Priority, Desire and Difficulty are 0-10,
// Percent (effort already done) is 0-100.
type Task struct {
	ID         string  `json:"id"`
	Emoji      string  `json:"emoji"`
	Text       string  `json:"text"`
	Priority   float64 `json:"priority"`
	Desire     float64 `json:"desire"`
	Difficulty float64 `json:"difficulty"`
	Percent    float64 `json:"percent"`
}

// ScoredTask is a task annotated with its derived ranking score and display
// color.
type ScoredTask struct {
	Task
	Score float64 `json:"score"`
	Color string  `json:"color"`
}

// Clamp bounds v to [min, max]; NaN collapses to min.
func Clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	return math.Min(max, math.Max(min, v))
}

// Normalize clamps all score dimensions into their valid ranges.
func (t *Task) Normalize() {
	t.Priority = Clamp(t.Priority, 0, 10)
	t.Desire = Clamp(t.Desire, 0, 10)
	t.Difficulty = Clamp(t.Difficulty, 0, 10)
	t.Percent = Clamp(t.Percent, 0, 100)
}

// Score combines the four dimensions into the ranking score. Priority gains
// weight for tasks with little progress and high difficulty; desire gains
// weight for tasks nearly done and easy.
func (t Task) Score() float64 {
	c := t.Difficulty
	e := t.Percent / 100
	p := t.Priority + t.Priority*(1-e) + t.Priority*(c/10)
	d := t.Desire + t.Desire*e + t.Desire*((10-c)/10)
	return p*0.93 + d*0.69 + (10-c)*0.36
}

// ScoreColor maps a score within [minScore, maxScore] onto the
// red → orange → green display ramp and returns a CSS rgb() string.
func ScoreColor(score, minScore, maxScore float64) string {
	if !isFinite(score) || !isFinite(minScore) || !isFinite(maxScore) {
		return "rgb(255, 77, 148)"
	}

	rng := maxScore - minScore
	t := 0.5
	if rng > 0 {
		t = (score - minScore) / rng
	}
	t = Clamp(t, 0, 1)

	// Ramp stops: red rgb(255,77,148), orange rgb(255,196,69), green rgb(45,212,191).
	var r, g, b float64
	if t < 0.5 {
		lt := t * 2
		r = 255
		g = 77 + (196-77)*lt
		b = 148 + (69-148)*lt
	} else {
		lt := (t - 0.5) * 2
		r = 255 + (45-255)*lt
		g = 196 + (212-196)*lt
		b = 69 + (191-69)*lt
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", int(math.Round(r)), int(math.Round(g)), int(math.Round(b)))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
