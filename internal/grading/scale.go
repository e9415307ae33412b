package grading

// Band maps a minimum percentage to a letter grade.
type Band struct {
	Min    float64 `json:"min"`
	Letter string  `json:"letter"`
}

// Scale is an ordered threshold table, highest band first. The caller
// supplies it so institutions can carry their own grading schemes.
type Scale []Band

// DefaultScale is the stock A-F table.
var DefaultScale = Scale{
	{Min: 90, Letter: "A"},
	{Min: 80, Letter: "B"},
	{Min: 70, Letter: "C"},
	{Min: 60, Letter: "D"},
	{Min: 0, Letter: "F"},
}

// Letter resolves a percentage to its band.
func (s Scale) Letter(pct float64) string {
	for _, b := range s {
		if pct >= b.Min {
			return b.Letter
		}
	}
	if len(s) > 0 {
		return s[len(s)-1].Letter
	}
	return ""
}

// Totals are the aggregate fields computed from per-question results.
type Totals struct {
	Score      float64
	Percentage float64
	Grade      string
	Passed     bool
}

// Aggregate sums per-question points and derives percentage, letter grade and
// pass/fail against the exam's marks.
func Aggregate(results map[string]Result, totalMarks, passingMarks float64, scale Scale) Totals {
	t := Totals{}
	for _, r := range results {
		t.Score += r.Points
	}
	if totalMarks > 0 {
		t.Percentage = t.Score / totalMarks * 100
	}
	if len(scale) == 0 {
		scale = DefaultScale
	}
	t.Grade = scale.Letter(t.Percentage)
	t.Passed = t.Score >= passingMarks
	return t
}
