package grading

import (
	"context"
	"fmt"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	ID            string
	Type          string
	Points        float64
	CorrectAnswer string
	SampleAnswers []string
}

// Result is the outcome of grading a single question response.
type Result struct {
	Points      float64 // points awarded (provisional when NeedsReview)
	MaxPoints   float64 // the question's max points
	NeedsReview bool    // true if instructor review is required before release
	Note        string  // optional grading note
}

// Scorer rates a free-text answer against sample answers, returning a
// similarity in [0,1]. It stands in for an external scoring service; the
// default is a lexical edit-distance scorer.
type Scorer interface {
	Similarity(ctx context.Context, answer string, samples []string) (float64, error)
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, answer string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, answer string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, answer string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsReview: true, Note: "no strategy for question type " + q.Type}, nil
	}
	return s.Grade(ctx, q, answer)
}

type Option func(*config)

type config struct {
	Scorer Scorer
}

// WithScorer swaps the short-answer similarity collaborator.
func WithScorer(s Scorer) Option { return func(c *config) { c.Scorer = s } }

// NewDefaultGrader installs the built-in strategies. Objective types are
// graded deterministically; short answers get a provisional similarity score
// and are always staged for review.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{Scorer: LexicalScorer{}}
	for _, o := range opts {
		o(cfg)
	}
	exact := exactMatchStrategy{}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"multiple_choice": exact,
			"true_false":      exact,
			"short_answer":    shortAnswerStrategy{scorer: cfg.Scorer},
		},
	}
}

type exactMatchStrategy struct{}

func (exactMatchStrategy) Grade(_ context.Context, q Q, answer string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if answer != "" && normalize(answer) == normalize(q.CorrectAnswer) {
		res.Points = q.Points
	}
	return res, nil
}

type shortAnswerStrategy struct{ scorer Scorer }

func (s shortAnswerStrategy) Grade(ctx context.Context, q Q, answer string) (Result, error) {
	res := Result{MaxPoints: q.Points, NeedsReview: true}
	if answer == "" {
		res.Note = "no answer given"
		return res, nil
	}
	sim, err := s.scorer.Similarity(ctx, answer, q.SampleAnswers)
	if err != nil {
		res.Note = "similarity scoring unavailable"
		return res, nil
	}
	res.Points = q.Points * sim
	res.Note = fmt.Sprintf("provisional, similarity %.2f", sim)
	return res, nil
}
