package exam

import (
	"hash/fnv"
	"math/rand"
	"sort"
)

// PresentationOrder returns the questions in the order this attempt should
// see them. Without randomization that is the authored order. With it, the
// permutation is seeded by the attempt ID, so a reload shows the same order
// without persisting it.
func PresentationOrder(e *Exam, attemptID string) []Question {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	if !e.Settings.RandomizeQuestions || attemptID == "" {
		return qs
	}
	h := fnv.New64a()
	h.Write([]byte(e.ID))
	h.Write([]byte(attemptID))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	r.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	return qs
}
