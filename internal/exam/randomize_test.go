package exam

import (
	"fmt"
	"testing"
)

func orderedExam(n int, randomize bool) *Exam {
	e := &Exam{ID: "e1", Settings: Settings{RandomizeQuestions: randomize}}
	// authored out of order on purpose
	for i := n; i >= 1; i-- {
		e.Questions = append(e.Questions, Question{ID: fmt.Sprintf("q%d", i), Order: i})
	}
	return e
}

func TestPresentationOrderAuthored(t *testing.T) {
	e := orderedExam(5, false)
	qs := PresentationOrder(e, "a1")
	for i, q := range qs {
		if q.Order != i+1 {
			t.Fatalf("position %d has order %d", i, q.Order)
		}
	}
}

func TestPresentationOrderDeterministicPerAttempt(t *testing.T) {
	e := orderedExam(10, true)
	first := PresentationOrder(e, "a1")
	for i := 0; i < 5; i++ {
		again := PresentationOrder(e, "a1")
		for j := range first {
			if first[j].ID != again[j].ID {
				t.Fatalf("reload %d reshuffled: %s vs %s at %d", i, first[j].ID, again[j].ID, j)
			}
		}
	}
}

func TestPresentationOrderVariesAcrossAttempts(t *testing.T) {
	e := orderedExam(10, true)
	a := PresentationOrder(e, "a1")
	b := PresentationOrder(e, "a2")
	same := true
	for i := range a {
		if a[i].ID != b[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different attempts got the identical permutation")
	}
	// permutation, not a subset
	seen := map[string]bool{}
	for _, q := range b {
		seen[q.ID] = true
	}
	if len(seen) != 10 {
		t.Fatalf("shuffle lost questions: %d of 10", len(seen))
	}
}
