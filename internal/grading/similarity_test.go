package grading

import (
	"context"
	"testing"
)

func TestLexicalScorer(t *testing.T) {
	s := LexicalScorer{}
	ctx := context.Background()

	sim, err := s.Similarity(ctx, "Photosynthesis.", []string{"photosynthesis"})
	if err != nil {
		t.Fatalf("similarity: %v", err)
	}
	if sim != 1 {
		t.Fatalf("case and punctuation should normalize away, got %v", sim)
	}

	sim, _ = s.Similarity(ctx, "completely unrelated", []string{"photosynthesis"})
	if sim > 0.5 {
		t.Fatalf("unrelated answer too similar: %v", sim)
	}

	// best-of across samples
	sim, _ = s.Similarity(ctx, "water cycle", []string{"nitrogen cycle", "water cycle"})
	if sim != 1 {
		t.Fatalf("best sample should win, got %v", sim)
	}

	sim, _ = s.Similarity(ctx, "anything", nil)
	if sim != 0 {
		t.Fatalf("no samples means zero similarity, got %v", sim)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q,%q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Hello,   World! ", "hello world"},
		{"A.B.C", "abc"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
