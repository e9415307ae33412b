package exam

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	e := &Exam{ScheduledAt: 1000, EndAt: 2000}
	cases := []struct {
		name string
		ts   int64
		want Bucket
	}{
		{"before window", 999, BucketUpcoming},
		{"window open boundary", 1000, BucketOngoing},
		{"mid window", 1500, BucketOngoing},
		{"window close boundary", 2000, BucketEnded},
		{"after window", 3000, BucketEnded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(e, time.Unix(tc.ts, 0)); got != tc.want {
				t.Fatalf("Classify at %d = %s, want %s", tc.ts, got, tc.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	e := &Exam{ScheduledAt: 1000, EndAt: 2000}
	now := time.Unix(1500, 0)
	for i := 0; i < 5; i++ {
		if got := Classify(e, now); got != BucketOngoing {
			t.Fatalf("classification changed between calls: %s", got)
		}
	}
}
