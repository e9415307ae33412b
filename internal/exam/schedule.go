package exam

import "time"

// Bucket is the time-derived visibility state of an exam, distinct from its
// authoring status. It is recomputed on every read rather than stored, so a
// separately maintained status field can never go stale.
type Bucket string

const (
	BucketUpcoming Bucket = "upcoming"
	BucketOngoing  Bucket = "ongoing"
	BucketEnded    Bucket = "ended"
)

// Classify maps an exam and a wall-clock instant to its bucket. Pure and
// deterministic; boundary ties favor the later bucket (ScheduledAt itself is
// ongoing, EndAt itself is ended).
func Classify(e *Exam, now time.Time) Bucket {
	ts := now.Unix()
	switch {
	case ts < e.ScheduledAt:
		return BucketUpcoming
	case ts < e.EndAt:
		return BucketOngoing
	default:
		return BucketEnded
	}
}
