package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// Redis key prefixes shared by the stores and caches.
const (
	AttemptKeyPrefix        = "attempt:"
	ReadTimeKeyPrefix       = "read_time:"
	CourseProgressKeyPrefix = "course_progress:"
	FinalizeLockPrefix      = "lock:finalize:"
	ReadTimeLockPrefix      = "lock:read_time:"
)

// MasteryThreshold is the accuracy percentage at or above which no retry is required.
const MasteryThreshold = 80.0
