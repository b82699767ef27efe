package model

// ContentType identifies the kind of assessment being finalized.
type ContentType string

const (
	ContentExercise        ContentType = "Exercise"
	ContentQuiz            ContentType = "Quiz"
	ContentTest            ContentType = "Test"
	ContentCourseChallenge ContentType = "CourseChallenge"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentExercise, ContentQuiz, ContentTest, ContentCourseChallenge:
		return true
	}
	return false
}

// ResourceType is the type of a course resource as stored in the content tables.
type ResourceType string

const (
	ResourceArticle         ResourceType = "article"
	ResourceVideo           ResourceType = "video"
	ResourceExercise        ResourceType = "exercise"
	ResourceQuiz            ResourceType = "quiz"
	ResourceTest            ResourceType = "test"
	ResourceCourseChallenge ResourceType = "course_challenge"
)

// Passive reports whether the resource earns banked XP instead of assessment XP.
func (r ResourceType) Passive() bool {
	return r == ResourceArticle || r == ResourceVideo
}
