package question

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"qugrow/core"
)

// DateFormat is the day-bucket format used for "today" and weekly filtering.
const DateFormat = "2006-01-02"

// Question is a stats-view row: the question itself joined with its author
// and read-time like/comment counts.
type Question struct {
	ID           int         `json:"id" db:"id"`
	UserID       int         `json:"user_id" db:"user_id"`
	AuthorName   string      `json:"author_name" db:"author_name"`
	AuthorType   string      `json:"author_type" db:"author_type"`
	ClassName    string      `json:"class_name" db:"class_name"`
	Content      string      `json:"content" db:"content"`
	Reason       null.String `json:"reason" db:"reason"`
	Category     null.String `json:"category" db:"category"`
	Date         string      `json:"date" db:"date"` // day bucket, DateFormat
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	LikeCount    int         `json:"like_count" db:"like_count"`
	CommentCount int         `json:"comment_count" db:"comment_count"`
}

// NewQuestion contains information needed to post a question.
// Reason and category are optional; content is not.
type NewQuestion struct {
	Content  string `json:"content" validate:"required"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Content = core.CleanString(nq.Content)
	nq.Reason = core.CleanString(nq.Reason)
	nq.Category = core.CleanString(nq.Category)
	return validate.Struct(nq)
}

// UpdateQuestion is a full replacement of the author-editable fields.
type UpdateQuestion struct {
	Content  string `json:"content" validate:"required"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	uq.Content = core.CleanString(uq.Content)
	uq.Reason = core.CleanString(uq.Reason)
	uq.Category = core.CleanString(uq.Category)
	return validate.Struct(uq)
}

// Comment is immutable once created; ordered by creation time ascending
// within its question.
type Comment struct {
	ID         int       `json:"id" db:"id"`
	QuestionID int       `json:"question_id" db:"question_id"`
	UserID     int       `json:"user_id" db:"user_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	AuthorType string    `json:"author_type" db:"author_type"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type NewComment struct {
	Content string `json:"content" validate:"required"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

// ReceivedComment is a comment on one of a student's questions, annotated
// with the question it landed on and who wrote it.
type ReceivedComment struct {
	Comment
	QuestionContent string `json:"question_content" db:"question_content"`
	CommenterName   string `json:"commenter_name" db:"commenter_name"`
}

// ClassStats are the teacher-dashboard aggregates for one class.
type ClassStats struct {
	TodayQuestions int `json:"today_questions" db:"today_questions"`
	WeekQuestions  int `json:"week_questions" db:"week_questions"`
	ActiveStudents int `json:"active_students" db:"active_students"`
	TotalStudents  int `json:"total_students" db:"total_students"`
}

// BestQuestion is a student's most liked question.
type BestQuestion struct {
	Content   string `json:"content" db:"content"`
	LikeCount int    `json:"like_count" db:"like_count"`
}

// StudentStats are the personal aggregates backing the leveling display.
type StudentStats struct {
	TotalLikes     int           `json:"total_likes"`
	TotalQuestions int           `json:"total_questions"`
	TotalComments  int           `json:"total_comments"`
	WeekQuestions  int           `json:"week_questions"`
	BestQuestion   *BestQuestion `json:"best_question"`
}
