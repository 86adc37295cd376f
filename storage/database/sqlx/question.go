package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"qugrow/core/question"
)

const statsView = `SELECT * FROM questions_with_stats`

type questionRepository struct {
	db *sqlx.DB
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *sqlx.DB) *questionRepository {
	return &questionRepository{db: db}
}

func (repo questionRepository) CreateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO questions (user_id, content, reason, category, date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.UserID, q.Content, q.Reason, q.Category, q.Date,
	).Scan(&q.ID)
	if err != nil {
		return question.Question{}, errors.Wrap(err, "creating question")
	}
	return repo.GetQuestionByID(ctx, q.ID)
}

func (repo questionRepository) GetQuestionByID(ctx context.Context, id int) (question.Question, error) {
	var q question.Question
	err := repo.db.GetContext(ctx, &q, statsView+` WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return question.Question{}, question.ErrNotFound
	}
	if err != nil {
		return question.Question{}, errors.Wrap(err, "getting question")
	}
	return q, nil
}

func (repo questionRepository) UpdateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE questions
		 SET content = $2, reason = $3, category = $4, updated_at = (now() AT TIME ZONE 'utc')
		 WHERE id = $1`,
		q.ID, q.Content, q.Reason, q.Category,
	)
	if err != nil {
		return question.Question{}, errors.Wrap(err, "updating question")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return question.Question{}, question.ErrNotFound
	}
	return repo.GetQuestionByID(ctx, q.ID)
}

func (repo questionRepository) selectQuestions(ctx context.Context, query string, args ...interface{}) ([]question.Question, error) {
	qs := make([]question.Question, 0)
	if err := repo.db.SelectContext(ctx, &qs, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return qs, nil
}

func (repo questionRepository) QueryToday(ctx context.Context, className, date string) ([]question.Question, error) {
	return repo.selectQuestions(ctx,
		statsView+` WHERE class_name = $1 AND date = $2 ORDER BY created_at DESC`,
		className, date,
	)
}

func (repo questionRepository) QueryByDate(ctx context.Context, date, className string) ([]question.Question, error) {
	if className == "" {
		return repo.selectQuestions(ctx,
			statsView+` WHERE date = $1 ORDER BY like_count DESC, created_at ASC`,
			date,
		)
	}
	return repo.selectQuestions(ctx,
		statsView+` WHERE date = $1 AND class_name = $2 ORDER BY like_count DESC, created_at ASC`,
		date, className,
	)
}

func (repo questionRepository) QueryTopWeekly(ctx context.Context, className, since string, limit int) ([]question.Question, error) {
	if className == "" {
		return repo.selectQuestions(ctx,
			statsView+` WHERE date >= $1
			 ORDER BY like_count DESC, created_at ASC
			 LIMIT $2`,
			since, limit,
		)
	}
	return repo.selectQuestions(ctx,
		statsView+` WHERE class_name = $1 AND date >= $2
		 ORDER BY like_count DESC, created_at ASC
		 LIMIT $3`,
		className, since, limit,
	)
}

func (repo questionRepository) QueryRecent(ctx context.Context, limit, offset int) ([]question.Question, error) {
	return repo.selectQuestions(ctx,
		statsView+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
}

func (repo questionRepository) QueryByUser(ctx context.Context, userID, limit int) ([]question.Question, error) {
	return repo.selectQuestions(ctx,
		statsView+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
}

func (repo questionRepository) QueryWeekByUser(ctx context.Context, userID int, since string) ([]question.Question, error) {
	return repo.selectQuestions(ctx,
		statsView+` WHERE user_id = $1 AND date >= $2 ORDER BY created_at DESC`,
		userID, since,
	)
}

func (repo questionRepository) ToggleLike(ctx context.Context, questionID, userID int) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM likes WHERE question_id = $1 AND user_id = $2`,
		questionID, userID,
	)
	if err != nil {
		return false, errors.Wrap(err, "removing like")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO likes (question_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (question_id, user_id) DO NOTHING`,
		questionID, userID,
	)
	if err != nil {
		return false, errors.Wrap(err, "adding like")
	}
	return true, nil
}

func (repo questionRepository) QueryComments(ctx context.Context, questionID int) ([]question.Comment, error) {
	comments := make([]question.Comment, 0)
	err := repo.db.SelectContext(ctx, &comments,
		`SELECT c.id, c.question_id, c.user_id, u.full_name AS author_name,
		        u.user_type AS author_type, c.content, c.created_at
		 FROM comments c
		          JOIN users u ON u.id = c.user_id
		 WHERE c.question_id = $1
		 ORDER BY c.created_at ASC`,
		questionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	return comments, nil
}

func (repo questionRepository) CreateComment(ctx context.Context, c question.Comment) (question.Comment, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO comments (question_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.QuestionID, c.UserID, c.Content,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return question.Comment{}, errors.Wrap(err, "creating comment")
	}
	return c, nil
}

func (repo questionRepository) QueryReceivedComments(ctx context.Context, userID, limit int) ([]question.ReceivedComment, error) {
	comments := make([]question.ReceivedComment, 0)
	err := repo.db.SelectContext(ctx, &comments,
		`SELECT c.id, c.question_id, c.user_id, u.full_name AS author_name,
		        u.user_type AS author_type, c.content, c.created_at,
		        q.content AS question_content, u.full_name AS commenter_name
		 FROM comments c
		          JOIN questions q ON q.id = c.question_id
		          JOIN users u ON u.id = c.user_id
		 WHERE q.user_id = $1
		 ORDER BY c.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying received comments")
	}
	return comments, nil
}

func (repo questionRepository) GetClassStats(ctx context.Context, className, today, since string) (question.ClassStats, error) {
	var stats question.ClassStats
	err := repo.db.GetContext(ctx, &stats,
		`SELECT (SELECT COUNT(*) FROM questions q JOIN users u ON u.id = q.user_id
		         WHERE u.class_name = $1 AND q.date = $2)                       AS today_questions,
		        (SELECT COUNT(*) FROM questions q JOIN users u ON u.id = q.user_id
		         WHERE u.class_name = $1 AND q.date >= $3)                      AS week_questions,
		        (SELECT COUNT(DISTINCT q.user_id) FROM questions q JOIN users u ON u.id = q.user_id
		         WHERE u.class_name = $1 AND q.date >= $3)                      AS active_students,
		        (SELECT COUNT(*) FROM users
		         WHERE class_name = $1 AND user_type = 'student')               AS total_students`,
		className, today, since,
	)
	if err != nil {
		return question.ClassStats{}, errors.Wrap(err, "querying class stats")
	}
	return stats, nil
}

func (repo questionRepository) GetStudentStats(ctx context.Context, userID int, since string) (question.StudentStats, error) {
	var counts struct {
		TotalLikes     int `db:"total_likes"`
		TotalQuestions int `db:"total_questions"`
		TotalComments  int `db:"total_comments"`
		WeekQuestions  int `db:"week_questions"`
	}
	err := repo.db.GetContext(ctx, &counts,
		`SELECT (SELECT COUNT(*) FROM likes l JOIN questions q ON q.id = l.question_id
		         WHERE q.user_id = $1)                                          AS total_likes,
		        (SELECT COUNT(*) FROM questions WHERE user_id = $1)             AS total_questions,
		        (SELECT COUNT(*) FROM comments c JOIN questions q ON q.id = c.question_id
		         WHERE q.user_id = $1)                                          AS total_comments,
		        (SELECT COUNT(*) FROM questions WHERE user_id = $1 AND date >= $2) AS week_questions`,
		userID, since,
	)
	if err != nil {
		return question.StudentStats{}, errors.Wrap(err, "querying student stats")
	}

	stats := question.StudentStats{
		TotalLikes:     counts.TotalLikes,
		TotalQuestions: counts.TotalQuestions,
		TotalComments:  counts.TotalComments,
		WeekQuestions:  counts.WeekQuestions,
	}

	var best question.BestQuestion
	err = repo.db.GetContext(ctx, &best,
		`SELECT content, like_count FROM questions_with_stats
		 WHERE user_id = $1 AND like_count > 0
		 ORDER BY like_count DESC, created_at ASC
		 LIMIT 1`,
		userID,
	)
	if err == nil {
		stats.BestQuestion = &best
	} else if err != sql.ErrNoRows {
		return question.StudentStats{}, errors.Wrap(err, "querying best question")
	}
	return stats, nil
}
