package inmemdb

import (
	"context"
	"sort"
	"time"

	"qugrow/core/question"
)

type questionRepository struct {
	db *DB
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *DB) *questionRepository {
	return &questionRepository{db: db}
}

// hydrate assumes db.mu is held. It fills the stats-view columns a real
// database computes on read.
func (repo *questionRepository) hydrate(q question.Question) question.Question {
	if usr, ok := repo.db.users[q.UserID]; ok {
		q.AuthorName = usr.FullName
		q.AuthorType = usr.Type
		q.ClassName = usr.ClassName
	}
	q.LikeCount, q.CommentCount = 0, 0
	for pair := range repo.db.likes {
		if pair.QuestionID == q.ID {
			q.LikeCount++
		}
	}
	for _, c := range repo.db.comments {
		if c.QuestionID == q.ID {
			q.CommentCount++
		}
	}
	return q
}

func (repo *questionRepository) query(keep func(question.Question) bool) []question.Question {
	qs := make([]question.Question, 0)
	for _, q := range repo.db.questions {
		hydrated := repo.hydrate(q)
		if keep(hydrated) {
			qs = append(qs, hydrated)
		}
	}
	return qs
}

func sortNewestFirst(qs []question.Question) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].CreatedAt.After(qs[j].CreatedAt) })
}

func sortByLikes(qs []question.Question) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].LikeCount != qs[j].LikeCount {
			return qs[i].LikeCount > qs[j].LikeCount
		}
		return qs[i].CreatedAt.Before(qs[j].CreatedAt)
	})
}

func (repo *questionRepository) CreateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	q.ID = repo.db.nextPK()
	repo.db.questions[q.ID] = q
	return repo.hydrate(q), nil
}

func (repo *questionRepository) GetQuestionByID(ctx context.Context, id int) (question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return repo.hydrate(q), nil
	}
	return question.Question{}, question.ErrNotFound
}

func (repo *questionRepository) UpdateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.questions[q.ID]
	if !ok {
		return question.Question{}, question.ErrNotFound
	}
	stored.Content = q.Content
	stored.Reason = q.Reason
	stored.Category = q.Category
	stored.UpdatedAt = q.UpdatedAt
	repo.db.questions[q.ID] = stored
	return repo.hydrate(stored), nil
}

func (repo *questionRepository) QueryToday(ctx context.Context, className, date string) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(q question.Question) bool {
		return q.ClassName == className && q.Date == date
	})
	sortNewestFirst(qs)
	return qs, nil
}

func (repo *questionRepository) QueryByDate(ctx context.Context, date, className string) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(q question.Question) bool {
		return q.Date == date && (className == "" || q.ClassName == className)
	})
	sortByLikes(qs)
	return qs, nil
}

func (repo *questionRepository) QueryTopWeekly(ctx context.Context, className, since string, limit int) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(q question.Question) bool {
		return (className == "" || q.ClassName == className) && q.Date >= since
	})
	sortByLikes(qs)
	if len(qs) > limit {
		qs = qs[:limit]
	}
	return qs, nil
}

func (repo *questionRepository) QueryRecent(ctx context.Context, limit, offset int) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(question.Question) bool { return true })
	sortNewestFirst(qs)
	if offset >= len(qs) {
		return []question.Question{}, nil
	}
	qs = qs[offset:]
	if len(qs) > limit {
		qs = qs[:limit]
	}
	return qs, nil
}

func (repo *questionRepository) QueryByUser(ctx context.Context, userID, limit int) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(q question.Question) bool { return q.UserID == userID })
	sortNewestFirst(qs)
	if len(qs) > limit {
		qs = qs[:limit]
	}
	return qs, nil
}

func (repo *questionRepository) QueryWeekByUser(ctx context.Context, userID int, since string) ([]question.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := repo.query(func(q question.Question) bool {
		return q.UserID == userID && q.Date >= since
	})
	sortNewestFirst(qs)
	return qs, nil
}

func (repo *questionRepository) ToggleLike(ctx context.Context, questionID, userID int) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pair := likePair{QuestionID: questionID, UserID: userID}
	if _, ok := repo.db.likes[pair]; ok {
		delete(repo.db.likes, pair)
		return false, nil
	}
	repo.db.likes[pair] = struct{}{}
	return true, nil
}

func (repo *questionRepository) QueryComments(ctx context.Context, questionID int) ([]question.Comment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comments := make([]question.Comment, 0)
	for _, c := range repo.db.comments {
		if c.QuestionID != questionID {
			continue
		}
		if usr, ok := repo.db.users[c.UserID]; ok {
			c.AuthorName = usr.FullName
			c.AuthorType = usr.Type
		}
		comments = append(comments, c)
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *questionRepository) CreateComment(ctx context.Context, c question.Comment) (question.Comment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.nextPK()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	repo.db.comments[c.ID] = c
	return c, nil
}

func (repo *questionRepository) QueryReceivedComments(ctx context.Context, userID, limit int) ([]question.ReceivedComment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	received := make([]question.ReceivedComment, 0)
	for _, c := range repo.db.comments {
		q, ok := repo.db.questions[c.QuestionID]
		if !ok || q.UserID != userID {
			continue
		}
		rc := question.ReceivedComment{Comment: c, QuestionContent: q.Content}
		if usr, ok := repo.db.users[c.UserID]; ok {
			rc.AuthorName = usr.FullName
			rc.AuthorType = usr.Type
			rc.CommenterName = usr.FullName
		}
		received = append(received, rc)
	}
	sort.Slice(received, func(i, j int) bool { return received[i].CreatedAt.After(received[j].CreatedAt) })
	if len(received) > limit {
		received = received[:limit]
	}
	return received, nil
}

func (repo *questionRepository) GetClassStats(ctx context.Context, className, today, since string) (question.ClassStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats question.ClassStats
	activeIDs := make(map[int]struct{})
	for _, q := range repo.db.questions {
		usr, ok := repo.db.users[q.UserID]
		if !ok || usr.ClassName != className {
			continue
		}
		if q.Date == today {
			stats.TodayQuestions++
		}
		if q.Date >= since {
			stats.WeekQuestions++
			activeIDs[q.UserID] = struct{}{}
		}
	}
	stats.ActiveStudents = len(activeIDs)
	for _, usr := range repo.db.users {
		if usr.ClassName == className && usr.IsStudent() {
			stats.TotalStudents++
		}
	}
	return stats, nil
}

func (repo *questionRepository) GetStudentStats(ctx context.Context, userID int, since string) (question.StudentStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats question.StudentStats
	var best question.Question
	for _, q := range repo.db.questions {
		if q.UserID != userID {
			continue
		}
		hydrated := repo.hydrate(q)
		stats.TotalQuestions++
		stats.TotalLikes += hydrated.LikeCount
		stats.TotalComments += hydrated.CommentCount
		if q.Date >= since {
			stats.WeekQuestions++
		}
		if hydrated.LikeCount > best.LikeCount ||
			(hydrated.LikeCount == best.LikeCount && best.ID != 0 && hydrated.CreatedAt.Before(best.CreatedAt)) {
			best = hydrated
		}
	}
	if best.ID != 0 && best.LikeCount > 0 {
		stats.BestQuestion = &question.BestQuestion{Content: best.Content, LikeCount: best.LikeCount}
	}
	return stats, nil
}
