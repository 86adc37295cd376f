package question

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"qugrow/core"
)

// Like toggle outcomes.
const (
	ActionLiked   = "liked"
	ActionUnliked = "unliked"
)

// TopWeeklyLimit is the size of the weekly ranking.
const TopWeeklyLimit = 5

var (
	// errors
	ErrNotFound = errors.New("question not found")
	ErrNotOwner = errors.New("only the author may edit this question")
)

type (
	Repository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestionByID(ctx context.Context, id int) (Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		// QueryToday returns a class's today-bucket questions, newest first.
		QueryToday(ctx context.Context, className, date string) ([]Question, error)
		// QueryByDate orders by like count desc, then creation time asc.
		// className "" means all classes.
		QueryByDate(ctx context.Context, date, className string) ([]Question, error)
		// QueryTopWeekly returns the trailing-7-days ranking: like count
		// desc, ties broken by earliest creation time. className "" means
		// all classes.
		QueryTopWeekly(ctx context.Context, className string, since string, limit int) ([]Question, error)
		QueryRecent(ctx context.Context, limit, offset int) ([]Question, error)
		QueryByUser(ctx context.Context, userID, limit int) ([]Question, error)
		QueryWeekByUser(ctx context.Context, userID int, since string) ([]Question, error)

		// ToggleLike flips the (question, user) like membership and reports
		// whether the pair exists afterwards.
		ToggleLike(ctx context.Context, questionID, userID int) (liked bool, err error)

		QueryComments(ctx context.Context, questionID int) ([]Comment, error)
		CreateComment(ctx context.Context, c Comment) (Comment, error)
		QueryReceivedComments(ctx context.Context, userID, limit int) ([]ReceivedComment, error)

		GetClassStats(ctx context.Context, className, today, since string) (ClassStats, error)
		GetStudentStats(ctx context.Context, userID int, since string) (StudentStats, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NowFunc returns the server time used for day buckets; mockable in tests.
var NowFunc = time.Now

func today() string { return NowFunc().UTC().Format(DateFormat) }

func weekAgo() string { return NowFunc().UTC().AddDate(0, 0, -7).Format(DateFormat) }

// Create posts a question into today's bucket on behalf of authorID.
func (svc *Service) Create(ctx context.Context, authorID int, nq NewQuestion) (Question, error) {
	now := NowFunc().UTC()
	q := Question{
		UserID:    authorID,
		Content:   nq.Content,
		Reason:    null.NewString(nq.Reason, nq.Reason != ""),
		Category:  null.NewString(nq.Category, nq.Category != ""),
		Date:      today(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateQuestion(ctx, q)
}

// Update replaces the editable fields of a question. Only the author may
// edit; everyone else gets ErrNotOwner.
func (svc *Service) Update(ctx context.Context, callerID, id int, uq UpdateQuestion) (Question, error) {
	q, err := svc.repo.GetQuestionByID(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if q.UserID != callerID {
		return Question{}, ErrNotOwner
	}

	q.Content = uq.Content
	q.Reason = null.NewString(uq.Reason, uq.Reason != "")
	q.Category = null.NewString(uq.Category, uq.Category != "")
	q.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateQuestion(ctx, q)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Question, error) {
	return svc.repo.GetQuestionByID(ctx, id)
}

func (svc *Service) Today(ctx context.Context, className string) ([]Question, error) {
	return svc.repo.QueryToday(ctx, className, today())
}

func (svc *Service) ByDate(ctx context.Context, date, className string) ([]Question, error) {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return nil, core.NewValidationError(errors.New("invalid date, expected YYYY-MM-DD"))
	}
	return svc.repo.QueryByDate(ctx, date, className)
}

func (svc *Service) TopWeekly(ctx context.Context, className string) ([]Question, error) {
	return svc.repo.QueryTopWeekly(ctx, className, weekAgo(), TopWeeklyLimit)
}

func (svc *Service) Recent(ctx context.Context, page, limit int) ([]Question, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return svc.repo.QueryRecent(ctx, limit, (page-1)*limit)
}

func (svc *Service) ByUser(ctx context.Context, userID int) ([]Question, error) {
	return svc.repo.QueryByUser(ctx, userID, 50)
}

func (svc *Service) WeekByUser(ctx context.Context, userID int) ([]Question, error) {
	return svc.repo.QueryWeekByUser(ctx, userID, weekAgo())
}

// ToggleLike flips userID's like on a question and reports the action taken.
func (svc *Service) ToggleLike(ctx context.Context, id, userID int) (string, error) {
	if _, err := svc.repo.GetQuestionByID(ctx, id); err != nil {
		return "", err
	}
	liked, err := svc.repo.ToggleLike(ctx, id, userID)
	if err != nil {
		return "", errors.Wrap(err, "toggling like")
	}
	if liked {
		return ActionLiked, nil
	}
	return ActionUnliked, nil
}

func (svc *Service) Comments(ctx context.Context, questionID int) ([]Comment, error) {
	if _, err := svc.repo.GetQuestionByID(ctx, questionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, questionID)
}

func (svc *Service) AddComment(ctx context.Context, questionID, authorID int, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetQuestionByID(ctx, questionID); err != nil {
		return Comment{}, err
	}
	c := Comment{
		QuestionID: questionID,
		UserID:     authorID,
		Content:    nc.Content,
		CreatedAt:  NowFunc().UTC(),
	}
	return svc.repo.CreateComment(ctx, c)
}

func (svc *Service) ReceivedComments(ctx context.Context, userID int) ([]ReceivedComment, error) {
	return svc.repo.QueryReceivedComments(ctx, userID, 50)
}

func (svc *Service) ClassStats(ctx context.Context, className string) (ClassStats, error) {
	return svc.repo.GetClassStats(ctx, className, today(), weekAgo())
}

func (svc *Service) StudentStats(ctx context.Context, userID int) (StudentStats, error) {
	return svc.repo.GetStudentStats(ctx, userID, weekAgo())
}
