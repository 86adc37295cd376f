package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qugrow/core/question"
	testutil "qugrow/tests"
)

func TestQuestionCreate(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	token := e.token(t, student)

	body := map[string]string{"content": "why is the sky blue?", "reason": "saw it on the way to school"}

	rec := e.do(t, http.MethodPost, "/api/questions", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/questions", token, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "blank content is rejected")

	rec = e.do(t, http.MethodPost, "/api/questions", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res struct {
		Success  bool              `json:"success"`
		Question question.Question `json:"question"`
	}
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.Equal(t, student.ID, res.Question.UserID)
	assert.Equal(t, "why is the sky blue?", res.Question.Content)
	assert.Equal(t, question.NowFunc().UTC().Format(question.DateFormat), res.Question.Date)
}

func TestQuestionTodayFeed(t *testing.T) {
	e := setup(t)
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	other := testutil.CreateStudent(t, e.usrRepo, "other", "1-B")
	token := e.token(t, jimin)

	testutil.CreateQuestion(t, e.qstRepo, jimin, "first")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "yesterday", "2020-01-01")
	testutil.CreateQuestion(t, e.qstRepo, other, "other class")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "second")

	rec := e.do(t, http.MethodGet, "/api/questions/today/1-B", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "token class wins over the URL")

	rec = e.do(t, http.MethodGet, "/api/questions/today/3-A", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Questions []question.Question `json:"questions"`
	}
	decodeBody(t, rec, &res)
	require.Len(t, res.Questions, 2)
	assert.Equal(t, "second", res.Questions[0].Content, "newest first")
	assert.Equal(t, "first", res.Questions[1].Content)
	assert.Equal(t, jimin.FullName, res.Questions[0].AuthorName)
}

func TestQuestionUpdate(t *testing.T) {
	e := setup(t)
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	other := testutil.CreateStudent(t, e.usrRepo, "other", "3-A")
	q := testutil.CreateQuestion(t, e.qstRepo, jimin, "first draft")

	body := map[string]string{"content": "second draft"}

	rec := e.do(t, http.MethodPut, "/api/questions/999", e.token(t, jimin), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/questions/"+itoa(q.ID), e.token(t, other), body)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the author edits")

	rec = e.do(t, http.MethodPut, "/api/questions/"+itoa(q.ID), e.token(t, jimin), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Question question.Question `json:"question"`
	}
	decodeBody(t, rec, &res)
	assert.Equal(t, "second draft", res.Question.Content)
}

func TestQuestionLikeToggle(t *testing.T) {
	e := setup(t)
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	other := testutil.CreateStudent(t, e.usrRepo, "other", "3-A")
	q := testutil.CreateQuestion(t, e.qstRepo, jimin, "why is the sky blue?")
	token := e.token(t, other)

	var res struct {
		Success bool   `json:"success"`
		Action  string `json:"action"`
	}

	rec := e.do(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/like", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &res)
	assert.Equal(t, "liked", res.Action)

	got, err := e.qstSvc.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)

	// second toggle takes the like back
	rec = e.do(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/like", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &res)
	assert.Equal(t, "unliked", res.Action)

	got, err = e.qstSvc.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikeCount)

	rec = e.do(t, http.MethodPost, "/api/questions/999/like", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuestionComments(t *testing.T) {
	e := setup(t)
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	q := testutil.CreateQuestion(t, e.qstRepo, jimin, "why is the sky blue?")

	rec := e.do(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/comments",
		e.token(t, teacher), map[string]string{"content": "great question!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/comments",
		e.token(t, jimin), map[string]string{"content": "thanks!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/comments",
		e.token(t, jimin), map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/questions/"+itoa(q.ID)+"/comments", e.token(t, jimin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Comments []question.Comment `json:"comments"`
	}
	decodeBody(t, rec, &res)
	require.Len(t, res.Comments, 2)
	assert.Equal(t, "great question!", res.Comments[0].Content, "oldest first")
	assert.Equal(t, teacher.FullName, res.Comments[0].AuthorName)
	assert.Equal(t, "thanks!", res.Comments[1].Content)

	got, err := e.qstSvc.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)
}

func TestQuestionTopWeekly(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	minho := testutil.CreateStudent(t, e.usrRepo, "minho", "3-A")
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")

	// fix creation times so the tie-break is deterministic
	base := time.Now().UTC()
	step := 0
	origNow := question.NowFunc
	question.NowFunc = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	t.Cleanup(func() { question.NowFunc = origNow })

	early := testutil.CreateQuestion(t, e.qstRepo, jimin, "early, one like")
	late := testutil.CreateQuestion(t, e.qstRepo, minho, "late, one like")
	popular := testutil.CreateQuestion(t, e.qstRepo, jimin, "two likes")
	testutil.CreateQuestion(t, e.qstRepo, minho, "no likes")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "last week", base.AddDate(0, 0, -10).Format(question.DateFormat))

	for _, like := range []struct{ qid, uid int }{
		{early.ID, minho.ID}, {late.ID, jimin.ID},
		{popular.ID, minho.ID}, {popular.ID, teacher.ID},
	} {
		_, err := e.qstSvc.ToggleLike(ctx, like.qid, like.uid)
		require.NoError(t, err)
	}

	rec := e.do(t, http.MethodGet, "/api/questions/top-weekly", e.token(t, jimin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Questions []question.Question `json:"questions"`
	}
	decodeBody(t, rec, &res)
	require.Len(t, res.Questions, 4, "older-than-a-week questions are out")
	assert.Equal(t, "two likes", res.Questions[0].Content)
	assert.Equal(t, "early, one like", res.Questions[1].Content, "ties go to the earlier post")
	assert.Equal(t, "late, one like", res.Questions[2].Content)
	assert.Equal(t, "no likes", res.Questions[3].Content)

	// an empty class name ranks across all classes
	outsider := testutil.CreateStudent(t, e.usrRepo, "other", "1-B")
	testutil.CreateQuestion(t, e.qstRepo, outsider, "from another class")
	all, err := e.qstSvc.TopWeekly(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "from another class", all[4].Content)
}

func TestQuestionClassStats(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	minho := testutil.CreateStudent(t, e.usrRepo, "minho", "3-A")
	testutil.CreateStudent(t, e.usrRepo, "idle", "3-A")

	today := question.NowFunc().UTC().Format(question.DateFormat)
	midweek := question.NowFunc().UTC().AddDate(0, 0, -3).Format(question.DateFormat)
	testutil.CreateQuestion(t, e.qstRepo, jimin, "today one", today)
	testutil.CreateQuestion(t, e.qstRepo, jimin, "today two", today)
	testutil.CreateQuestion(t, e.qstRepo, minho, "midweek", midweek)
	testutil.CreateQuestion(t, e.qstRepo, minho, "stale", "2020-01-01")

	rec := e.do(t, http.MethodGet, "/api/teacher/stats/3-A", e.token(t, jimin), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "students get no dashboard")

	rec = e.do(t, http.MethodGet, "/api/teacher/stats/1-B", e.token(t, teacher), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/teacher/stats/3-A", e.token(t, teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Stats question.ClassStats `json:"stats"`
	}
	decodeBody(t, rec, &res)
	assert.Equal(t, 3, res.Stats.TotalStudents)
	assert.Equal(t, 2, res.Stats.TodayQuestions)
	assert.Equal(t, 3, res.Stats.WeekQuestions)
	assert.Equal(t, 2, res.Stats.ActiveStudents, "distinct students posting this week")

	// verify through the service too, against the repository directly
	stats, err := e.qstSvc.ClassStats(ctx, "3-A")
	require.NoError(t, err)
	assert.Equal(t, res.Stats, stats)
}

func TestQuestionStudentStats(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	minho := testutil.CreateStudent(t, e.usrRepo, "minho", "3-A")

	q1 := testutil.CreateQuestion(t, e.qstRepo, jimin, "best one")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "old", "2020-01-01")
	for _, uid := range []int{minho.ID, teacher.ID} {
		_, err := e.qstSvc.ToggleLike(ctx, q1.ID, uid)
		require.NoError(t, err)
	}
	_, err := e.qstSvc.AddComment(ctx, q1.ID, teacher.ID, question.NewComment{Content: "nice"})
	require.NoError(t, err)

	path := "/api/student/stats/" + itoa(jimin.ID)

	rec := e.do(t, http.MethodGet, path, e.token(t, minho), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "classmates cannot peek")

	for _, viewer := range []string{"self", "teacher"} {
		token := e.token(t, jimin)
		if viewer == "teacher" {
			token = e.token(t, teacher)
		}
		rec = e.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	var res struct {
		Stats question.StudentStats `json:"stats"`
	}
	decodeBody(t, rec, &res)
	assert.Equal(t, 2, res.Stats.TotalQuestions)
	assert.Equal(t, 2, res.Stats.TotalLikes)
	assert.Equal(t, 1, res.Stats.TotalComments)
	assert.Equal(t, 1, res.Stats.WeekQuestions)
	require.NotNil(t, res.Stats.BestQuestion)
	assert.Equal(t, "best one", res.Stats.BestQuestion.Content)
	assert.Equal(t, 2, res.Stats.BestQuestion.LikeCount)
}

func TestQuestionStudentDetails(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	minho := testutil.CreateStudent(t, e.usrRepo, "minho", "3-A")

	q := testutil.CreateQuestion(t, e.qstRepo, jimin, "recent")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "ancient", "2020-01-01")
	_, err := e.qstSvc.AddComment(ctx, q.ID, teacher.ID, question.NewComment{Content: "good start"})
	require.NoError(t, err)

	id := itoa(jimin.ID)
	for _, path := range []string{
		"/api/student/details/questions/" + id,
		"/api/student/details/week-questions/" + id,
		"/api/student/details/comments/" + id,
	} {
		rec := e.do(t, http.MethodGet, path, e.token(t, minho), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	token := e.token(t, teacher)

	var all struct {
		Questions []question.Question `json:"questions"`
	}
	rec := e.do(t, http.MethodGet, "/api/student/details/questions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &all)
	assert.Len(t, all.Questions, 2)

	var week struct {
		Questions []question.Question `json:"questions"`
	}
	rec = e.do(t, http.MethodGet, "/api/student/details/week-questions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &week)
	require.Len(t, week.Questions, 1)
	assert.Equal(t, "recent", week.Questions[0].Content)

	var received struct {
		Comments []question.ReceivedComment `json:"comments"`
	}
	rec = e.do(t, http.MethodGet, "/api/student/details/comments/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &received)
	require.Len(t, received.Comments, 1)
	assert.Equal(t, "good start", received.Comments[0].Content)
	assert.Equal(t, "recent", received.Comments[0].QuestionContent)
	assert.Equal(t, teacher.FullName, received.Comments[0].CommenterName)
}

func TestAIAnalyzeQuestion(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	token := e.token(t, student)

	rec := e.do(t, http.MethodPost, "/api/ai/analyze-question", "",
		map[string]string{"question": "why is the sky blue?"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/ai/analyze-question", token, map[string]string{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/ai/analyze-question", token,
		map[string]string{"question": "why is the sky blue?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Success  bool   `json:"success"`
		Analysis string `json:"analysis"`
	}
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Analysis)
}

func TestAIChat(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	token := e.token(t, student)

	rec := e.do(t, http.MethodPost, "/api/ai/chat", token, map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/ai/chat", token,
		map[string]string{"message": "how do I ask better questions?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
	}
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Response)
}
