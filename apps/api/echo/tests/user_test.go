package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qugrow/core/user"
	emailsvc "qugrow/services/email"
	testutil "qugrow/tests"
)

func TestAuthLogin(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")

	tests := []httpTest{
		{
			name: "ok", method: http.MethodPost, path: "/api/auth/login",
			body:     map[string]string{"username": "mrkim", "password": "t3stpwd!"},
			wantCode: http.StatusOK,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login",
			body:     map[string]string{"username": "mrkim", "password": "nope"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/auth/login",
			body:     map[string]string{"username": "ghost", "password": "t3stpwd!"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/api/auth/login",
			body:     map[string]string{"username": "mrkim"},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if rec.Code == http.StatusOK {
				var body struct {
					Success bool      `json:"success"`
					Token   string    `json:"token"`
					User    user.User `json:"user"`
				}
				decodeBody(t, rec, &body)
				assert.True(t, body.Success)
				assert.NotEmpty(t, body.Token)
				assert.Equal(t, usr.ID, body.User.ID)
				assert.Equal(t, "3-A", body.User.ClassName)
			}
		})
	}
}

func TestAuthRegisterTeacher(t *testing.T) {
	e := setup(t)
	testutil.CreateTeacher(t, e.usrRepo, "taken", "1-B")

	newTeacher := func(uname, email string) map[string]string {
		return map[string]string{
			"username": uname, "password": "s3cret23", "full_name": "Kim Minsu",
			"email": email, "class_name": "3-A",
		}
	}

	tests := []httpTest{
		{
			name: "ok", method: http.MethodPost, path: "/api/auth/register-teacher",
			body: newTeacher("mrkim", "kim@school.kr"), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate username", method: http.MethodPost, path: "/api/auth/register-teacher",
			body: newTeacher("taken", "other@school.kr"), wantCode: http.StatusConflict,
		},
		{
			name: "bad email", method: http.MethodPost, path: "/api/auth/register-teacher",
			body: newTeacher("mrpark", "not-an-email"), wantCode: http.StatusBadRequest,
		},
		{
			name: "all-numeric password", method: http.MethodPost, path: "/api/auth/register-teacher",
			body: map[string]string{
				"username": "mrlee", "password": "12345678", "full_name": "Lee",
				"email": "lee@school.kr", "class_name": "2-C",
			},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	usr, err := e.usrSvc.GetByUsername(context.Background(), "mrkim")
	require.NoError(t, err)
	assert.True(t, usr.IsTeacher())
	assert.NoError(t, usr.CheckPassword("s3cret23"))
}

func TestErrorBodyShape(t *testing.T) {
	e := setup(t)
	testutil.CreateTeacher(t, e.usrRepo, "taken", "1-B")

	// validator failures carry the field map under the error key
	rec := e.do(t, http.MethodPost, "/api/auth/register-teacher", "", map[string]string{
		"username": "mrkim", "password": "s3cret23", "full_name": "Kim Minsu",
		"email": "not-an-email", "class_name": "3-A",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var fielded struct {
		Error map[string]string `json:"error"`
	}
	decodeBody(t, rec, &fielded)
	assert.NotEmpty(t, fielded.Error["email"])

	// conflicts too
	rec = e.do(t, http.MethodPost, "/api/auth/register-teacher", "", map[string]string{
		"username": "taken", "password": "s3cret23", "full_name": "Kim Minsu",
		"email": "kim@school.kr", "class_name": "3-A",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	decodeBody(t, rec, &fielded)
	assert.NotEmpty(t, fielded.Error["username"])

	// plain failures keep the string form
	rec = e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "ghost", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var plain struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &plain)
	assert.Equal(t, "invalid username or password", plain.Error)
}

func TestTeacherCreateStudent(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	student := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	token := e.token(t, teacher)

	body := map[string]string{
		"student_name": "Park Jisoo", "student_username": "jisoo", "student_password": "qwerty1",
	}

	rec := e.do(t, http.MethodPost, "/api/teacher/create-student", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/teacher/create-student", e.token(t, student), body)
	assert.Equal(t, http.StatusForbidden, rec.Code, "students cannot create accounts")

	rec = e.do(t, http.MethodPost, "/api/teacher/create-student", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	usr, err := e.usrSvc.GetByUsername(context.Background(), "jisoo")
	require.NoError(t, err)
	assert.True(t, usr.IsStudent())
	assert.Equal(t, "3-A", usr.ClassName, "student lands in the teacher's class")

	// username taken
	rec = e.do(t, http.MethodPost, "/api/teacher/create-student", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTeacherBulkCreateStudents(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	testutil.CreateStudent(t, e.usrRepo, "taken", "3-A")

	body := map[string]interface{}{
		"students": []map[string]string{
			{"name": "Park Jisoo", "username": "jisoo", "password": "qwerty1"},
			{"name": "Choi Minho", "username": "minho"}, // password generated
			{"name": "No Username"},
			{"name": "Dup", "username": "taken", "password": "qwerty1"},
		},
	}

	rec := e.do(t, http.MethodPost, "/api/teacher/bulk-create-students", e.token(t, teacher), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Success      bool                 `json:"success"`
		CreatedCount int                  `json:"created_count"`
		TotalCount   int                  `json:"total_count"`
		Results      []user.CreatedRecord `json:"results"`
		Errors       []string             `json:"errors"`
	}
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.CreatedCount)
	assert.Equal(t, 4, res.TotalCount)
	assert.Len(t, res.Errors, 2)

	var generated string
	for _, r := range res.Results {
		if r.Username == "minho" {
			generated = r.Password
		}
	}
	require.NotEmpty(t, generated, "generated password is echoed back")

	usr, err := e.usrSvc.GetByUsername(context.Background(), "minho")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(generated))
}

func TestTeacherStudents(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	jimin := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	testutil.CreateStudent(t, e.usrRepo, "other", "1-B")
	testutil.CreateQuestion(t, e.qstRepo, jimin, "why is the sky blue?")

	rec := e.do(t, http.MethodGet, "/api/teacher/students/1-B", e.token(t, teacher), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the caller's own roster")

	rec = e.do(t, http.MethodGet, "/api/teacher/students/3-A", e.token(t, teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Students []user.StudentInfo `json:"students"`
	}
	decodeBody(t, rec, &res)
	require.Len(t, res.Students, 1)
	assert.Equal(t, "jimin", res.Students[0].Username)
	assert.Equal(t, 1, res.Students[0].QuestionCount)
	assert.Equal(t, 1, res.Students[0].WeekQuestionCount)
}

func TestTeacherDeleteStudent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	student := testutil.CreateStudent(t, e.usrRepo, "jimin", "3-A")
	outsider := testutil.CreateStudent(t, e.usrRepo, "other", "1-B")

	q := testutil.CreateQuestion(t, e.qstRepo, student, "why is the sky blue?")
	_, err := e.qstSvc.ToggleLike(ctx, q.ID, teacher.ID)
	require.NoError(t, err)

	rec := e.do(t, http.MethodDelete, "/api/teacher/delete-student/999", e.token(t, teacher), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/teacher/delete-student/"+itoa(outsider.ID), e.token(t, teacher), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "cannot delete another class's student")

	rec = e.do(t, http.MethodDelete, "/api/teacher/delete-student/"+itoa(student.ID), e.token(t, teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err = e.usrSvc.GetByID(ctx, student.ID)
	assert.Equal(t, user.ErrNotFound, err)
	qs, err := e.qstSvc.ByUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, qs, "the student's questions are gone too")
}

func TestAuthPasswordReset(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateTeacher(t, e.usrRepo, "mrkim", "3-A")
	usr.Email.SetValid("kim@school.kr")
	ctx := context.Background()
	_, err := e.usrRepo.UpdateUser(ctx, usr)
	require.NoError(t, err)

	before := len(emailsvc.SentMessages)
	rec := e.do(t, http.MethodPost, "/api/auth/forgot-password",
		"", map[string]string{"email": "kim@school.kr"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Greater(t, len(emailsvc.SentMessages), before, "reset email goes out")

	// unknown emails get the same answer
	rec = e.do(t, http.MethodPost, "/api/auth/forgot-password",
		"", map[string]string{"email": "ghost@school.kr"})
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := user.MakeToken(e.conf, usr)
	require.NoError(t, err)

	rec = e.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token": token, "uid": user.EncodeUID(usr),
		"password": "newpwd99x", "password_confirm": "newpwd99x",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	usr, err = e.usrSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("newpwd99x"))

	// a used token is dead
	rec = e.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token": token, "uid": user.EncodeUID(usr),
		"password": "another99x", "password_confirm": "another99x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
