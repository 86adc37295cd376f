// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"qugrow/core"
	"qugrow/core/question"
	"qugrow/core/user"
)

// NewConfig returns a config suitable for tests; nothing external is needed.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:                   "qugrow",
		Env:                       "test",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 []byte("secret-test-key"),
		WorkDir:                   core.Getwd(),
		FrontendBaseURL:           "http://localhost:8000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
		Feed: core.FeedConfig{
			PollInterval: 10 * time.Millisecond,
			StartDelay:   time.Millisecond,
		},
	}
}

// StdLogger adapts the standard logger to core.Logger for tests.
type StdLogger struct {
	std *log.Logger
}

var _ core.Logger = (*StdLogger)(nil)

func NewLogger() *StdLogger {
	return &StdLogger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags)}
}

func (l StdLogger) log(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.log(msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { l.log(msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { l.log(msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { l.log(msg, args) }
func (l StdLogger) Fatal(msg string, args ...interface{}) { l.log(msg, args); l.std.Fatal(msg) }

// CreateTeacher saves a teacher account straight through the repository.
func CreateTeacher(t *testing.T, repo user.Repository, uname, class string) user.User {
	t.Helper()
	return createUser(t, repo, uname, user.TypeTeacher, class)
}

// CreateStudent saves a student account straight through the repository.
func CreateStudent(t *testing.T, repo user.Repository, uname, class string) user.User {
	t.Helper()
	return createUser(t, repo, uname, user.TypeStudent, class)
}

func createUser(t *testing.T, repo user.Repository, uname, typ, class string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Username:  uname,
		FullName:  uname + " fullname",
		Type:      typ,
		ClassName: class,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword("t3stpwd!"); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateQuestion saves a question for usr in today's bucket unless a date is
// given.
func CreateQuestion(t *testing.T, repo question.Repository, usr user.User, content string, date ...string) question.Question {
	t.Helper()

	now := question.NowFunc().UTC()
	day := now.Format(question.DateFormat)
	if len(date) > 0 {
		day = date[0]
	}
	q, err := repo.CreateQuestion(context.Background(), question.Question{
		UserID:    usr.ID,
		Content:   content,
		Date:      day,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}
