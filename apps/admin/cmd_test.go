package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qugrow/core"
	"qugrow/core/user"
	emailsvc "qugrow/services/email"
	inmemdb "qugrow/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	conf := &core.Config{AppName: "qugrow", Debug: true, TestMode: true}
	db := inmemdb.NewDB()
	svc := user.NewService(inmemdb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)

	origReadPassword, origMigrate := readPasswordFunc, migrateFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cret23"), nil }
	t.Cleanup(func() {
		readPasswordFunc = origReadPassword
		migrateFunc = origMigrate
	})

	return &commandLine{
		conf:   conf,
		db:     &sqlx.DB{},
		usrSvc: svc,
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []struct {
		name    string
		args    []string // without program name
		wantErr error
	}{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "createteacher: no flags", args: []string{"createteacher"}, wantErr: errHelp},
		{name: "resetpassword: no flags", args: []string{"resetpassword"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"admin"}, tt.args...)
			assert.Equal(t, tt.wantErr, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var called bool
	migrateFunc = func(db *sql.DB, conf *core.Config) error { called = true; return nil }

	require.NoError(t, cli.run([]string{"admin", "migrate"}))
	assert.True(t, called)
}

func Test_commandLine_createTeacher(t *testing.T) {
	cli := setup(t)

	err := cli.run([]string{
		"admin", "createteacher",
		"-username", "mrkim", "-name", "Kim Minsu", "-email", "kim@school.kr", "-class", "3-A",
	})
	require.NoError(t, err)

	usr, err := cli.usrSvc.GetByUsername(context.Background(), "mrkim")
	require.NoError(t, err)
	assert.True(t, usr.IsTeacher())
	assert.Equal(t, "3-A", usr.ClassName)
	assert.NoError(t, usr.CheckPassword("s3cret23"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	_, err := cli.usrSvc.RegisterTeacher(context.Background(), user.NewTeacher{
		Username: "mrkim", Password: "oldpwd99", FullName: "Kim Minsu",
		Email: "kim@school.kr", ClassName: "3-A",
	})
	require.NoError(t, err)

	assert.Error(t, cli.run([]string{"admin", "resetpassword", "-username", "nobody"}))

	require.NoError(t, cli.run([]string{"admin", "resetpassword", "-username", "mrkim"}))
	usr, err := cli.usrSvc.GetByUsername(context.Background(), "mrkim")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("s3cret23"))
	assert.Error(t, usr.CheckPassword("oldpwd99"))
}
