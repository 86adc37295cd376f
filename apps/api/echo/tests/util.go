package tests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "qugrow/apps/api/echo"
	"qugrow/core"
	"qugrow/core/question"
	"qugrow/core/user"
	aisvc "qugrow/services/ai"
	emailsvc "qugrow/services/email"
	inmemdb "qugrow/storage/database/inmem"
	testutil "qugrow/tests"
)

type env struct {
	conf    *core.Config
	app     *echoapi.Server
	usrRepo user.Repository
	qstRepo question.Repository
	usrSvc  *user.Service
	qstSvc  *question.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger()

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	qstRepo := inmemdb.NewQuestionRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	qstSvc := question.NewService(qstRepo)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		QuestionSvc: qstSvc,
		AISvc:       aisvc.NewDummyService(),
		Validate:    validate,
		Translator:  translator,
	})

	return &env{
		conf:    conf,
		app:     app,
		usrRepo: usrRepo,
		qstRepo: qstRepo,
		usrSvc:  usrSvc,
		qstSvc:  qstSvc,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) token(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := echoapi.GenerateToken(e.conf, echoapi.GetUserClaims(e.conf, usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func itoa(id int) string { return strconv.Itoa(id) }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}
