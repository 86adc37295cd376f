package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"qugrow/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrNotStudent     = errors.New("user is not a student")
	ErrWrongClass     = errors.New("student does not belong to this class")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryStudents returns the roster of a class ordered by full name,
		// with all-time and trailing-7-day question counts per student.
		QueryStudents(ctx context.Context, className string) ([]StudentInfo, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteStudent removes the student and everything hanging off them:
		// comments on their questions, their comments, their likes, their
		// questions, then the account itself; all in one transaction.
		DeleteStudent(ctx context.Context, id int) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewConflictError(core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()}))
	}
	return nil
}

// RegisterTeacher creates a teacher account. The teacher's class is implied
// by the account itself; a teacher owns exactly one class.
func (svc *Service) RegisterTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Username:  nt.Username,
		FullName:  nt.FullName,
		Email:     nullString(nt.Email),
		Type:      TypeTeacher,
		ClassName: nt.ClassName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nt.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateStudent creates a student account in the teacher's class.
func (svc *Service) CreateStudent(ctx context.Context, teacher User, ns NewStudent) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Username:  ns.Username,
		FullName:  ns.Name,
		Type:      TypeStudent,
		ClassName: teacher.ClassName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// BulkCreateStudents creates many student accounts in one call. Rows with
// missing fields or taken usernames are reported in BulkResult.Errors and do
// not abort the rest. A row without a password gets a generated one, echoed
// back in the result so the teacher can hand it out.
func (svc *Service) BulkCreateStudents(ctx context.Context, teacher User, students []BulkStudent) BulkResult {
	res := BulkResult{
		TotalCount: len(students),
		Results:    make([]CreatedRecord, 0, len(students)),
		Errors:     make([]string, 0),
	}

	for _, st := range students {
		name := core.CleanString(st.Name)
		uname := core.CleanString(st.Username, true /* lower */)
		if name == "" || uname == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: missing required fields", firstNonEmpty(name, uname, "(unknown)")))
			continue
		}

		var generated string
		pwd := st.Password
		if pwd == "" {
			generated = generatePassword()
			pwd = generated
		}

		ns := NewStudent{Name: name, Username: uname, Password: pwd}
		if err := svc.checkUniqueness(uname, ""); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): username already taken", name, uname))
			continue
		}
		usr, err := svc.CreateStudent(ctx, teacher, ns)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): could not create account", name, uname))
			continue
		}

		res.Results = append(res.Results, CreatedRecord{
			ID:       usr.ID,
			Name:     usr.FullName,
			Username: usr.Username,
			Password: generated,
		})
		res.CreatedCount++
	}
	return res
}

func (svc *Service) Students(ctx context.Context, className string) ([]StudentInfo, error) {
	return svc.repo.QueryStudents(ctx, className)
}

// DeleteStudent cascades the removal of a student account. The teacher may
// only delete students of their own class.
func (svc *Service) DeleteStudent(ctx context.Context, teacher User, id int) error {
	student, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !student.IsStudent() {
		return ErrNotStudent
	}
	if student.ClassName != teacher.ClassName {
		return ErrWrongClass
	}
	return svc.repo.DeleteStudent(ctx, id)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// RequestPasswordReset emails a signed reset link to the account owner.
// Callers must treat ErrNotFound as a non-event so the endpoint cannot be
// used to probe for registered emails.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := MakeToken(svc.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email.String}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			FullName, UID, Token string
		}{usr.FullName, EncodeUID(usr), token},
	})
	return nil
}

// ResetPassword verifies a reset token and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(svc.conf, usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// SetUserPassword is for operator tooling; it bypasses the reset-token flow.
func (svc *Service) SetUserPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func generatePassword() string {
	// 8 chars is plenty for a handed-out first login password
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
