package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"qugrow/core"
)

// User types
const (
	TypeTeacher = "teacher"
	TypeStudent = "student"
)

type User struct {
	ID           int         `json:"id" db:"id"`
	Username     string      `json:"username" db:"username"`
	FullName     string      `json:"full_name" db:"full_name"`
	Email        null.String `json:"email,omitempty" db:"email"`
	Type         string      `json:"user_type" db:"user_type"`
	ClassName    string      `json:"class_name" db:"class_name"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsTeacher() bool { return u.Type == TypeTeacher }
func (u *User) IsStudent() bool { return u.Type == TypeStudent }

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// NewTeacher contains information needed to self-register a teacher account.
// Registering a teacher implicitly creates their class.
type NewTeacher struct {
	Username  string `json:"username" validate:"required,min=4,alphanum_"`
	Password  string `json:"password" validate:"required,pwdminlen,pwdnotallnum"`
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	ClassName string `json:"class_name" validate:"required"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate, svc *Service) error {
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.FullName = core.CleanString(nt.FullName)
	nt.ClassName = core.CleanString(nt.ClassName)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.checkUniqueness(nt.Username, nt.Email)
}

// NewStudent contains information a teacher provides to create a student
// account in their own class.
type NewStudent struct {
	Name     string `json:"student_name" validate:"required"`
	Username string `json:"student_username" validate:"required,min=4,alphanum_"`
	Password string `json:"student_password" validate:"required,pwdminlen"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(ns.Username, "")
}

// BulkStudent is one row of a bulk student import. Password may be omitted;
// a random one is generated and reported back.
type BulkStudent struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// BulkResult reports the outcome of a bulk import. Row failures do not abort
// the remaining rows.
type BulkResult struct {
	CreatedCount int             `json:"created_count"`
	TotalCount   int             `json:"total_count"`
	Results      []CreatedRecord `json:"results"`
	Errors       []string        `json:"errors"`
}

type CreatedRecord struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"` // only set when generated
}

// StudentInfo is a roster row with per-student activity counts.
type StudentInfo struct {
	ID                int       `json:"id" db:"id"`
	Username          string    `json:"username" db:"username"`
	FullName          string    `json:"full_name" db:"full_name"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	QuestionCount     int       `json:"question_count" db:"question_count"`
	WeekQuestionCount int       `json:"week_question_count" db:"week_question_count"`
}

type ForgotPassword struct {
	Email string `json:"email" validate:"required,email"`
}

func (fp *ForgotPassword) Validate(validate *validator.Validate) error {
	fp.Email = core.CleanString(fp.Email, true /* lower */)
	return validate.Struct(fp)
}

type ResetUserPassword struct {
	Token           string `json:"token" validate:"required"`
	UID             string `json:"uid" validate:"required"`
	Password        string `json:"password" validate:"required,pwdminlen,pwdnotallnum"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}
