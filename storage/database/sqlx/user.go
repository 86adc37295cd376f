package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"qugrow/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]int, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}
	if len(exclIDs) == 0 {
		exclIDs = append(exclIDs, 0) // sqlx.In rejects empty slices
	}

	query, args, err := sqlx.In(
		`SELECT username, COALESCE(email, '') AS email FROM users
		 WHERE (username = ? OR (email = ? AND ? <> '')) AND id NOT IN (?)`,
		username, email, email, exclIDs,
	)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, row := range rows {
		if row.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, password_hash, full_name, email, user_type, class_name)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		usr.Username, usr.PasswordHash, usr.FullName, usr.Email, usr.Type, usr.ClassName,
	).Scan(&usr.ID, &usr.CreatedAt, &usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) getUser(ctx context.Context, query string, arg interface{}) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, query, arg)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE username = $1`, username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE email = $1`, email)
}

func (repo userRepository) QueryStudents(ctx context.Context, className string) ([]user.StudentInfo, error) {
	since := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	students := make([]user.StudentInfo, 0)
	err := repo.db.SelectContext(ctx, &students,
		`SELECT u.id, u.username, u.full_name, u.created_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.user_id = u.id) AS question_count,
		        (SELECT COUNT(*) FROM questions q WHERE q.user_id = u.id AND q.date >= $2) AS week_question_count
		 FROM users u
		 WHERE u.class_name = $1 AND u.user_type = 'student'
		 ORDER BY u.full_name`,
		className, since,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.QueryRowxContext(ctx,
		`UPDATE users
		 SET username = $2, password_hash = $3, full_name = $4, email = $5,
		     updated_at = (now() AT TIME ZONE 'utc')
		 WHERE id = $1
		 RETURNING updated_at`,
		usr.ID, usr.Username, usr.PasswordHash, usr.FullName, usr.Email,
	).Scan(&usr.UpdatedAt)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) DeleteStudent(ctx context.Context, id int) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	steps := []string{
		`DELETE FROM comments WHERE question_id IN (SELECT id FROM questions WHERE user_id = $1)`,
		`DELETE FROM comments WHERE user_id = $1`,
		`DELETE FROM likes WHERE question_id IN (SELECT id FROM questions WHERE user_id = $1)`,
		`DELETE FROM likes WHERE user_id = $1`,
		`DELETE FROM questions WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return errors.Wrap(err, "deleting student")
		}
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
