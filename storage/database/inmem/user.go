package inmemdb

import (
	"context"
	"sort"
	"time"

	"qugrow/core/question"
	"qugrow/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[int]struct{}, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = struct{}{}
	}

	for _, usr := range repo.db.users {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = repo.db.nextPK()
	now := time.Now().UTC()
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Username == username {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email.Valid && usr.Email.String == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryStudents(ctx context.Context, className string) ([]user.StudentInfo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	since := question.NowFunc().UTC().AddDate(0, 0, -7).Format(question.DateFormat)
	students := make([]user.StudentInfo, 0)
	for _, usr := range repo.db.users {
		if usr.ClassName != className || !usr.IsStudent() {
			continue
		}
		info := user.StudentInfo{
			ID:        usr.ID,
			Username:  usr.Username,
			FullName:  usr.FullName,
			CreatedAt: usr.CreatedAt,
		}
		for _, q := range repo.db.questions {
			if q.UserID != usr.ID {
				continue
			}
			info.QuestionCount++
			if q.Date >= since {
				info.WeekQuestionCount++
			}
		}
		students = append(students, info)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return students, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.UpdatedAt = time.Now().UTC()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteStudent(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	owned := make(map[int]struct{})
	for qid, q := range repo.db.questions {
		if q.UserID == id {
			owned[qid] = struct{}{}
		}
	}
	for cid, c := range repo.db.comments {
		if _, ok := owned[c.QuestionID]; ok || c.UserID == id {
			delete(repo.db.comments, cid)
		}
	}
	for pair := range repo.db.likes {
		if _, ok := owned[pair.QuestionID]; ok || pair.UserID == id {
			delete(repo.db.likes, pair)
		}
	}
	for qid := range owned {
		delete(repo.db.questions, qid)
	}
	delete(repo.db.users, id)
	return nil
}
