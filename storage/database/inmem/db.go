// Package inmemdb backs the repository interfaces with plain maps. It is
// what the handler tests and local tinkering run against; no postgres needed.
package inmemdb

import (
	"sync"

	"qugrow/core/question"
	"qugrow/core/user"
)

type likePair struct {
	QuestionID int
	UserID     int
}

type DB struct {
	mu        sync.RWMutex
	pk        int
	users     map[int]user.User
	questions map[int]question.Question
	comments  map[int]question.Comment
	likes     map[likePair]struct{}
}

func NewDB() *DB {
	return &DB{
		users:     make(map[int]user.User),
		questions: make(map[int]question.Question),
		comments:  make(map[int]question.Comment),
		likes:     make(map[likePair]struct{}),
	}
}

// nextPK assumes db.mu is held.
func (db *DB) nextPK() int {
	db.pk++
	return db.pk
}
