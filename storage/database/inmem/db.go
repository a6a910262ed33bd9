// Package inmemdb provides in-memory implementations of the domain
// repositories. They back service tests and local development; nothing
// survives a restart.
package inmemdb

import (
	"sync"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
)

type purchase struct {
	studentID  int
	categoryID int
	amount     int64
}

type DB struct {
	mutex sync.RWMutex

	users        map[int]*user.User
	categories   map[int]*catalog.Category
	modules      map[int]*catalog.Module
	enrollments  map[int]*enrollment.Enrollment
	progressions map[int]*progression.StudentProgression
	certificates map[int]*certificate.Certificate
	purchases    []purchase

	pkCount int
}

func NewDB() *DB {
	return &DB{
		users:        make(map[int]*user.User),
		categories:   make(map[int]*catalog.Category),
		modules:      make(map[int]*catalog.Module),
		enrollments:  make(map[int]*enrollment.Enrollment),
		progressions: make(map[int]*progression.StudentProgression),
		certificates: make(map[int]*certificate.Certificate),
	}
}

// Reset drops all stored data. Tests call it between cases.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[int]*user.User)
	db.categories = make(map[int]*catalog.Category)
	db.modules = make(map[int]*catalog.Module)
	db.enrollments = make(map[int]*enrollment.Enrollment)
	db.progressions = make(map[int]*progression.StudentProgression)
	db.certificates = make(map[int]*certificate.Certificate)
	db.purchases = nil
	db.pkCount = 0
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}
