package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
	"github.com/rumboapp/rumbo/core/plan"
	"github.com/rumboapp/rumbo/core/quarter"
	"github.com/rumboapp/rumbo/core/user"
)

type (
	// DB keeps everything in memory for tests. It satisfies core.DB with
	// no-op transactions so service code under test can run unchanged.
	DB struct {
		mu sync.RWMutex

		users          map[string]*user.User
		areas          map[string]*plan.Area
		ejes           map[string]*plan.Eje
		subEjes        map[string]*plan.SubEje
		areaEjes       map[string]struct{} // areaID + "/" + ejeID
		rows           map[string]*plan.Row
		configs        map[string]*quarter.Config
		participations map[string]*quarter.Participation
		goals          map[string]*quarter.GoalAssignment
		evidences      map[string]*evidence.Evidence
		submissions    map[string]*evidence.Submission
	}

	noopTx struct{ *DB }
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	return &DB{
		users:          make(map[string]*user.User),
		areas:          make(map[string]*plan.Area),
		ejes:           make(map[string]*plan.Eje),
		subEjes:        make(map[string]*plan.SubEje),
		areaEjes:       make(map[string]struct{}),
		rows:           make(map[string]*plan.Row),
		configs:        make(map[string]*quarter.Config),
		participations: make(map[string]*quarter.Participation),
		goals:          make(map[string]*quarter.GoalAssignment),
		evidences:      make(map[string]*evidence.Evidence),
		submissions:    make(map[string]*evidence.Submission),
	}, nil
}

// Reset drops all stored records; handy between test cases.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.users = make(map[string]*user.User)
	db.areas = make(map[string]*plan.Area)
	db.ejes = make(map[string]*plan.Eje)
	db.subEjes = make(map[string]*plan.SubEje)
	db.areaEjes = make(map[string]struct{})
	db.rows = make(map[string]*plan.Row)
	db.configs = make(map[string]*quarter.Config)
	db.participations = make(map[string]*quarter.Participation)
	db.goals = make(map[string]*quarter.GoalAssignment)
	db.evidences = make(map[string]*evidence.Evidence)
	db.submissions = make(map[string]*evidence.Submission)
}

func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) { return nil, nil }
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) { return nil, nil }
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row { return nil }
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{db}, nil
}

func (tx noopTx) Commit() error   { return nil }
func (tx noopTx) Rollback() error { return nil }
