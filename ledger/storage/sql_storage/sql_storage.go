package sql_storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

func init() {
	for name, d := range dialects {
		storage.Register(name, sqlCreator{name: name, d: d})
	}
}

type sqlCreator struct {
	name string
	d    dialect
}

func (c sqlCreator) Create(p *properties.Properties) (storage.Storage, error) {
	maxOpen := c.d.maxOpen
	if maxOpen == 0 {
		maxOpen = 8
	}
	table := p.GetString(sqlTable, "accounts")
	s := &SQLStorage{
		name:    c.name,
		d:       c.d,
		dsn:     c.d.dsn(p),
		table:   c.d.quote(table),
		maxOpen: p.GetInt(sqlMaxOpenConns, maxOpen),
		maxIdle: p.GetInt(sqlMaxIdleConns, 2),
	}
	if c.d.driver == "sqlite3" {
		s.sqlitePath = p.GetString(sqlitePath, "/tmp/tinyledger/sqlite.db")
	}
	return s, nil
}

// SQLStorage keeps account rows in an accounts table of a SQL database. Each commit is one SQL transaction.
type SQLStorage struct {
	name       string
	d          dialect
	dsn        string
	table      string
	maxOpen    int
	maxIdle    int
	sqlitePath string

	db     *sql.DB
	upsert string
}

func (s *SQLStorage) Start() error {
	if s.sqlitePath != "" {
		if err := os.MkdirAll(filepath.Dir(s.sqlitePath), os.ModePerm); err != nil {
			return errors.WithStack(err)
		}
	}
	db, err := sql.Open(s.d.driver, s.dsn)
	if err != nil {
		return errors.WithStack(err)
	}
	db.SetMaxOpenConns(s.maxOpen)
	db.SetMaxIdleConns(s.maxIdle)
	if _, err := db.Exec(s.d.createTable(s.table)); err != nil {
		db.Close()
		return errors.Annotatef(err, "create table %s", s.table)
	}
	s.db = db
	s.upsert = s.d.upsert(s.table)
	log.Info("sql storage opened", zap.String("engine", s.name), zap.String("table", s.table))
	return nil
}

func (s *SQLStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *SQLStorage) Commit(ctx context.Context, rows []storage.Account) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, s.upsert)
	if err != nil {
		return errors.WithStack(err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, int64(row.ID), row.Name, row.Balance); err != nil {
			return errors.Annotatef(err, "upsert account %d", row.ID)
		}
	}
	return errors.WithStack(tx.Commit())
}

func (s *SQLStorage) Load(ctx context.Context) ([]storage.Account, error) {
	q := "SELECT account_id, account_name, balance FROM " + s.table + " ORDER BY account_id"
	res, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Close()
	var rows []storage.Account
	for res.Next() {
		var (
			id  int64
			acc storage.Account
		)
		if err := res.Scan(&id, &acc.Name, &acc.Balance); err != nil {
			return nil, errors.WithStack(err)
		}
		acc.ID = uint64(id)
		rows = append(rows, acc)
	}
	return rows, errors.WithStack(res.Err())
}
