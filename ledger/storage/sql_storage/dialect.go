package sql_storage

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/magiconair/properties"
	// sqlite driver
	_ "github.com/mattn/go-sqlite3"
)

// sql properties
const (
	sqlTable        = "sql.table"
	sqlMaxOpenConns = "sql.max_open_conns"
	sqlMaxIdleConns = "sql.max_idle_conns"

	sqlitePath        = "sqlite.db"
	sqliteJournalMode = "sqlite.journalmode"
	sqliteCache       = "sqlite.cache"

	mysqlHost     = "mysql.host"
	mysqlPort     = "mysql.port"
	mysqlUser     = "mysql.user"
	mysqlPassword = "mysql.password"
	mysqlDBName   = "mysql.db"

	pgHost     = "pg.host"
	pgPort     = "pg.port"
	pgUser     = "pg.user"
	pgPassword = "pg.password"
	pgDBName   = "pg.db"
	pgSSLMode  = "pg.sslmode"
)

// dialect holds what differs between the SQL databases: the driver, how to reach it and the upsert syntax.
type dialect struct {
	driver      string
	dsn         func(p *properties.Properties) string
	createTable func(table string) string
	upsert      func(table string) string
	quote       func(name string) string
	maxOpen     int
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite3",
		dsn:    sqliteDSN,
		createTable: func(table string) string {
			return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (account_id INTEGER PRIMARY KEY, "+
				"account_name TEXT NOT NULL, balance INTEGER NOT NULL)", table)
		},
		upsert: func(table string) string {
			return fmt.Sprintf("INSERT OR REPLACE INTO %s (account_id, account_name, balance) VALUES (?, ?, ?)", table)
		},
		quote:   func(name string) string { return `"` + name + `"` },
		maxOpen: 1,
	},
	"mysql": {
		driver: "mysql",
		dsn:    mysqlDSN,
		createTable: func(table string) string {
			return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (account_id BIGINT UNSIGNED PRIMARY KEY, "+
				"account_name VARCHAR(255) NOT NULL, balance BIGINT NOT NULL)", table)
		},
		upsert: func(table string) string {
			return fmt.Sprintf("INSERT INTO %s (account_id, account_name, balance) VALUES (?, ?, ?) "+
				"ON DUPLICATE KEY UPDATE account_name = VALUES(account_name), balance = VALUES(balance)", table)
		},
		quote: func(name string) string { return "`" + name + "`" },
	},
	"postgres": {
		driver: "postgres",
		dsn:    pgDSN,
		createTable: func(table string) string {
			return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (account_id BIGINT PRIMARY KEY, "+
				"account_name TEXT NOT NULL, balance BIGINT NOT NULL)", table)
		},
		upsert: func(table string) string {
			return fmt.Sprintf("INSERT INTO %s (account_id, account_name, balance) VALUES ($1, $2, $3) "+
				"ON CONFLICT (account_id) DO UPDATE SET account_name = EXCLUDED.account_name, balance = EXCLUDED.balance", table)
		},
		quote: pq.QuoteIdentifier,
	},
}

func sqliteDSN(p *properties.Properties) string {
	v := url.Values{}
	v.Set("cache", p.GetString(sqliteCache, "shared"))
	v.Set("mode", "rwc")
	v.Set("_journal_mode", p.GetString(sqliteJournalMode, "WAL"))
	return fmt.Sprintf("file:%s?%s", p.GetString(sqlitePath, "/tmp/tinyledger/sqlite.db"), v.Encode())
}

func mysqlDSN(p *properties.Properties) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.GetString(mysqlHost, "127.0.0.1"), strconv.Itoa(p.GetInt(mysqlPort, 3306)))
	cfg.User = p.GetString(mysqlUser, "root")
	cfg.Passwd = p.GetString(mysqlPassword, "")
	cfg.DBName = p.GetString(mysqlDBName, "test")
	return cfg.FormatDSN()
}

func pgDSN(p *properties.Properties) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.GetString(pgUser, "postgres"), p.GetString(pgPassword, "")),
		Host:   net.JoinHostPort(p.GetString(pgHost, "127.0.0.1"), strconv.Itoa(p.GetInt(pgPort, 5432))),
		Path:   "/" + p.GetString(pgDBName, "test"),
	}
	q := url.Values{}
	q.Set("sslmode", p.GetString(pgSSLMode, "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}
