package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps the same snapshot Store contract as the flat files but
// writes each collection inside one transaction, so a crash cannot
// leave a half-written collection behind.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (or creates) the SQLite database at dbPath and
// applies schema migrations.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            isbn TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL,
            year INTEGER NOT NULL,
            available INTEGER NOT NULL,
            reserved INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS accounts (
            user_id TEXT PRIMARY KEY,
            total_fine INTEGER NOT NULL,
            faculty INTEGER NOT NULL,
            max_books INTEGER NOT NULL,
            max_days INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            user_id TEXT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
            isbn TEXT NOT NULL,
            due_at INTEGER NOT NULL,
            last_fine_paid_at INTEGER NOT NULL,
            fine INTEGER NOT NULL,
            PRIMARY KEY(user_id, isbn)
        );`,
		`CREATE TABLE IF NOT EXISTS history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
            isbn TEXT NOT NULL,
            returned_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            role INTEGER NOT NULL
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ------------------ loading ------------------

func (s *SQLStore) Load() (*State, error) {
	state := NewState()

	rows, err := s.db.Query(`SELECT isbn,title,author,publisher,year,available,reserved FROM books`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Year, &b.Available, &b.Reserved); err != nil {
			return nil, err
		}
		state.Books[b.ISBN] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAccounts(state); err != nil {
		return nil, err
	}

	userRows, err := s.db.Query(`SELECT id,name,password_hash,role FROM users`)
	if err != nil {
		return nil, err
	}
	defer userRows.Close()
	for userRows.Next() {
		var u User
		var code int
		if err := userRows.Scan(&u.ID, &u.Name, &u.PasswordHash, &code); err != nil {
			return nil, err
		}
		if u.Role, err = ParseRole(code); err != nil {
			return nil, err
		}
		state.Users[u.ID] = &u
	}
	return state, userRows.Err()
}

func (s *SQLStore) loadAccounts(state *State) error {
	rows, err := s.db.Query(`SELECT user_id,total_fine,faculty,max_books,max_days FROM accounts`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		acc := &Account{Loans: make(map[string]*BorrowRecord)}
		if err := rows.Scan(&acc.UserID, &acc.TotalFine, &acc.Faculty, &acc.MaxBooks, &acc.MaxDays); err != nil {
			return err
		}
		state.Accounts[acc.UserID] = acc
	}
	if err := rows.Err(); err != nil {
		return err
	}

	loanRows, err := s.db.Query(`SELECT user_id,isbn,due_at,last_fine_paid_at,fine FROM loans`)
	if err != nil {
		return err
	}
	defer loanRows.Close()
	for loanRows.Next() {
		var userID string
		rec := &BorrowRecord{}
		if err := loanRows.Scan(&userID, &rec.BookID, &rec.DueAt, &rec.LastFinePaidAt, &rec.Fine); err != nil {
			return err
		}
		if acc, ok := state.Accounts[userID]; ok {
			acc.Loans[rec.BookID] = rec
		}
	}
	if err := loanRows.Err(); err != nil {
		return err
	}

	histRows, err := s.db.Query(`SELECT user_id,isbn,returned_at FROM history ORDER BY id`)
	if err != nil {
		return err
	}
	defer histRows.Close()
	for histRows.Next() {
		var userID string
		var h HistoryEntry
		if err := histRows.Scan(&userID, &h.BookID, &h.ReturnedAt); err != nil {
			return err
		}
		if acc, ok := state.Accounts[userID]; ok {
			acc.History = append(acc.History, h)
		}
	}
	return histRows.Err()
}

// ------------------ saving ------------------

// replace runs fn inside a transaction after clearing the named tables.
// Each collection save is a full snapshot rewrite.
func (s *SQLStore) replace(tables []string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.Exec(`DELETE FROM ` + t); err != nil {
			return err
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) SaveBooks(books map[string]*Book) error {
	return s.replace([]string{"books"}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO books(isbn,title,author,publisher,year,available,reserved) VALUES(?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range books {
			if _, err := stmt.Exec(b.ISBN, b.Title, b.Author, b.Publisher, b.Year, b.Available, b.Reserved); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) SaveAccounts(accounts map[string]*Account) error {
	return s.replace([]string{"history", "loans", "accounts"}, func(tx *sql.Tx) error {
		accStmt, err := tx.Prepare(`INSERT INTO accounts(user_id,total_fine,faculty,max_books,max_days) VALUES(?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer accStmt.Close()
		loanStmt, err := tx.Prepare(`INSERT INTO loans(user_id,isbn,due_at,last_fine_paid_at,fine) VALUES(?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer loanStmt.Close()
		histStmt, err := tx.Prepare(`INSERT INTO history(user_id,isbn,returned_at) VALUES(?,?,?)`)
		if err != nil {
			return err
		}
		defer histStmt.Close()

		for _, acc := range accounts {
			if _, err := accStmt.Exec(acc.UserID, acc.TotalFine, acc.Faculty, acc.MaxBooks, acc.MaxDays); err != nil {
				return err
			}
			for _, rec := range acc.Loans {
				if _, err := loanStmt.Exec(acc.UserID, rec.BookID, rec.DueAt, rec.LastFinePaidAt, rec.Fine); err != nil {
					return err
				}
			}
			for _, h := range acc.History {
				if _, err := histStmt.Exec(acc.UserID, h.BookID, h.ReturnedAt); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) SaveUsers(users map[string]*User) error {
	return s.replace([]string{"users"}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO users(id,name,password_hash,role) VALUES(?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, u := range users {
			if _, err := stmt.Exec(u.ID, u.Name, u.PasswordHash, int(u.Role)); err != nil {
				return err
			}
		}
		return nil
	})
}
