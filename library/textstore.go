package library

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// State is a full snapshot of the three persisted collections.
type State struct {
	Books    map[string]*Book
	Accounts map[string]*Account
	Users    map[string]*User
}

// NewState returns an empty snapshot.
func NewState() *State {
	return &State{
		Books:    make(map[string]*Book),
		Accounts: make(map[string]*Account),
		Users:    make(map[string]*User),
	}
}

// Store persists the directory state. The three collections are saved
// independently, mirroring the three flat files of the external
// contract. A missing collection loads as empty.
type Store interface {
	Load() (*State, error)
	SaveBooks(books map[string]*Book) error
	SaveAccounts(accounts map[string]*Account) error
	SaveUsers(users map[string]*User) error
}

const (
	booksFile    = "books.txt"
	accountsFile = "accounts.txt"
	usersFile    = "users.txt"
)

// TextStore is the canonical flat-file store: newline-delimited fields
// with a leading count line per file, one file per collection.
type TextStore struct {
	dir string
}

// NewTextStore persists under dir, creating it on first save.
func NewTextStore(dir string) *TextStore {
	return &TextStore{dir: dir}
}

func (s *TextStore) path(name string) string { return filepath.Join(s.dir, name) }

// ------------------ reading ------------------

// lineReader reads one field per line and keeps position for error
// messages.
type lineReader struct {
	sc   *bufio.Scanner
	file string
	line int
}

func (r *lineReader) next() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", r.file, err)
		}
		return "", fmt.Errorf("%s: unexpected end of file after line %d", r.file, r.line)
	}
	r.line++
	return r.sc.Text(), nil
}

func (r *lineReader) nextInt() (int64, error) {
	s, err := r.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %q is not a number", r.file, r.line, s)
	}
	return n, nil
}

// readRecords opens name and hands a lineReader to fn once per record.
// A missing file is an empty collection, not an error.
func (s *TextStore) readRecords(name string, fn func(r *lineReader) error) error {
	f, err := os.Open(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := &lineReader{sc: bufio.NewScanner(f), file: name}
	count, err := r.nextInt()
	if err != nil {
		return err
	}
	for i := int64(0); i < count; i++ {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *TextStore) Load() (*State, error) {
	state := NewState()

	err := s.readRecords(booksFile, func(r *lineReader) error {
		var b Book
		var err error
		if b.ISBN, err = r.next(); err != nil {
			return err
		}
		if b.Title, err = r.next(); err != nil {
			return err
		}
		if b.Author, err = r.next(); err != nil {
			return err
		}
		if b.Publisher, err = r.next(); err != nil {
			return err
		}
		year, err := r.nextInt()
		if err != nil {
			return err
		}
		b.Year = int(year)
		flags, err := r.next()
		if err != nil {
			return err
		}
		var avail, reserved int
		if _, err := fmt.Sscanf(flags, "%d %d", &avail, &reserved); err != nil {
			return fmt.Errorf("%s line %d: bad status flags %q", booksFile, r.line, flags)
		}
		b.Available = avail == 1
		b.Reserved = reserved == 1
		state.Books[b.ISBN] = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.readRecords(accountsFile, func(r *lineReader) error {
		acc := &Account{Loans: make(map[string]*BorrowRecord)}
		var err error
		if acc.UserID, err = r.next(); err != nil {
			return err
		}
		if acc.TotalFine, err = r.nextInt(); err != nil {
			return err
		}
		faculty, err := r.nextInt()
		if err != nil {
			return err
		}
		acc.Faculty = faculty == 1
		maxBooks, err := r.nextInt()
		if err != nil {
			return err
		}
		acc.MaxBooks = int(maxBooks)
		maxDays, err := r.nextInt()
		if err != nil {
			return err
		}
		acc.MaxDays = int(maxDays)

		loans, err := r.nextInt()
		if err != nil {
			return err
		}
		for i := int64(0); i < loans; i++ {
			rec := &BorrowRecord{}
			if rec.BookID, err = r.next(); err != nil {
				return err
			}
			if rec.DueAt, err = r.nextInt(); err != nil {
				return err
			}
			if rec.LastFinePaidAt, err = r.nextInt(); err != nil {
				return err
			}
			if rec.Fine, err = r.nextInt(); err != nil {
				return err
			}
			acc.Loans[rec.BookID] = rec
		}

		entries, err := r.nextInt()
		if err != nil {
			return err
		}
		for i := int64(0); i < entries; i++ {
			var h HistoryEntry
			if h.BookID, err = r.next(); err != nil {
				return err
			}
			if h.ReturnedAt, err = r.nextInt(); err != nil {
				return err
			}
			acc.History = append(acc.History, h)
		}
		state.Accounts[acc.UserID] = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.readRecords(usersFile, func(r *lineReader) error {
		var u User
		var err error
		if u.ID, err = r.next(); err != nil {
			return err
		}
		if u.Name, err = r.next(); err != nil {
			return err
		}
		if u.PasswordHash, err = r.next(); err != nil {
			return err
		}
		code, err := r.nextInt()
		if err != nil {
			return err
		}
		if u.Role, err = ParseRole(int(code)); err != nil {
			return fmt.Errorf("%s line %d: %w", usersFile, r.line, err)
		}
		state.Users[u.ID] = &u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// ------------------ writing ------------------

func (s *TextStore) writeFile(name string, count int, fn func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.Create(s.path(name))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d\n", count)
	if err := fn(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bool01(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *TextStore) SaveBooks(books map[string]*Book) error {
	return s.writeFile(booksFile, len(books), func(w *bufio.Writer) error {
		for _, isbn := range sortedKeys(books) {
			b := books[isbn]
			fmt.Fprintf(w, "%s\n%s\n%s\n%s\n%d\n%d %d\n",
				b.ISBN, b.Title, b.Author, b.Publisher, b.Year, bool01(b.Available), bool01(b.Reserved))
		}
		return nil
	})
}

func (s *TextStore) SaveAccounts(accounts map[string]*Account) error {
	return s.writeFile(accountsFile, len(accounts), func(w *bufio.Writer) error {
		for _, id := range sortedKeys(accounts) {
			acc := accounts[id]
			fmt.Fprintf(w, "%s\n%d\n%d\n%d\n%d\n",
				acc.UserID, acc.TotalFine, bool01(acc.Faculty), acc.MaxBooks, acc.MaxDays)

			fmt.Fprintf(w, "%d\n", len(acc.Loans))
			for _, isbn := range sortedKeys(acc.Loans) {
				rec := acc.Loans[isbn]
				fmt.Fprintf(w, "%s\n%d\n%d\n%d\n", rec.BookID, rec.DueAt, rec.LastFinePaidAt, rec.Fine)
			}

			fmt.Fprintf(w, "%d\n", len(acc.History))
			for _, h := range acc.History {
				fmt.Fprintf(w, "%s\n%d\n", h.BookID, h.ReturnedAt)
			}
		}
		return nil
	})
}

func (s *TextStore) SaveUsers(users map[string]*User) error {
	return s.writeFile(usersFile, len(users), func(w *bufio.Writer) error {
		for _, id := range sortedKeys(users) {
			u := users[id]
			fmt.Fprintf(w, "%s\n%s\n%s\n%d\n", u.ID, u.Name, u.PasswordHash, int(u.Role))
		}
		return nil
	})
}
