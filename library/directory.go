package library

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Directory is the aggregate owning the three keyed collections. All
// mutations of Book availability go through it, so the catalog and the
// accounts cannot drift apart. The process is single-session: every
// operation runs to completion before the next, and "now" is always an
// explicit parameter so one command sees one consistent clock.
type Directory struct {
	books    map[string]*Book
	accounts map[string]*Account
	users    map[string]*User
	store    Store
}

// NewDirectory returns an empty in-memory directory with no backing
// store. Intended for tests and bootstrap.
func NewDirectory() *Directory {
	return &Directory{
		books:    make(map[string]*Book),
		accounts: make(map[string]*Account),
		users:    make(map[string]*User),
	}
}

// Open loads the directory from store. Missing files load as empty
// collections.
func Open(store Store) (*Directory, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load library state: %w", err)
	}
	return &Directory{
		books:    state.Books,
		accounts: state.Accounts,
		users:    state.Users,
		store:    store,
	}, nil
}

// persist rewrites all three collections after a mutating command.
// Save failure degrades to a logged warning: the in-memory state is
// still the source of truth for the rest of the session. A crash
// between the three writes can leave the files mutually inconsistent;
// that is a known limitation of the flat-file contract.
func (d *Directory) persist() {
	if d.store == nil {
		return
	}
	if err := d.store.SaveBooks(d.books); err != nil {
		log.Printf("warning: saving books: %v", err)
	}
	if err := d.store.SaveAccounts(d.accounts); err != nil {
		log.Printf("warning: saving accounts: %v", err)
	}
	if err := d.store.SaveUsers(d.users); err != nil {
		log.Printf("warning: saving users: %v", err)
	}
}

// ------------------ Lookups ------------------

func (d *Directory) GetBook(isbn string) (*Book, error) {
	b, ok := d.books[isbn]
	if !ok {
		return nil, ErrBookNotFound
	}
	return b, nil
}

func (d *Directory) GetUser(id string) (*User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (d *Directory) GetAccount(userID string) (*Account, error) {
	a, ok := d.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return a, nil
}

// Books returns the catalog ordered by ISBN.
func (d *Directory) Books() []*Book {
	out := make([]*Book, 0, len(d.books))
	for _, b := range d.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISBN < out[j].ISBN })
	return out
}

// Users returns all users ordered by id.
func (d *Directory) Users() []*User {
	out := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ------------------ Catalog management ------------------

func validateBook(isbn, title, author string, year int) error {
	switch {
	case strings.TrimSpace(isbn) == "":
		return fmt.Errorf("%w: isbn is empty", ErrValidation)
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title is empty", ErrValidation)
	case strings.TrimSpace(author) == "":
		return fmt.Errorf("%w: author is empty", ErrValidation)
	case year < 1000 || year > 9999:
		return fmt.Errorf("%w: year %d out of range", ErrValidation, year)
	}
	return nil
}

// AddBook adds a catalog entry. New books start available and
// unreserved.
func (d *Directory) AddBook(isbn, title, author, publisher string, year int) error {
	if err := validateBook(isbn, title, author, year); err != nil {
		return err
	}
	if _, exists := d.books[isbn]; exists {
		return fmt.Errorf("%w: book %s", ErrDuplicateID, isbn)
	}
	d.books[isbn] = &Book{
		ISBN:      isbn,
		Title:     title,
		Author:    author,
		Publisher: publisher,
		Year:      year,
		Available: true,
	}
	d.persist()
	return nil
}

// UpdateBook replaces a book's metadata, keeping its circulation state.
func (d *Directory) UpdateBook(isbn, title, author, publisher string, year int) error {
	b, ok := d.books[isbn]
	if !ok {
		return ErrBookNotFound
	}
	if err := validateBook(isbn, title, author, year); err != nil {
		return err
	}
	b.Title = title
	b.Author = author
	b.Publisher = publisher
	b.Year = year
	d.persist()
	return nil
}

// RemoveBook deletes a catalog entry. Removal is rejected while any
// account holds a current loan for the ISBN, so a loan can never
// reference a book that no longer exists.
func (d *Directory) RemoveBook(isbn string) error {
	if _, ok := d.books[isbn]; !ok {
		return ErrBookNotFound
	}
	for _, acc := range d.accounts {
		if _, held := acc.Loans[isbn]; held {
			return fmt.Errorf("%w: book %s", ErrBookBorrowed, isbn)
		}
	}
	delete(d.books, isbn)
	d.persist()
	return nil
}

// ------------------ User management ------------------

// AddUser registers a user and creates their account. The password is
// stored bcrypt-hashed.
func (d *Directory) AddUser(id, name, password string, role Role) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: user id is empty", ErrValidation)
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrValidation)
	case password == "":
		return fmt.Errorf("%w: password is empty", ErrValidation)
	}
	if _, exists := d.users[id]; exists {
		return fmt.Errorf("%w: user %s", ErrDuplicateID, id)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	d.users[id] = &User{ID: id, Name: name, PasswordHash: string(hash), Role: role}
	d.accounts[id] = NewAccount(id, role)
	d.persist()
	return nil
}

// RemoveUser deletes a user and cascades the account deletion. Removal
// is rejected while the user still holds borrowed books, so books can
// never be stranded unavailable.
func (d *Directory) RemoveUser(id string) error {
	if _, ok := d.users[id]; !ok {
		return ErrUserNotFound
	}
	if acc, ok := d.accounts[id]; ok && len(acc.Loans) > 0 {
		return fmt.Errorf("%w: user %s", ErrActiveLoans, id)
	}
	delete(d.users, id)
	delete(d.accounts, id)
	d.persist()
	return nil
}

// Authenticate verifies the password for a user id.
func (d *Directory) Authenticate(id, password string) (*User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// ------------------ Circulation ------------------

// accountFor returns the account backing an existing user, recreating
// it from the role policy when the accounts collection was missing on
// load. The three files load independently, so a user may arrive
// without an account.
func (d *Directory) accountFor(u *User) *Account {
	acc, ok := d.accounts[u.ID]
	if !ok {
		acc = NewAccount(u.ID, u.Role)
		d.accounts[u.ID] = acc
	}
	return acc
}

// Borrow lends a book to a user as of now. On any precondition failure
// nothing is mutated.
func (d *Directory) Borrow(userID, isbn string, now time.Time) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if !RolePolicies[u.Role].CanBorrow {
		return ErrRoleNotPermitted
	}
	b, ok := d.books[isbn]
	if !ok {
		return ErrBookNotFound
	}
	if !b.Available {
		return ErrBookUnavailable
	}
	if err := d.accountFor(u).borrow(isbn, now.Unix()); err != nil {
		return err
	}
	b.Available = false
	b.Reserved = false
	d.persist()
	return nil
}

// Return completes a loan. payment must equal the outstanding fine on
// the book (zero when none is due); otherwise the return is rejected
// with FineDueError carrying the exact amount.
func (d *Directory) Return(userID, isbn string, payment int64, now time.Time) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if !RolePolicies[u.Role].CanBorrow {
		return ErrRoleNotPermitted
	}
	if _, err := d.accountFor(u).returnBook(isbn, payment, now.Unix()); err != nil {
		return err
	}
	if b, ok := d.books[isbn]; ok {
		b.Available = true
	}
	d.persist()
	return nil
}

// PayBookFine pays the exact fine on one loan and reissues it with a
// fresh due date. Paying a fine does not return the book.
func (d *Directory) PayBookFine(userID, isbn string, amount int64, now time.Time) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if err := d.accountFor(u).payBookFine(isbn, amount, now.Unix()); err != nil {
		return err
	}
	d.persist()
	return nil
}

// PayFine pays the account's total fine and reissues every loan.
func (d *Directory) PayFine(userID string, amount int64, now time.Time) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if err := d.accountFor(u).payTotalFine(amount, now.Unix()); err != nil {
		return err
	}
	d.persist()
	return nil
}

// UpdateFines refreshes the cached fine fields for one account and
// returns the total as of now.
func (d *Directory) UpdateFines(userID string, now time.Time) (int64, error) {
	u, ok := d.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	acc := d.accountFor(u)
	acc.UpdateFines(now.Unix())
	return acc.TotalFine, nil
}

// ------------------ Reservation ------------------

// Reserve flags an unavailable book as reserved. The flag is a plain
// boolean: it clears when the book is next borrowed.
func (d *Directory) Reserve(userID, isbn string) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if !RolePolicies[u.Role].CanBorrow {
		return ErrRoleNotPermitted
	}
	b, ok := d.books[isbn]
	if !ok {
		return ErrBookNotFound
	}
	if b.Available {
		return ErrBookAvailable
	}
	if b.Reserved {
		return ErrBookReserved
	}
	b.Reserved = true
	d.persist()
	return nil
}

// CancelReservation clears a book's reserved flag.
func (d *Directory) CancelReservation(isbn string) error {
	b, ok := d.books[isbn]
	if !ok {
		return ErrBookNotFound
	}
	if !b.Reserved {
		return ErrNoReservation
	}
	b.Reserved = false
	d.persist()
	return nil
}
