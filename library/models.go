package library

import "fmt"

// Book is a catalog entry. Availability and the reserved flag are owned
// by the Directory: they flip on borrow/return/reserve and nowhere else.
type Book struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	Year      int    `json:"year"`
	Available bool   `json:"available"`
	Reserved  bool   `json:"reserved"`
}

// Role identifies what a user may do. The set is closed; role codes
// double as the persisted representation in users.txt.
type Role int

const (
	RoleStudent Role = iota
	RoleFaculty
	RoleLibrarian
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleFaculty:
		return "Faculty"
	case RoleLibrarian:
		return "Librarian"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole converts a persisted role code back into a Role.
func ParseRole(code int) (Role, error) {
	switch r := Role(code); r {
	case RoleStudent, RoleFaculty, RoleLibrarian:
		return r, nil
	}
	return 0, fmt.Errorf("%w: unknown role code %d", ErrValidation, code)
}

// Policy is the per-role lending rule set.
type Policy struct {
	MaxBooks     int
	LoanDays     int
	AccruesFines bool
	CanBorrow    bool
}

// RolePolicies maps each role to its lending policy. Librarians hold a
// degenerate zero policy and cannot borrow at all.
var RolePolicies = map[Role]Policy{
	RoleStudent:   {MaxBooks: 3, LoanDays: 15, AccruesFines: true, CanBorrow: true},
	RoleFaculty:   {MaxBooks: 5, LoanDays: 30, AccruesFines: false, CanBorrow: true},
	RoleLibrarian: {},
}

// BorrowRecord is one active loan. DueAt and LastFinePaidAt are
// whole-second unix timestamps. Fine is a display cache: the
// authoritative value is recomputed from DueAt by UpdateFines.
type BorrowRecord struct {
	BookID         string `json:"book_id"`
	DueAt          int64  `json:"due_at"`
	LastFinePaidAt int64  `json:"last_fine_paid_at"`
	Fine           int64  `json:"fine"`
}

// HistoryEntry is a completed loan.
type HistoryEntry struct {
	BookID     string `json:"book_id"`
	ReturnedAt int64  `json:"returned_at"`
}

// Account carries the per-user borrowing state. MaxBooks and MaxDays are
// fixed from the role policy at creation and persisted with the account.
type Account struct {
	UserID    string                   `json:"user_id"`
	TotalFine int64                    `json:"total_fine"`
	Faculty   bool                     `json:"faculty"`
	MaxBooks  int                      `json:"max_books"`
	MaxDays   int                      `json:"max_days"`
	Loans     map[string]*BorrowRecord `json:"loans"`
	History   []HistoryEntry           `json:"history"`
}

// NewAccount creates an empty account with the policy limits for role.
func NewAccount(userID string, role Role) *Account {
	p := RolePolicies[role]
	return &Account{
		UserID:   userID,
		Faculty:  role == RoleFaculty,
		MaxBooks: p.MaxBooks,
		MaxDays:  p.LoanDays,
		Loans:    make(map[string]*BorrowRecord),
	}
}

// User is a registered library user. PasswordHash holds the bcrypt hash
// persisted in the users file.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"` // Don't serialize password hash
	Role         Role   `json:"role"`
}
