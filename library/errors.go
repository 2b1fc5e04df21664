package library

import (
	"errors"
	"fmt"
)

// Every failure an operation can report. All are recoverable at the
// calling boundary: a failed operation leaves state unchanged.
var (
	ErrValidation       = errors.New("validation failed")
	ErrBookNotFound     = errors.New("book not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrLoanNotFound     = errors.New("book not in borrowed list")
	ErrBookUnavailable  = errors.New("book not available for borrowing")
	ErrLimitReached     = errors.New("maximum number of books already borrowed")
	ErrFineOutstanding  = errors.New("cannot borrow due to unpaid fines")
	ErrOverdueBlock     = errors.New("a borrowed book is overdue by more than 60 days")
	ErrRoleNotPermitted = errors.New("operation not permitted for this role")
	ErrBookBorrowed     = errors.New("book has an active loan")
	ErrActiveLoans      = errors.New("user still holds borrowed books")
	ErrDuplicateID      = errors.New("id already exists")
	ErrBookReserved     = errors.New("book is already reserved")
	ErrBookAvailable    = errors.New("book is available, borrow it instead")
	ErrNoReservation    = errors.New("book is not reserved")
	ErrNoFineDue        = errors.New("no fine due")
	ErrBadCredentials   = errors.New("invalid password")
)

// FineDueError rejects a return until the fine on that book is paid.
// Amount is the freshly recomputed fine the caller must pay exactly.
type FineDueError struct {
	BookID string
	Amount int64
}

func (e *FineDueError) Error() string {
	return fmt.Sprintf("fine of %d rupees due on book %s", e.Amount, e.BookID)
}

// PaymentMismatchError rejects a payment that is not exactly the fine
// owed. Partial payments and overpayments are both rejected.
type PaymentMismatchError struct {
	Required int64
	Paid     int64
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment of %d rupees does not match fine of %d rupees", e.Paid, e.Required)
}
