package library

import (
	"errors"
	"testing"
)

const day = 86400

// loanDueAt adds a current loan directly, bypassing the directory, so
// fine math can be tested against arbitrary due dates.
func loanDueAt(acc *Account, bookID string, dueAt int64) *BorrowRecord {
	rec := &BorrowRecord{BookID: bookID, DueAt: dueAt}
	acc.Loans[bookID] = rec
	return rec
}

func TestFineFormula(t *testing.T) {
	tests := []struct {
		name     string
		pastDue  int64 // seconds past the due date
		wantFine int64
	}{
		{"before due", -day, 0},
		{"exactly due", 0, 0},
		{"one second short of a day", day - 1, 0},
		{"exactly one day", day, 10},
		{"five days", 5 * day, 50},
		{"five days plus partial", 5*day + day - 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccount("s1", RoleStudent)
			due := int64(1_700_000_000)
			rec := loanDueAt(acc, "b1", due)

			acc.UpdateFines(due + tt.pastDue)
			if rec.Fine != tt.wantFine {
				t.Errorf("fine = %d, want %d", rec.Fine, tt.wantFine)
			}
			if acc.TotalFine != tt.wantFine {
				t.Errorf("total fine = %d, want %d", acc.TotalFine, tt.wantFine)
			}
		})
	}
}

func TestFacultyNeverFined(t *testing.T) {
	acc := NewAccount("f1", RoleFaculty)
	due := int64(1_700_000_000)
	rec := loanDueAt(acc, "b1", due)

	acc.UpdateFines(due + 90*day)
	if rec.Fine != 0 || acc.TotalFine != 0 {
		t.Fatalf("faculty fine = %d (total %d), want 0", rec.Fine, acc.TotalFine)
	}
}

func TestTotalFineSumsAllLoans(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	loanDueAt(acc, "b1", now-5*day) // 50
	loanDueAt(acc, "b2", now-2*day) // 20
	loanDueAt(acc, "b3", now+day)   // not due yet

	acc.UpdateFines(now)
	if acc.TotalFine != 70 {
		t.Fatalf("total fine = %d, want 70", acc.TotalFine)
	}
}

func TestBorrowLimit(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	for _, id := range []string{"b1", "b2", "b3"} {
		if err := acc.borrow(id, now); err != nil {
			t.Fatalf("borrow %s: %v", id, err)
		}
	}
	if err := acc.borrow("b4", now); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("fourth borrow: got %v, want ErrLimitReached", err)
	}
}

func TestBorrowSetsDueDate(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	if err := acc.borrow("b1", now); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got, want := acc.Loans["b1"].DueAt, now+15*day; got != want {
		t.Fatalf("due = %d, want %d", got, want)
	}
}

func TestStudentFineBlocksBorrow(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	loanDueAt(acc, "b1", now-day)

	if err := acc.borrow("b2", now); !errors.Is(err, ErrFineOutstanding) {
		t.Fatalf("got %v, want ErrFineOutstanding", err)
	}
	if _, created := acc.Loans["b2"]; created {
		t.Fatal("failed borrow must not create a loan")
	}
}

func TestFacultyOverdueBlock(t *testing.T) {
	now := int64(1_700_000_000)

	acc := NewAccount("f1", RoleFaculty)
	loanDueAt(acc, "b1", now-61*day)
	if err := acc.borrow("b2", now); !errors.Is(err, ErrOverdueBlock) {
		t.Fatalf("61 days overdue: got %v, want ErrOverdueBlock", err)
	}

	// Exactly 60 days is not "more than 60".
	acc = NewAccount("f1", RoleFaculty)
	loanDueAt(acc, "b1", now-60*day)
	if err := acc.borrow("b2", now); err != nil {
		t.Fatalf("60 days overdue: %v", err)
	}
}

func TestReturnUnknownBook(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	if _, err := acc.returnBook("nope", 0, 1_700_000_000); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("got %v, want ErrLoanNotFound", err)
	}
}

func TestReturnBlockedUntilFinePaid(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	loanDueAt(acc, "b1", now-5*day)

	_, err := acc.returnBook("b1", 0, now)
	var fineDue *FineDueError
	if !errors.As(err, &fineDue) {
		t.Fatalf("got %v, want FineDueError", err)
	}
	if fineDue.Amount != 50 {
		t.Fatalf("fine due = %d, want 50", fineDue.Amount)
	}
	if len(acc.Loans) != 1 || len(acc.History) != 0 {
		t.Fatal("rejected return must not mutate the account")
	}

	// Overpayment is rejected the same way.
	if _, err := acc.returnBook("b1", 60, now); !errors.As(err, &fineDue) {
		t.Fatalf("overpayment: got %v, want FineDueError", err)
	}

	entry, err := acc.returnBook("b1", 50, now)
	if err != nil {
		t.Fatalf("exact payment: %v", err)
	}
	if entry.ReturnedAt != now {
		t.Fatalf("returned at %d, want %d", entry.ReturnedAt, now)
	}
	if len(acc.Loans) != 0 || len(acc.History) != 1 {
		t.Fatalf("loans=%d history=%d after return, want 0/1", len(acc.Loans), len(acc.History))
	}
	if acc.TotalFine != 0 {
		t.Fatalf("total fine = %d after paid return, want 0", acc.TotalFine)
	}
}

func TestCleanReturnRejectsPayment(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	loanDueAt(acc, "b1", now+day)

	_, err := acc.returnBook("b1", 10, now)
	var mismatch *PaymentMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want PaymentMismatchError", err)
	}
	if _, err := acc.returnBook("b1", 0, now); err != nil {
		t.Fatalf("clean return: %v", err)
	}
}

func TestFacultyReturnIgnoresOverdue(t *testing.T) {
	acc := NewAccount("f1", RoleFaculty)
	now := int64(1_700_000_000)
	loanDueAt(acc, "b1", now-30*day)

	if _, err := acc.returnBook("b1", 0, now); err != nil {
		t.Fatalf("faculty overdue return: %v", err)
	}
}

func TestPayBookFine(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	rec := loanDueAt(acc, "b1", now-5*day)
	loanDueAt(acc, "b2", now-2*day)

	// Mismatch leaves everything unchanged.
	err := acc.payBookFine("b1", 49, now)
	var mismatch *PaymentMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want PaymentMismatchError", err)
	}
	if mismatch.Required != 50 {
		t.Fatalf("required = %d, want 50", mismatch.Required)
	}
	if rec.DueAt != now-5*day || rec.LastFinePaidAt != 0 {
		t.Fatal("rejected payment must not touch the loan")
	}

	if err := acc.payBookFine("b1", 50, now); err != nil {
		t.Fatalf("exact payment: %v", err)
	}
	if rec.Fine != 0 {
		t.Fatalf("fine = %d after payment, want 0", rec.Fine)
	}
	if got, want := rec.DueAt, now+15*day; got != want {
		t.Fatalf("reissued due = %d, want %d", got, want)
	}
	if rec.LastFinePaidAt != now {
		t.Fatalf("last fine paid = %d, want %d", rec.LastFinePaidAt, now)
	}
	// The other loan's fine remains owed.
	if acc.TotalFine != 20 {
		t.Fatalf("total fine = %d, want 20", acc.TotalFine)
	}
}

func TestPayFineRejectedWhenNoneDue(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	rec := loanDueAt(acc, "b1", now+day)

	// A loan that is not overdue owes nothing; paying must not buy a
	// fresh due date.
	if err := acc.payBookFine("b1", 0, now); !errors.Is(err, ErrNoFineDue) {
		t.Fatalf("got %v, want ErrNoFineDue", err)
	}
	if err := acc.payTotalFine(0, now); !errors.Is(err, ErrNoFineDue) {
		t.Fatalf("got %v, want ErrNoFineDue", err)
	}
	if rec.DueAt != now+day || rec.LastFinePaidAt != 0 {
		t.Fatal("rejected payment must not reissue the loan")
	}
}

func TestPayBookFineFaculty(t *testing.T) {
	acc := NewAccount("f1", RoleFaculty)
	loanDueAt(acc, "b1", 0)
	if err := acc.payBookFine("b1", 0, 1_700_000_000); !errors.Is(err, ErrRoleNotPermitted) {
		t.Fatalf("got %v, want ErrRoleNotPermitted", err)
	}
}

func TestPayTotalFineReissuesEveryLoan(t *testing.T) {
	acc := NewAccount("s1", RoleStudent)
	now := int64(1_700_000_000)
	r1 := loanDueAt(acc, "b1", now-5*day)
	r2 := loanDueAt(acc, "b2", now-2*day)
	r3 := loanDueAt(acc, "b3", now+day)

	if err := acc.payTotalFine(69, now); err == nil {
		t.Fatal("partial payment accepted")
	}
	if r1.DueAt != now-5*day {
		t.Fatal("rejected payment must not touch due dates")
	}

	if err := acc.payTotalFine(70, now); err != nil {
		t.Fatalf("exact payment: %v", err)
	}
	if acc.TotalFine != 0 {
		t.Fatalf("total fine = %d, want 0", acc.TotalFine)
	}
	for _, rec := range []*BorrowRecord{r1, r2, r3} {
		if rec.Fine != 0 {
			t.Fatalf("%s fine = %d, want 0", rec.BookID, rec.Fine)
		}
		if got, want := rec.DueAt, now+15*day; got != want {
			t.Fatalf("%s due = %d, want %d", rec.BookID, got, want)
		}
	}
}
