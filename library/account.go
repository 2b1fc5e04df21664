package library

// Fine and overdue rules. Dates are whole-second unix timestamps, a day
// is exactly 86400 seconds and partial days never count.
const (
	FineRatePerDay     int64 = 10
	secondsPerDay      int64 = 86400
	facultyOverdueDays int64 = 60
)

func daysOverdue(dueAt, now int64) int64 {
	// Integer division truncates toward zero, so 86399 seconds past due
	// is still zero days.
	return (now - dueAt) / secondsPerDay
}

// UpdateFines recomputes every per-loan fine and the total as of now.
// Fines are a pure function of (loans, now); the cached fields exist
// for display and persistence only. Faculty accounts never accrue.
func (a *Account) UpdateFines(now int64) {
	if a.Faculty {
		for _, rec := range a.Loans {
			rec.Fine = 0
		}
		a.TotalFine = 0
		return
	}
	var total int64
	for _, rec := range a.Loans {
		if d := daysOverdue(rec.DueAt, now); d > 0 {
			rec.Fine = d * FineRatePerDay
		} else {
			rec.Fine = 0
		}
		total += rec.Fine
	}
	a.TotalFine = total
}

func (a *Account) loanSeconds() int64 {
	return int64(a.MaxDays) * secondsPerDay
}

// canBorrow checks the account-side borrow preconditions: the loan
// limit, the student fine block and the faculty 60-day overdue block.
func (a *Account) canBorrow(now int64) error {
	a.UpdateFines(now)
	if len(a.Loans) >= a.MaxBooks {
		return ErrLimitReached
	}
	if a.Faculty {
		for _, rec := range a.Loans {
			if daysOverdue(rec.DueAt, now) > facultyOverdueDays {
				return ErrOverdueBlock
			}
		}
	} else if a.TotalFine > 0 {
		return ErrFineOutstanding
	}
	return nil
}

// borrow creates the loan record with due = now + loan period. The
// Directory has already checked that the book exists and is available.
func (a *Account) borrow(bookID string, now int64) error {
	if err := a.canBorrow(now); err != nil {
		return err
	}
	if _, held := a.Loans[bookID]; held {
		// One record per book per account; an already-held book is
		// unavailable by definition.
		return ErrBookUnavailable
	}
	a.Loans[bookID] = &BorrowRecord{
		BookID: bookID,
		DueAt:  now + a.loanSeconds(),
	}
	return nil
}

// returnBook completes a loan. If a fine is due the payment must equal
// it exactly, otherwise the call fails with FineDueError and nothing
// changes. A payment on a loan with no fine due is a mismatch.
func (a *Account) returnBook(bookID string, payment, now int64) (HistoryEntry, error) {
	rec, ok := a.Loans[bookID]
	if !ok {
		return HistoryEntry{}, ErrLoanNotFound
	}
	a.UpdateFines(now)
	if !a.Faculty && rec.Fine > 0 {
		if payment != rec.Fine {
			return HistoryEntry{}, &FineDueError{BookID: bookID, Amount: rec.Fine}
		}
		a.TotalFine -= rec.Fine
		rec.Fine = 0
	} else if payment != 0 {
		return HistoryEntry{}, &PaymentMismatchError{Required: 0, Paid: payment}
	}
	delete(a.Loans, bookID)
	entry := HistoryEntry{BookID: bookID, ReturnedAt: now}
	a.History = append(a.History, entry)
	return entry, nil
}

// payBookFine pays the fine on a single loan. Paying does not return
// the book: the loan is reissued with due = now + loan period.
func (a *Account) payBookFine(bookID string, amount, now int64) error {
	if a.Faculty {
		return ErrRoleNotPermitted
	}
	rec, ok := a.Loans[bookID]
	if !ok {
		return ErrLoanNotFound
	}
	a.UpdateFines(now)
	if rec.Fine == 0 {
		// Payment without a fine would reissue the loan for free.
		return ErrNoFineDue
	}
	if amount != rec.Fine {
		return &PaymentMismatchError{Required: rec.Fine, Paid: amount}
	}
	a.TotalFine -= rec.Fine
	rec.Fine = 0
	rec.DueAt = now + a.loanSeconds()
	rec.LastFinePaidAt = now
	return nil
}

// payTotalFine pays the account's whole fine at once and reissues every
// current loan with a fresh due date.
func (a *Account) payTotalFine(amount, now int64) error {
	if a.Faculty {
		return ErrRoleNotPermitted
	}
	a.UpdateFines(now)
	if a.TotalFine == 0 {
		return ErrNoFineDue
	}
	if amount != a.TotalFine {
		return &PaymentMismatchError{Required: a.TotalFine, Paid: amount}
	}
	for _, rec := range a.Loans {
		rec.Fine = 0
		rec.DueAt = now + a.loanSeconds()
		rec.LastFinePaidAt = now
	}
	a.TotalFine = 0
	return nil
}
