package model

import (
	"fmt"
	"time"
)

// Period is one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parsing period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// Before reports whether p is earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// LedgerKey identifies one account-period: a customer's statements with one
// bank for one calendar month, across any number of card accounts.
type LedgerKey struct {
	CustomerID string
	Bank       string
	Period     Period
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CustomerID, k.Bank, k.Period)
}

// Prev returns the same customer and bank one month earlier.
func (k LedgerKey) Prev() LedgerKey {
	return LedgerKey{CustomerID: k.CustomerID, Bank: k.Bank, Period: k.Period.Prev()}
}
