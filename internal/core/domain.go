package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

type (
	// Kind distinguishes money coming in from money going out.
	Kind string

	// TransactionRecord is one owner-scoped ledger entry. ID, OwnerID and
	// CreatedAt are assigned by the store at creation and never change.
	TransactionRecord struct {
		ID          string
		OwnerID     string
		Kind        Kind
		Title       string
		Amount      float64
		Description string
		// CreatedAt is normalized to UTC at the ingestion boundary; it is
		// the zero time when the stored timestamp was missing or unreadable.
		CreatedAt time.Time
	}

	// TransactionFields carries the mutable part of a record, used both for
	// creation and for last-write-wins edits.
	TransactionFields struct {
		Kind        Kind
		Title       string
		Amount      float64
		Description string
	}

	// UserProfile mirrors the identity account record into the document
	// store for display. Email doubles as the login credential and is not
	// independently editable from the profile.
	UserProfile struct {
		ID        string
		Name      string
		Email     string
		Age       int
		CreatedAt time.Time
	}

	// Registration is the input of the sign-up operation.
	Registration struct {
		Name     string
		Email    string
		Password string
		Age      int
	}
)

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")

	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrEmptyTitle    = errors.New("empty title")
	ErrLongTitle     = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount = errors.New("amount must be a positive finite number")
	ErrShortName     = errors.New("name too short (min 2 characters)")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrWeakPassword  = errors.New("password too short (min 6 characters)")
	ErrInvalidAge    = errors.New("age must be positive")
)

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense:
		return true
	default:
		return false
	}
}

func (f TransactionFields) Validate() error {
	if !f.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(f.Title) == "" {
		return ErrEmptyTitle
	}
	if len(f.Title) > 200 {
		return ErrLongTitle
	}
	if f.Amount <= 0 || math.IsNaN(f.Amount) || math.IsInf(f.Amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

func (r Registration) Validate() error {
	if len(strings.TrimSpace(r.Name)) < 2 {
		return ErrShortName
	}
	at := strings.Index(r.Email, "@")
	if at < 1 || at == len(r.Email)-1 || strings.ContainsAny(r.Email, " \t") {
		return ErrInvalidEmail
	}
	if len(r.Password) < 6 {
		return ErrWeakPassword
	}
	if r.Age <= 0 {
		return ErrInvalidAge
	}
	return nil
}

// IsValidation reports whether err is a client-input precondition failure,
// checked locally before any store call is made.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrInvalidKind, ErrEmptyTitle, ErrLongTitle, ErrInvalidAmount,
		ErrShortName, ErrInvalidEmail, ErrWeakPassword, ErrInvalidAge,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// EpochMillis converts a normalized timestamp to milliseconds since the Unix
// epoch for the wire. The zero time maps to 0.
func EpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromEpochMillis is the inverse of EpochMillis; 0 maps back to the zero time.
func FromEpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
