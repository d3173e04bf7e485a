package repository

import (
	"fmt"
	"time"
)

// DateLayout is how posted and rule dates are stored.
const DateLayout = "2006-01-02"

// TransactionType classifies a transaction.
type TransactionType string

const (
	Debit       TransactionType = "Debit"
	Credit      TransactionType = "Credit"
	DirectDebit TransactionType = "Direct Debit"
)

// Valid reports whether t is one of the stored transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Debit, Credit, DirectDebit:
		return true
	}
	return false
}

// Account represents an account row.
type Account struct {
	Name     string  `json:"name"`
	Alias    *string `json:"alias,omitempty"`
	Selected bool    `json:"selected"`
}

// DisplayName is the alias when set, otherwise the name.
func (a Account) DisplayName() string {
	if a.Alias != nil && *a.Alias != "" {
		return *a.Alias
	}
	return a.Name
}

// Transaction represents a transaction row.
type Transaction struct {
	ID          int64
	AccountName string
	PostedDate  time.Time
	Description string
	Debit       float64
	Credit      float64
	Balance     float64
	Type        TransactionType
	Currency    string
}

// Amount is the larger of debit and credit.
func (t Transaction) Amount() float64 {
	return max(t.Debit, t.Credit)
}

// TagRule represents a rule. Nil fields are unset constraints.
type TagRule struct {
	ID                  int64            `json:"id"`
	Tag                 string           `json:"tag"`
	HumanReadable       string           `json:"human_readable"`
	TransactionID       *int64           `json:"transaction_id,omitempty"`
	DescriptionContains *string          `json:"description_contains,omitempty"`
	TransactionType     *TransactionType `json:"transaction_type,omitempty"`
	AmountMin           *float64         `json:"amount_min,omitempty"`
	AmountMax           *float64         `json:"amount_max,omitempty"`
	FromDate            *time.Time       `json:"from_date,omitempty"`
	ToDate              *time.Time       `json:"to_date,omitempty"`
}

// Pinned reports whether the rule targets a single transaction.
func (r TagRule) Pinned() bool { return r.TransactionID != nil }

// Assignment is a derived (transaction, rule) tagging fact.
type Assignment struct {
	TransactionID int64
	TagRuleID     int64
}

func (a Assignment) String() string {
	return fmt.Sprintf("(%d,%d)", a.TransactionID, a.TagRuleID)
}

// UndoStep is one recorded command.
type UndoStep struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// UndoAction is one stored inverse action of a step.
type UndoAction struct {
	StepID  int64
	Seq     int
	Kind    string
	Payload []byte
}
