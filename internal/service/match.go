package service

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jask/tallybook/internal/database/repository"
)

// RuleMatches reports whether rule r selects transaction t. Unset constraints
// always pass; a set but empty description substring matches every
// description, including the empty one.
func RuleMatches(r repository.TagRule, t repository.Transaction) bool {
	if r.TransactionID != nil && *r.TransactionID != t.ID {
		return false
	}
	if r.TransactionType != nil && !containsFold(string(t.Type), string(*r.TransactionType)) {
		return false
	}
	if r.DescriptionContains != nil && !containsFold(t.Description, *r.DescriptionContains) {
		return false
	}
	amount := t.Amount()
	if r.AmountMin != nil && amount < *r.AmountMin {
		return false
	}
	if r.AmountMax != nil && amount >= *r.AmountMax {
		return false
	}
	if r.FromDate != nil && t.PostedDate.Before(*r.FromDate) {
		return false
	}
	if r.ToDate != nil && t.PostedDate.After(*r.ToDate) {
		return false
	}
	return true
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(fold(s), fold(prefix))
}
