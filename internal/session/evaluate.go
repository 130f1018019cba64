package session

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"example.com/sia/internal/domain"
)

// Evaluate reports whether text answers item. Free-text answers match the expected answer
// ignoring case, Unicode normalisation form and runs of whitespace.
func Evaluate(item domain.ActivityItem, text string) bool {
	switch cfg := item.QuestionEvaluationConfig.(type) {
	case domain.FreeTextEvaluationConfig:
		return canonical(text) == canonical(cfg.ExpectedAnswer)
	default:
		return false
	}
}

func canonical(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
