package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/sia/internal/domain"
)

func TestEvaluate(t *testing.T) {
	item := domain.ActivityItem{QuestionEvaluationConfig: domain.FreeTextEvaluationConfig{ExpectedAnswer: "Café  au lait"}}

	require.True(t, Evaluate(item, "café au lait"))
	require.True(t, Evaluate(item, "  CAFÉ AU\tLAIT "))
	require.True(t, Evaluate(item, "cafe\u0301 au lait"))
	require.False(t, Evaluate(item, "cafe au lait"))
	require.False(t, Evaluate(domain.ActivityItem{}, "anything"))
}

func TestTerminalNotice(t *testing.T) {
	v := View{CurrentItem: &domain.ActivityItem{Status: domain.ItemStatusRetriesExhaust}}
	require.True(t, v.CurrentTerminal())
	require.Equal(t, "This activity item is retries_exhaust.", v.TerminalNotice())

	v.CurrentItem.Status = domain.ItemStatusNotTerminated
	require.Empty(t, v.TerminalNotice())
}
