package session

import (
	"strings"

	"example.com/sia/internal/domain"
)

// View is an immutable copy of the controller state for the presentation layer.
type View struct {
	Activity    *domain.Activity
	Items       []domain.ActivityItem
	Answers     []domain.ActivityAnswer
	CurrentItem *domain.ActivityItem
	Feedback    *string
	Hints       []domain.Hint
	Starting    bool
	Submitting  bool
	Completed   bool
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Starting:  c.starting,
		Completed: c.completed,
		Hints:     append([]domain.Hint(nil), c.hints...),
	}
	if c.details != nil {
		activity := c.details.Activity
		activity.Status = c.status
		v.Activity = &activity
		v.Items = append([]domain.ActivityItem(nil), c.details.Items...)
		v.Answers = append([]domain.ActivityAnswer(nil), c.details.Answers...)
	}
	if c.current != nil {
		item := *c.current
		v.CurrentItem = &item
		v.Submitting = c.submitting[item.ID]
	}
	if c.feedback != nil {
		msg := *c.feedback
		v.Feedback = &msg
	}
	return v
}

// Pending reports whether a call affecting the view is outstanding.
func (v View) Pending() bool { return v.Starting || v.Submitting }

// CurrentTerminal reports whether the current item accepts no more answers.
func (v View) CurrentTerminal() bool {
	return v.CurrentItem != nil && v.CurrentItem.Status.Terminal()
}

// TerminalNotice describes a terminal current item, e.g. "This activity item is skip.".
func (v View) TerminalNotice() string {
	if !v.CurrentTerminal() {
		return ""
	}
	return "This activity item is " + strings.ToLower(string(v.CurrentItem.Status)) + "."
}

// HintText renders a hint for display.
func HintText(h domain.Hint) string {
	if h.ActivityType() == domain.ItemTypeFreeText {
		return "Consider your wording."
	}
	return "Hint available."
}
