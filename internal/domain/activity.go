// Package domain defines the activity, item, answer and profile records exchanged with the
// remote activity service.
package domain

import "time"

// ActivityStatus is the lifecycle status of an activity. The remote service owns transitions.
type ActivityStatus string

const (
	ActivityStatusIdle      ActivityStatus = "IDLE"
	ActivityStatusOngoing   ActivityStatus = "ONGOING"
	ActivityStatusCompleted ActivityStatus = "COMPLETED"
)

// Valid reports whether s is a known activity status.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusIdle, ActivityStatusOngoing, ActivityStatusCompleted:
		return true
	}
	return false
}

// ItemStatus is the status of a single activity item.
type ItemStatus string

const (
	ItemStatusNotTerminated  ItemStatus = "NOT_TERMINATED"
	ItemStatusRetriesExhaust ItemStatus = "RETRIES_EXHAUST"
	ItemStatusSkip           ItemStatus = "SKIP"
	ItemStatusSuccess        ItemStatus = "SUCCESS"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusNotTerminated, ItemStatusRetriesExhaust, ItemStatusSkip, ItemStatusSuccess:
		return true
	}
	return false
}

// Terminal reports whether no further answers are accepted for the item.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusRetriesExhaust || s == ItemStatusSkip
}

// Activity is a unit of work assigned to a user, composed of ordered items.
type Activity struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Status         ActivityStatus `json:"status"`
	GeneratedTitle *string        `json:"generated_title"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ActivityItem is one question within an activity.
type ActivityItem struct {
	ID                       string           `json:"id"`
	ActivityID               string           `json:"activity_id"`
	ActivityType             ItemType         `json:"activity_type"`
	MaxRetries               int              `json:"max_retries"`
	AttemptedRetries         int              `json:"attempted_retries"`
	Status                   ItemStatus       `json:"status"`
	CreatedAt                time.Time        `json:"created_at"`
	QuestionConfig           QuestionConfig   `json:"question_config"`
	QuestionEvaluationConfig EvaluationConfig `json:"question_evaluation_config"`
}

// Prompt returns the question text regardless of the item variant.
func (i ActivityItem) Prompt() string {
	if i.QuestionConfig == nil {
		return ""
	}
	return i.QuestionConfig.QuestionPrompt()
}

// ActivityAnswer is an immutable attempt record.
type ActivityAnswer struct {
	ID             string    `json:"id"`
	ActivityItemID string    `json:"activity_item_id"`
	Skip           bool      `json:"skip"`
	IsCorrect      bool      `json:"is_correct"`
	Answer         Answer    `json:"answer"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

// ActivityDetails aggregates an activity with its items and answers.
type ActivityDetails struct {
	Activity Activity         `json:"activity"`
	Items    []ActivityItem   `json:"activity_items"`
	Answers  []ActivityAnswer `json:"activity_answers"`
}

// Item looks up an item of the aggregate by id.
func (d ActivityDetails) Item(id string) (ActivityItem, bool) {
	for _, item := range d.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ActivityItem{}, false
}

// AnswerCreate is the body of an answer submission.
type AnswerCreate struct {
	ActivityItemID string `json:"activity_item_id"`
	Skip           bool   `json:"skip"`
	IsCorrect      bool   `json:"is_correct"`
	Answer         Answer `json:"answer"`
}

// AnswerResponse is the transient outcome of an answer submission.
type AnswerResponse struct {
	ActivityType     ItemType `json:"activity_type"`
	NextItemID       *string  `json:"next_item_id"`
	SuccessVerdict   bool     `json:"success_verdict"`
	ActivityComplete bool     `json:"activity_complete"`
	Hints            []Hint   `json:"hints"`
}
