package domain

import "encoding/json"

// ItemType discriminates the polymorphic payloads of an item.
type ItemType string

const (
	ItemTypeFreeText ItemType = "FREE_TEXT"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemTypeFreeText
}

// QuestionConfig is the tagged union of question configurations.
type QuestionConfig interface {
	ActivityType() ItemType
	QuestionPrompt() string
	QuestionHints() []Hint
	QuestionOrder() int
	isQuestionConfig()
}

// EvaluationConfig is the tagged union of evaluation configurations.
type EvaluationConfig interface {
	ActivityType() ItemType
	isEvaluationConfig()
}

// Hint is the tagged union of hints surfaced after an incorrect attempt.
type Hint interface {
	ActivityType() ItemType
	isHint()
}

// Answer is the tagged union of submitted answer payloads.
type Answer interface {
	ActivityType() ItemType
	isAnswer()
}

// FreeTextQuestionConfig asks a free-text question.
type FreeTextQuestionConfig struct {
	Order  int
	Hints  []Hint
	Prompt string
}

func (FreeTextQuestionConfig) ActivityType() ItemType { return ItemTypeFreeText }

func (c FreeTextQuestionConfig) QuestionPrompt() string { return c.Prompt }

func (c FreeTextQuestionConfig) QuestionHints() []Hint { return c.Hints }

func (c FreeTextQuestionConfig) QuestionOrder() int { return c.Order }

func (FreeTextQuestionConfig) isQuestionConfig() {}

func (c FreeTextQuestionConfig) MarshalJSON() ([]byte, error) {
	hints := c.Hints
	if hints == nil {
		hints = []Hint{}
	}
	return json.Marshal(struct {
		ActivityType ItemType `json:"activity_type"`
		Order        int      `json:"order"`
		Hints        []Hint   `json:"hints"`
		Prompt       string   `json:"prompt"`
	}{ItemTypeFreeText, c.Order, hints, c.Prompt})
}

// FreeTextEvaluationConfig holds the expected answer of a free-text question.
type FreeTextEvaluationConfig struct {
	ExpectedAnswer string
}

func (FreeTextEvaluationConfig) ActivityType() ItemType { return ItemTypeFreeText }

func (FreeTextEvaluationConfig) isEvaluationConfig() {}

func (c FreeTextEvaluationConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActivityType   ItemType `json:"activity_type"`
		ExpectedAnswer string   `json:"expected_answer"`
	}{ItemTypeFreeText, c.ExpectedAnswer})
}

// FreeTextHint carries only its discriminant.
type FreeTextHint struct{}

func (FreeTextHint) ActivityType() ItemType { return ItemTypeFreeText }

func (FreeTextHint) isHint() {}

func (FreeTextHint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActivityType ItemType `json:"activity_type"`
	}{ItemTypeFreeText})
}

// FreeTextAnswer is a free-text attempt.
type FreeTextAnswer struct {
	Text string
}

func (FreeTextAnswer) ActivityType() ItemType { return ItemTypeFreeText }

func (FreeTextAnswer) isAnswer() {}

func (a FreeTextAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActivityType ItemType `json:"activity_type"`
		Text         string   `json:"text"`
	}{ItemTypeFreeText, a.Text})
}

var (
	_ QuestionConfig   = FreeTextQuestionConfig{}
	_ EvaluationConfig = FreeTextEvaluationConfig{}
	_ Hint             = FreeTextHint{}
	_ Answer           = FreeTextAnswer{}
)
