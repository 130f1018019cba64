package schema

import (
	"encoding/json"
	"fmt"

	"example.com/sia/internal/domain"
)

// DecodeActivity validates a single activity payload.
func DecodeActivity(data []byte) (domain.Activity, error) {
	v, err := parse(data)
	if err != nil {
		return domain.Activity{}, err
	}
	return activity(v, "")
}

// DecodeActivities validates a list of activities.
func DecodeActivities(data []byte) ([]domain.Activity, error) {
	v, err := parse(data)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fail("", "expected array, got %s", kind(v))
	}
	out := make([]domain.Activity, 0, len(items))
	for i, raw := range items {
		a, err := activity(raw, index("", i))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeActivityDetails validates the aggregate returned by the details endpoint.
func DecodeActivityDetails(data []byte) (domain.ActivityDetails, error) {
	v, err := parse(data)
	if err != nil {
		return domain.ActivityDetails{}, err
	}
	o, err := asObject(v, "")
	if err != nil {
		return domain.ActivityDetails{}, err
	}

	var details domain.ActivityDetails
	rawActivity, err := o.required("activity")
	if err != nil {
		return details, err
	}
	if details.Activity, err = activity(rawActivity, o.at("activity")); err != nil {
		return details, err
	}

	rawItems, err := o.array("activity_items", false)
	if err != nil {
		return details, err
	}
	details.Items = make([]domain.ActivityItem, 0, len(rawItems))
	for i, raw := range rawItems {
		it, err := item(raw, index(o.at("activity_items"), i))
		if err != nil {
			return details, err
		}
		details.Items = append(details.Items, it)
	}

	rawAnswers, err := o.array("activity_answers", false)
	if err != nil {
		return details, err
	}
	details.Answers = make([]domain.ActivityAnswer, 0, len(rawAnswers))
	for i, raw := range rawAnswers {
		ans, err := activityAnswer(raw, index(o.at("activity_answers"), i))
		if err != nil {
			return details, err
		}
		details.Answers = append(details.Answers, ans)
	}
	return details, nil
}

// DecodeActivityItem validates a single item payload.
func DecodeActivityItem(data []byte) (domain.ActivityItem, error) {
	v, err := parse(data)
	if err != nil {
		return domain.ActivityItem{}, err
	}
	return item(v, "")
}

// DecodeAnswerResponse validates the outcome of an answer submission.
func DecodeAnswerResponse(data []byte) (domain.AnswerResponse, error) {
	var resp domain.AnswerResponse
	v, err := parse(data)
	if err != nil {
		return resp, err
	}
	o, err := asObject(v, "")
	if err != nil {
		return resp, err
	}
	if resp.ActivityType, err = o.tag(); err != nil {
		return resp, err
	}
	if resp.NextItemID, err = o.nullableStr("next_item_id"); err != nil {
		return resp, err
	}
	if resp.SuccessVerdict, err = o.boolean("success_verdict"); err != nil {
		return resp, err
	}
	if resp.ActivityComplete, err = o.boolean("activity_complete"); err != nil {
		return resp, err
	}
	if resp.Hints, err = hints(o, "hints"); err != nil {
		return resp, err
	}
	return resp, nil
}

// DecodeAnswerCreate validates an answer submission body.
func DecodeAnswerCreate(data []byte) (domain.AnswerCreate, error) {
	var create domain.AnswerCreate
	v, err := parse(data)
	if err != nil {
		return create, err
	}
	o, err := asObject(v, "")
	if err != nil {
		return create, err
	}
	if create.ActivityItemID, err = o.id("activity_item_id"); err != nil {
		return create, err
	}
	if create.Skip, err = o.booleanOr("skip", false); err != nil {
		return create, err
	}
	if create.IsCorrect, err = o.booleanOr("is_correct", false); err != nil {
		return create, err
	}
	rawAnswer, err := o.required("answer")
	if err != nil {
		return create, err
	}
	if create.Answer, err = answer(rawAnswer, o.at("answer")); err != nil {
		return create, err
	}
	return create, nil
}

// DecodeProfile validates a profile payload.
func DecodeProfile(data []byte) (domain.Profile, error) {
	var p domain.Profile
	v, err := parse(data)
	if err != nil {
		return p, err
	}
	o, err := asObject(v, "")
	if err != nil {
		return p, err
	}
	if p.UserID, err = o.id("user_id"); err != nil {
		return p, err
	}
	rawMeta, err := o.required("metadata")
	if err != nil {
		return p, err
	}
	if p.Metadata, err = patientMetadata(rawMeta, o.at("metadata")); err != nil {
		return p, err
	}
	return p, nil
}

// DecodePatientMetadata validates a metadata payload such as the body of a profile save.
func DecodePatientMetadata(data []byte) (domain.PatientMetadata, error) {
	v, err := parse(data)
	if err != nil {
		return domain.PatientMetadata{}, err
	}
	return patientMetadata(v, "")
}

// EncodeAnswerCreate serialises an outgoing answer and validates the result before it is sent.
func EncodeAnswerCreate(create domain.AnswerCreate) ([]byte, error) {
	if create.Answer == nil {
		return nil, fail("answer", "required field missing")
	}
	data, err := json.Marshal(create)
	if err != nil {
		return nil, fmt.Errorf("encode answer: %w", err)
	}
	if _, err := DecodeAnswerCreate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// EncodePatientMetadata serialises outgoing profile metadata and validates the result.
func EncodePatientMetadata(meta domain.PatientMetadata) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := DecodePatientMetadata(data); err != nil {
		return nil, err
	}
	return data, nil
}

func activity(v any, path string) (domain.Activity, error) {
	var a domain.Activity
	o, err := asObject(v, path)
	if err != nil {
		return a, err
	}
	if a.ID, err = o.id("id"); err != nil {
		return a, err
	}
	if a.UserID, err = o.id("user_id"); err != nil {
		return a, err
	}
	status, err := o.str("status")
	if err != nil {
		return a, err
	}
	a.Status = domain.ActivityStatus(status)
	if !a.Status.Valid() {
		return a, fail(o.at("status"), "unknown activity status %q", status)
	}
	if a.GeneratedTitle, err = o.nullableStr("generated_title"); err != nil {
		return a, err
	}
	if a.CreatedAt, err = o.datetime("created_at"); err != nil {
		return a, err
	}
	return a, nil
}

func item(v any, path string) (domain.ActivityItem, error) {
	var it domain.ActivityItem
	o, err := asObject(v, path)
	if err != nil {
		return it, err
	}
	if it.ActivityType, err = o.tag(); err != nil {
		return it, err
	}
	if it.ID, err = o.id("id"); err != nil {
		return it, err
	}
	if it.ActivityID, err = o.id("activity_id"); err != nil {
		return it, err
	}
	if it.MaxRetries, err = o.integerOr("max_retries", 2); err != nil {
		return it, err
	}
	if it.AttemptedRetries, err = o.integerOr("attempted_retries", 0); err != nil {
		return it, err
	}
	status, err := o.str("status")
	if err != nil {
		return it, err
	}
	it.Status = domain.ItemStatus(status)
	if !it.Status.Valid() {
		return it, fail(o.at("status"), "unknown item status %q", status)
	}
	if it.CreatedAt, err = o.datetime("created_at"); err != nil {
		return it, err
	}

	rawQuestion, err := o.required("question_config")
	if err != nil {
		return it, err
	}
	if it.QuestionConfig, err = questionConfig(rawQuestion, o.at("question_config")); err != nil {
		return it, err
	}
	rawEval, err := o.required("question_evaluation_config")
	if err != nil {
		return it, err
	}
	if it.QuestionEvaluationConfig, err = evaluationConfig(rawEval, o.at("question_evaluation_config")); err != nil {
		return it, err
	}
	return it, nil
}

func activityAnswer(v any, path string) (domain.ActivityAnswer, error) {
	var a domain.ActivityAnswer
	o, err := asObject(v, path)
	if err != nil {
		return a, err
	}
	if a.ID, err = o.id("id"); err != nil {
		return a, err
	}
	if a.ActivityItemID, err = o.id("activity_item_id"); err != nil {
		return a, err
	}
	if a.Skip, err = o.booleanOr("skip", false); err != nil {
		return a, err
	}
	if a.IsCorrect, err = o.booleanOr("is_correct", false); err != nil {
		return a, err
	}
	rawAnswer, err := o.required("answer")
	if err != nil {
		return a, err
	}
	if a.Answer, err = answer(rawAnswer, o.at("answer")); err != nil {
		return a, err
	}
	if a.AttemptedAt, err = o.datetime("attempted_at"); err != nil {
		return a, err
	}
	return a, nil
}

func questionConfig(v any, path string) (domain.QuestionConfig, error) {
	o, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	t, err := o.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case domain.ItemTypeFreeText:
		var c domain.FreeTextQuestionConfig
		if c.Prompt, err = o.str("prompt"); err != nil {
			return nil, err
		}
		if c.Order, err = o.integerOr("order", 0); err != nil {
			return nil, err
		}
		if c.Hints, err = hints(o, "hints"); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fail(o.at("activity_type"), "unknown discriminant %q", t)
}

func evaluationConfig(v any, path string) (domain.EvaluationConfig, error) {
	o, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	t, err := o.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case domain.ItemTypeFreeText:
		expected, err := o.str("expected_answer")
		if err != nil {
			return nil, err
		}
		return domain.FreeTextEvaluationConfig{ExpectedAnswer: expected}, nil
	}
	return nil, fail(o.at("activity_type"), "unknown discriminant %q", t)
}

// hints decodes an optional hint list; a missing field is an empty list.
func hints(o object, name string) ([]domain.Hint, error) {
	raw, err := o.array(name, true)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Hint, 0, len(raw))
	for i, entry := range raw {
		h, err := hint(entry, index(o.at(name), i))
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func hint(v any, path string) (domain.Hint, error) {
	o, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	t, err := o.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case domain.ItemTypeFreeText:
		return domain.FreeTextHint{}, nil
	}
	return nil, fail(o.at("activity_type"), "unknown discriminant %q", t)
}

func answer(v any, path string) (domain.Answer, error) {
	o, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	t, err := o.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case domain.ItemTypeFreeText:
		text, err := o.str("text")
		if err != nil {
			return nil, err
		}
		return domain.FreeTextAnswer{Text: text}, nil
	}
	return nil, fail(o.at("activity_type"), "unknown discriminant %q", t)
}

func patientMetadata(v any, path string) (domain.PatientMetadata, error) {
	var m domain.PatientMetadata
	o, err := asObject(v, path)
	if err != nil {
		return m, err
	}
	if m.PatientName, err = o.str("patient_name"); err != nil {
		return m, err
	}
	if m.PatientAge, err = o.integer("patient_age"); err != nil {
		return m, err
	}
	if m.City, err = o.str("city"); err != nil {
		return m, err
	}
	if m.Language, err = o.str("language"); err != nil {
		return m, err
	}
	if m.Diagnosis, err = o.str("diagnosis"); err != nil {
		return m, err
	}
	nullable := []struct {
		name   string
		target **string
	}{
		{"patient_address", &m.PatientAddress},
		{"state", &m.State},
		{"country", &m.Country},
		{"profession", &m.Profession},
		{"education", &m.Education},
	}
	for _, f := range nullable {
		if *f.target, err = o.nullableStr(f.name); err != nil {
			return m, err
		}
	}
	return m, nil
}

// ValidateAnswerCreate checks an outgoing answer without keeping the encoded body.
func ValidateAnswerCreate(create domain.AnswerCreate) error {
	_, err := EncodeAnswerCreate(create)
	return err
}

// ValidatePatientMetadata checks outgoing profile metadata.
func ValidatePatientMetadata(meta domain.PatientMetadata) error {
	_, err := EncodePatientMetadata(meta)
	return err
}
