package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/sia/internal/domain"
)

const (
	activityID = "6f1c1f7e-3d43-4c53-9d43-1f9f5a2b7c01"
	userID     = "0b4c7d56-1e9a-4d0e-8a39-5b0f0c7e2d11"
	itemID     = "9a2e4f10-7c3b-4b8e-a1d2-3c4d5e6f7a80"
	answerID   = "c3d2e1f0-1a2b-4c3d-8e4f-5a6b7c8d9e0f"
)

const itemJSON = `{
  "activity_type": "FREE_TEXT",
  "activity_id": "` + activityID + `",
  "status": "NOT_TERMINATED",
  "id": "` + itemID + `",
  "created_at": "2025-03-01T10:00:00.123456",
  "question_config": {"activity_type": "FREE_TEXT", "prompt": "What is the capital of France?", "hints": [{"activity_type": "FREE_TEXT"}]},
  "question_evaluation_config": {"activity_type": "FREE_TEXT", "expected_answer": "Paris"}
}`

func TestDecodeActivityDetails(t *testing.T) {
	payload := []byte(`{
  "activity": {"id": "` + activityID + `", "user_id": "` + userID + `", "status": "IDLE", "generated_title": null, "created_at": "2025-03-01T10:00:00Z"},
  "activity_items": [` + itemJSON + `],
  "activity_answers": [{
    "id": "` + answerID + `",
    "activity_item_id": "` + itemID + `",
    "is_correct": true,
    "answer": {"activity_type": "FREE_TEXT", "text": "Paris"},
    "attempted_at": "2025-03-01T10:05:00+02:00"
  }]
}`)

	details, err := DecodeActivityDetails(payload)
	require.NoError(t, err)

	require.Equal(t, domain.ActivityStatusIdle, details.Activity.Status)
	require.Nil(t, details.Activity.GeneratedTitle)
	require.Len(t, details.Items, 1)

	it := details.Items[0]
	require.Equal(t, 2, it.MaxRetries)
	require.Equal(t, 0, it.AttemptedRetries)
	require.Equal(t, "What is the capital of France?", it.Prompt())
	require.Equal(t, time.Date(2025, time.March, 1, 10, 0, 0, 123456000, time.UTC), it.CreatedAt)
	cfg, ok := it.QuestionConfig.(domain.FreeTextQuestionConfig)
	require.True(t, ok)
	require.Equal(t, 0, cfg.Order)
	require.Equal(t, []domain.Hint{domain.FreeTextHint{}}, cfg.Hints)
	require.Equal(t, domain.FreeTextEvaluationConfig{ExpectedAnswer: "Paris"}, it.QuestionEvaluationConfig)

	require.Len(t, details.Answers, 1)
	ans := details.Answers[0]
	require.False(t, ans.Skip)
	require.True(t, ans.IsCorrect)
	require.Equal(t, domain.FreeTextAnswer{Text: "Paris"}, ans.Answer)
	require.Equal(t, time.Date(2025, time.March, 1, 8, 5, 0, 0, time.UTC), ans.AttemptedAt)
}

func TestDecodeActivityRejectsMissingStatus(t *testing.T) {
	_, err := DecodeActivity([]byte(`{"id": "` + activityID + `", "user_id": "` + userID + `", "generated_title": "x", "created_at": "2025-03-01T10:00:00Z"}`))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "status", verr.Path)
}

func TestDecodeActivityDetailsReportsNestedPath(t *testing.T) {
	payload := []byte(`{
  "activity": {"id": "` + activityID + `", "user_id": "` + userID + `", "status": "ONGOING", "generated_title": null, "created_at": "2025-03-01T10:00:00Z"},
  "activity_items": [` + itemJSON + `, {
    "activity_type": "FREE_TEXT",
    "activity_id": "` + activityID + `",
    "status": "NOT_TERMINATED",
    "id": "` + itemID + `",
    "created_at": "2025-03-01T10:00:00Z",
    "question_config": {"activity_type": "MULTIPLE_CHOICE", "prompt": "?"},
    "question_evaluation_config": {"activity_type": "FREE_TEXT", "expected_answer": "4"}
  }],
  "activity_answers": []
}`)

	_, err := DecodeActivityDetails(payload)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "activity_items[1].question_config.activity_type", verr.Path)
	require.Contains(t, verr.Reason, "unknown discriminant")
}

func TestDiscriminantIsNeverDefaulted(t *testing.T) {
	cases := map[string]string{
		"missing tag":  `{"activity_item_id": "` + itemID + `", "answer": {"text": "Paris"}}`,
		"unknown tag":  `{"activity_item_id": "` + itemID + `", "answer": {"activity_type": "AUDIO", "text": "Paris"}}`,
		"non-string":   `{"activity_item_id": "` + itemID + `", "answer": {"activity_type": 1, "text": "Paris"}}`,
		"empty string": `{"activity_item_id": "` + itemID + `", "answer": {"activity_type": "", "text": "Paris"}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAnswerCreate([]byte(payload))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, "answer.activity_type", verr.Path)
		})
	}
}

func TestDecodeAnswerResponse(t *testing.T) {
	resp, err := DecodeAnswerResponse([]byte(`{"activity_type": "FREE_TEXT", "next_item_id": null, "success_verdict": false, "activity_complete": false}`))
	require.NoError(t, err)
	require.Nil(t, resp.NextItemID)
	require.Empty(t, resp.Hints)

	_, err = DecodeAnswerResponse([]byte(`{"activity_type": "FREE_TEXT", "success_verdict": true, "activity_complete": false, "hints": []}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "next_item_id", verr.Path)

	_, err = DecodeAnswerResponse([]byte(`{"activity_type": "FREE_TEXT", "next_item_id": null, "success_verdict": "yes", "activity_complete": false}`))
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "success_verdict", verr.Path)
}

func TestDecodeProfileKeepsNulls(t *testing.T) {
	payload := []byte(`{"user_id": "` + userID + `", "metadata": {
  "patient_name": "Ada", "patient_age": 71, "city": "Pune", "language": "Marathi", "diagnosis": "Aphasia",
  "patient_address": null, "state": "MH", "country": null, "profession": null, "education": "BSc"
}}`)

	p, err := DecodeProfile(payload)
	require.NoError(t, err)
	require.Equal(t, 71, p.Metadata.PatientAge)
	require.Nil(t, p.Metadata.PatientAddress)
	require.Equal(t, "MH", *p.Metadata.State)
	require.Nil(t, p.Metadata.Country)
	require.Equal(t, "BSc", *p.Metadata.Education)

	_, err = DecodeProfile([]byte(`{"user_id": "` + userID + `", "metadata": {"patient_name": "Ada", "patient_age": 7.5, "city": "", "language": "", "diagnosis": "", "patient_address": null, "state": null, "country": null, "profession": null, "education": null}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "metadata.patient_age", verr.Path)

	_, err = DecodeProfile([]byte(`{"user_id": "` + userID + `", "metadata": {"patient_name": "Ada", "patient_age": 7, "city": "", "language": "", "diagnosis": ""}}`))
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "metadata.patient_address", verr.Path)
}

func TestDecodeIsIdempotent(t *testing.T) {
	first, err := DecodeActivityItem([]byte(itemJSON))
	require.NoError(t, err)
	second, err := DecodeActivityItem([]byte(itemJSON))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDecodeRejectsBadIdentifiersAndJSON(t *testing.T) {
	_, err := DecodeActivity([]byte(`{"id": "nope", "user_id": "` + userID + `", "status": "IDLE", "generated_title": null, "created_at": "2025-03-01T10:00:00Z"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "id", verr.Path)

	_, err = DecodeActivities([]byte(`[{"id": "` + activityID + `"`))
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "", verr.Path)

	_, err = DecodeActivities([]byte(`{}`))
	require.ErrorAs(t, err, &verr)
}

func TestEncodeAnswerCreate(t *testing.T) {
	data, err := EncodeAnswerCreate(domain.AnswerCreate{
		ActivityItemID: itemID,
		IsCorrect:      true,
		Answer:         domain.FreeTextAnswer{Text: "Paris"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"activity_item_id": "`+itemID+`", "skip": false, "is_correct": true, "answer": {"activity_type": "FREE_TEXT", "text": "Paris"}}`, string(data))

	_, err = EncodeAnswerCreate(domain.AnswerCreate{ActivityItemID: "item-1", Answer: domain.FreeTextAnswer{}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "activity_item_id", verr.Path)

	_, err = EncodeAnswerCreate(domain.AnswerCreate{ActivityItemID: itemID})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "answer", verr.Path)
}

func TestEncodePatientMetadataRoundTrip(t *testing.T) {
	state := "Kerala"
	meta := domain.PatientMetadata{
		PatientName: "Ravi",
		PatientAge:  64,
		City:        "Kochi",
		Language:    "Malayalam",
		Diagnosis:   "Anomic aphasia",
		State:       &state,
	}
	data, err := EncodePatientMetadata(meta)
	require.NoError(t, err)

	decoded, err := DecodePatientMetadata(data)
	require.NoError(t, err)
	require.Equal(t, meta, decoded)
}
