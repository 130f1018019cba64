package testsupport

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"example.com/sia/internal/auth"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/schema"
)

func (s *Service) listActivities(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	s.mu.Lock()
	out := make([]domain.Activity, 0, len(s.order))
	for _, id := range s.order {
		if rec := s.activities[id]; rec.activity.UserID == userID {
			out = append(out, rec.activity)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Service) createActivity(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	created := s.create(auth.UserID(r.Context()))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, created)
}

func (s *Service) activityDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.activities[r.PathValue("activity")]
	if !ok {
		writeError(w, http.StatusNotFound, "Activity not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.details())
}

func (s *Service) startActivity(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.startGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if rec.activity.Status == domain.ActivityStatusCompleted {
		writeError(w, http.StatusBadRequest, "Activity is already completed")
		return
	}
	rec.activity.Status = domain.ActivityStatusOngoing

	next, ok := rec.nextOpen()
	if !ok {
		writeError(w, http.StatusNotFound, "No valid activity items found to start.")
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Service) activityItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.activities[r.PathValue("activity")]
	if !ok {
		writeError(w, http.StatusNotFound, "Activity item not found")
		return
	}
	for _, it := range rec.items {
		if it.ID == r.PathValue("item") {
			writeJSON(w, http.StatusOK, it)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Activity item not found")
}

func (s *Service) submitAnswer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	create, err := schema.DecodeAnswerCreate(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	idx := -1
	for i := range rec.items {
		if rec.items[i].ID == r.PathValue("item") {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Activity item not found")
		return
	}
	it := &rec.items[idx]
	if it.Status.Terminal() {
		writeError(w, http.StatusBadRequest, "Activity item is already in a terminal state.")
		return
	}

	it.AttemptedRetries++
	rec.answers = append(rec.answers, domain.ActivityAnswer{
		ID:             uuid.NewString(),
		ActivityItemID: it.ID,
		Skip:           create.Skip,
		IsCorrect:      create.IsCorrect,
		Answer:         create.Answer,
		AttemptedAt:    s.now(),
	})

	switch {
	case create.Skip:
		it.Status = domain.ItemStatusSkip
	case create.IsCorrect:
		it.Status = domain.ItemStatusSuccess
	case it.AttemptedRetries >= it.MaxRetries:
		it.Status = domain.ItemStatusRetriesExhaust
	}

	complete := rec.complete()
	if complete {
		rec.activity.Status = domain.ActivityStatusCompleted
	}

	resp := domain.AnswerResponse{
		ActivityType:     it.ActivityType,
		SuccessVerdict:   create.IsCorrect,
		ActivityComplete: complete,
		Hints:            []domain.Hint{},
	}
	// Exhausted items also hand over to the next open item so a session never dead-ends.
	if it.Status.Terminal() {
		if next, ok := rec.nextOpen(); ok {
			resp.NextItemID = &next.ID
		}
	}
	if !create.IsCorrect && (it.Status == domain.ItemStatusNotTerminated || it.Status == domain.ItemStatusRetriesExhaust) {
		resp.Hints = it.QuestionConfig.QuestionHints()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) profile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	s.mu.Lock()
	meta, ok := s.profiles[userID]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User profile not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.Profile{UserID: userID, Metadata: meta})
}

func (s *Service) saveProfile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	meta, err := schema.DecodePatientMetadata(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	userID := auth.UserID(r.Context())

	s.mu.Lock()
	s.profiles[userID] = meta
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.Profile{UserID: userID, Metadata: meta})
}
