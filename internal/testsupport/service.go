// Package testsupport provides an in-memory stand-in for the remote activity service. It backs
// package tests and the local dev server; it mirrors the service's observable behaviour, not its
// storage.
package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/sia/internal/auth"
	"example.com/sia/internal/domain"
)

// Operation names accepted by RespondOnce and Calls.
const (
	OpList        = "list_activities"
	OpDetails     = "activity_details"
	OpCreate      = "create_activity"
	OpStart       = "start_activity"
	OpItem        = "activity_item"
	OpAnswer      = "submit_answer"
	OpProfile     = "profile"
	OpSaveProfile = "save_profile"
)

// ItemTemplate describes a generated question.
type ItemTemplate struct {
	Prompt         string
	ExpectedAnswer string
	Hints          int
	MaxRetries     int
}

// Generator produces the title and items of a newly created activity.
type Generator func(userID string) (string, []ItemTemplate)

// DefaultGenerator returns the fixed two-question activity used for local development.
func DefaultGenerator(string) (string, []ItemTemplate) {
	return "Dummy Generated Activity", []ItemTemplate{
		{Prompt: "What is the capital of France?", ExpectedAnswer: "Paris", Hints: 1, MaxRetries: 2},
		{Prompt: "What is 2+2?", ExpectedAnswer: "4", Hints: 1, MaxRetries: 2},
	}
}

type activityRecord struct {
	activity domain.Activity
	items    []domain.ActivityItem
	answers  []domain.ActivityAnswer
}

type cannedResponse struct {
	status int
	body   string
}

// Service is an in-memory activity service.
type Service struct {
	mu         sync.Mutex
	activities map[string]*activityRecord
	order      []string
	profiles   map[string]domain.PatientMetadata
	calls      map[string]int
	canned     map[string]cannedResponse
	startGate  chan struct{}
	generate   Generator
	now        func() time.Time
	auth       auth.Config
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithGenerator overrides the activity generator.
func WithGenerator(g Generator) Option {
	return func(s *Service) {
		s.generate = g
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithAuth requires signed bearer tokens instead of raw user ids.
func WithAuth(cfg auth.Config) Option {
	return func(s *Service) {
		s.auth = cfg
	}
}

// NewService constructs an empty Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		activities: make(map[string]*activityRecord),
		profiles:   make(map[string]domain.PatientMetadata),
		calls:      make(map[string]int),
		canned:     make(map[string]cannedResponse),
		generate:   DefaultGenerator,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler serves the service under /api/v1 behind bearer authentication.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	skipper := func(r *http.Request) bool { return r.URL.Path == "/healthz" }
	return auth.NewMiddleware(s.auth, skipper).Wrap(mux)
}

// RegisterRoutes wires endpoints to the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/activities/{$}", s.observe(OpList, s.listActivities))
	mux.HandleFunc("POST /api/v1/activities/create", s.observe(OpCreate, s.createActivity))
	mux.HandleFunc("GET /api/v1/activities/{activity}/details", s.observe(OpDetails, s.activityDetails))
	mux.HandleFunc("POST /api/v1/activities/{activity}/start", s.observe(OpStart, s.startActivity))
	mux.HandleFunc("GET /api/v1/activities/{activity}/items/{item}", s.observe(OpItem, s.activityItem))
	mux.HandleFunc("POST /api/v1/activities/{activity}/items/{item}/answer", s.observe(OpAnswer, s.submitAnswer))
	mux.HandleFunc("GET /api/v1/profile/{$}", s.observe(OpProfile, s.profile))
	mux.HandleFunc("PUT /api/v1/profile/{$}", s.observe(OpSaveProfile, s.saveProfile))
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Calls reports how many requests reached an operation.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// RespondOnce makes the next request to op return the given status and raw body.
func (s *Service) RespondOnce(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned[op] = cannedResponse{status: status, body: body}
}

// HoldStart blocks start requests until the returned release func is called.
func (s *Service) HoldStart() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.startGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Seed creates an activity for userID through the generator and returns it.
func (s *Service) Seed(userID string) domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(userID)
}

// SetProfile stores metadata for a user.
func (s *Service) SetProfile(userID string, meta domain.PatientMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = meta
}

// Details returns a copy of an activity aggregate.
func (s *Service) Details(activityID string) (domain.ActivityDetails, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.activities[activityID]
	if !ok {
		return domain.ActivityDetails{}, false
	}
	return rec.details(), true
}

func (s *Service) observe(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[op]++
		canned, ok := s.canned[op]
		if ok {
			delete(s.canned, op)
		}
		s.mu.Unlock()

		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(canned.status)
			_, _ = io.WriteString(w, canned.body)
			return
		}
		next(w, r)
	}
}

func (s *Service) create(userID string) domain.Activity {
	title, templates := s.generate(userID)
	now := s.now()
	rec := &activityRecord{
		activity: domain.Activity{
			ID:        uuid.NewString(),
			UserID:    userID,
			Status:    domain.ActivityStatusIdle,
			CreatedAt: now,
		},
	}
	if title != "" {
		rec.activity.GeneratedTitle = &title
	}
	for i, tpl := range templates {
		hints := make([]domain.Hint, 0, tpl.Hints)
		for h := 0; h < tpl.Hints; h++ {
			hints = append(hints, domain.FreeTextHint{})
		}
		maxRetries := tpl.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 2
		}
		rec.items = append(rec.items, domain.ActivityItem{
			ID:           uuid.NewString(),
			ActivityID:   rec.activity.ID,
			ActivityType: domain.ItemTypeFreeText,
			MaxRetries:   maxRetries,
			Status:       domain.ItemStatusNotTerminated,
			CreatedAt:    now,
			QuestionConfig: domain.FreeTextQuestionConfig{
				Order:  i,
				Hints:  hints,
				Prompt: tpl.Prompt,
			},
			QuestionEvaluationConfig: domain.FreeTextEvaluationConfig{ExpectedAnswer: tpl.ExpectedAnswer},
		})
	}
	s.activities[rec.activity.ID] = rec
	s.order = append(s.order, rec.activity.ID)
	return rec.activity
}

func (rec *activityRecord) details() domain.ActivityDetails {
	return domain.ActivityDetails{
		Activity: rec.activity,
		Items:    append([]domain.ActivityItem{}, rec.items...),
		Answers:  append([]domain.ActivityAnswer{}, rec.answers...),
	}
}

// nextOpen returns the first non-terminated item in question order.
func (rec *activityRecord) nextOpen() (domain.ActivityItem, bool) {
	open := make([]domain.ActivityItem, 0, len(rec.items))
	for _, it := range rec.items {
		if !it.Status.Terminal() {
			open = append(open, it)
		}
	}
	if len(open) == 0 {
		return domain.ActivityItem{}, false
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].QuestionConfig.QuestionOrder() < open[j].QuestionConfig.QuestionOrder()
	})
	return open[0], true
}

func (rec *activityRecord) complete() bool {
	for _, it := range rec.items {
		if !it.Status.Terminal() {
			return false
		}
	}
	return true
}

// lookup returns the activity when it exists and belongs to the caller.
func (s *Service) lookup(w http.ResponseWriter, r *http.Request) (*activityRecord, bool) {
	rec, ok := s.activities[r.PathValue("activity")]
	if !ok {
		writeError(w, http.StatusNotFound, "Activity not found")
		return nil, false
	}
	if rec.activity.UserID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "User does not have access to this activity")
		return nil, false
	}
	return rec, true
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

