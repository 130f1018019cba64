package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/sia/internal/api"
	"example.com/sia/internal/auth"
	"example.com/sia/internal/cache"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/events"
	"example.com/sia/internal/schema"
	"example.com/sia/internal/testsupport"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.EventType())
	}
	return out
}

type fixture struct {
	srv       *testsupport.Server
	client    *api.Client
	store     *cache.Store
	publisher *recordingPublisher
	activity  domain.Activity
	ctrl      *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := testsupport.StartServer(t)
	f := &fixture{
		srv:       srv,
		client:    api.NewClient(srv.BaseURL, auth.StaticToken(srv.UserID)),
		store:     cache.NewStore(),
		publisher: &recordingPublisher{},
		activity:  srv.Seed(srv.UserID),
	}
	f.ctrl = NewController(f.activity.ID, f.client, f.store, WithPublisher(f.publisher))
	return f
}

func TestIdleActivityStartsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.CurrentItem)
	require.Equal(t, "What is the capital of France?", view.CurrentItem.Prompt())
	require.False(t, view.CurrentTerminal())
	require.Equal(t, domain.ActivityStatusOngoing, view.Activity.Status)
	require.Equal(t, 1, f.srv.Calls(testsupport.OpStart))
	require.True(t, f.store.Stale(cache.DetailsKey(f.activity.ID)))

	view, err = f.ctrl.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityStatusOngoing, view.Activity.Status)
	require.Equal(t, 1, f.srv.Calls(testsupport.OpStart))
	require.Equal(t, 2, f.srv.Calls(testsupport.OpDetails))
	require.NoError(t, f.ctrl.Close(ctx))
	require.Equal(t, []string{events.TypeActivityStarted}, f.publisher.types())
}

func TestLoadWhileStartPendingDoesNotStartAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	release := f.srv.HoldStart()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Load(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.srv.Calls(testsupport.OpStart) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.ctrl.Snapshot().Starting }, 2*time.Second, 5*time.Millisecond)

	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	require.True(t, view.Pending())
	require.Nil(t, view.CurrentItem)

	release()
	require.NoError(t, <-done)
	require.Equal(t, 1, f.srv.Calls(testsupport.OpStart))
	require.NotNil(t, f.ctrl.Snapshot().CurrentItem)
}

func TestCorrectAnswerMovesToNextItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	first := view.CurrentItem

	out, err := f.ctrl.SubmitAnswer(ctx, first.ID, "Paris", Evaluate(*first, "paris"), false)
	require.NoError(t, err)
	require.True(t, out.Response.SuccessVerdict)
	require.True(t, out.Advanced)
	require.False(t, out.Completed)
	require.Equal(t, FeedbackCorrect, out.Feedback)

	view = f.ctrl.Snapshot()
	require.Equal(t, "What is 2+2?", view.CurrentItem.Prompt())
	require.NotEqual(t, first.ID, view.CurrentItem.ID)
	require.Nil(t, view.Feedback)
	require.Empty(t, view.Hints)
	require.Equal(t, 1, f.srv.Calls(testsupport.OpItem))
}

func TestIncorrectAnswerKeepsCurrentItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	first := view.CurrentItem

	out, err := f.ctrl.SubmitAnswer(ctx, first.ID, "Lyon", false, false)
	require.NoError(t, err)
	require.Nil(t, out.Response.NextItemID)
	require.False(t, out.Advanced)

	view = f.ctrl.Snapshot()
	require.Equal(t, first.ID, view.CurrentItem.ID)
	require.Equal(t, FeedbackIncorrect, *view.Feedback)
	require.Len(t, view.Hints, 1)
	require.Equal(t, "Consider your wording.", HintText(view.Hints[0]))
	require.Zero(t, f.srv.Calls(testsupport.OpItem))
}

func TestCompletionIsSignalled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := cache.Fetch(ctx, f.store, cache.ActivitiesKey(), f.client.ListActivities)
	require.NoError(t, err)
	require.False(t, f.store.Stale(cache.ActivitiesKey()))

	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	_, err = f.ctrl.SubmitAnswer(ctx, view.CurrentItem.ID, "Paris", true, false)
	require.NoError(t, err)

	view = f.ctrl.Snapshot()
	out, err := f.ctrl.SubmitAnswer(ctx, view.CurrentItem.ID, "4", true, false)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.False(t, out.Advanced)

	view = f.ctrl.Snapshot()
	require.True(t, view.Completed)
	require.Equal(t, domain.ActivityStatusCompleted, view.Activity.Status)
	require.True(t, f.store.Stale(cache.ActivitiesKey()))
	require.True(t, f.store.Stale(cache.DetailsKey(f.activity.ID)))
	require.NoError(t, f.ctrl.Close(ctx))
	require.Equal(t, []string{
		events.TypeActivityStarted,
		events.TypeAnswerSubmitted,
		events.TypeAnswerSubmitted,
		events.TypeActivityCompleted,
	}, f.publisher.types())

	details, ok := f.srv.Details(f.activity.ID)
	require.True(t, ok)
	require.Equal(t, domain.ActivityStatusCompleted, details.Activity.Status)
}

func TestSkipAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	first := view.CurrentItem.ID

	out, err := f.ctrl.Skip(ctx, first)
	require.NoError(t, err)
	require.True(t, out.Advanced)
	require.Equal(t, FeedbackIncorrect, out.Feedback)

	details, _ := f.srv.Details(f.activity.ID)
	item, ok := details.Item(first)
	require.True(t, ok)
	require.Equal(t, domain.ItemStatusSkip, item.Status)
	require.True(t, details.Answers[0].Skip)
}

func TestMalformedDetailsLeaveStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.srv.RespondOnce(testsupport.OpDetails, http.StatusOK, `{"activity": {"id": "`+f.activity.ID+`", "user_id": "`+f.srv.UserID+`", "generated_title": null, "created_at": "2025-03-01T10:00:00Z"}, "activity_items": [], "activity_answers": []}`)

	view, err := f.ctrl.Load(context.Background())
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "activity.status", verr.Path)
	require.Nil(t, view.Activity)
	require.Nil(t, view.CurrentItem)
	require.Nil(t, view.Feedback)
	require.Zero(t, f.srv.Calls(testsupport.OpStart))
}

func TestLoadUnknownActivity(t *testing.T) {
	f := newFixture(t)
	ctrl := NewController("6f1c1f7e-3d43-4c53-9d43-1f9f5a2b7c01", f.client, f.store)

	_, err := ctrl.Load(context.Background())
	require.ErrorIs(t, err, api.ErrNotFound)
}

func TestStartFailureSetsFeedback(t *testing.T) {
	f := newFixture(t)
	f.srv.RespondOnce(testsupport.OpStart, http.StatusInternalServerError, `{"detail":"generator offline"}`)

	view, err := f.ctrl.Load(context.Background())
	require.Error(t, err)
	require.Nil(t, view.CurrentItem)
	require.NotNil(t, view.Feedback)
	require.Contains(t, *view.Feedback, "Error starting activity: ")
	require.Contains(t, *view.Feedback, "generator offline")
}

func TestSubmitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	_, err = f.ctrl.SubmitAnswer(ctx, view.CurrentItem.ID, "Lyon", false, false)
	require.NoError(t, err)
	before := f.ctrl.Snapshot()

	f.srv.RespondOnce(testsupport.OpAnswer, http.StatusInternalServerError, `{"detail":"database unavailable"}`)
	_, err = f.ctrl.SubmitAnswer(ctx, before.CurrentItem.ID, "Nice", false, false)
	var status *api.StatusError
	require.ErrorAs(t, err, &status)

	after := f.ctrl.Snapshot()
	require.Equal(t, before.CurrentItem, after.CurrentItem)
	require.Equal(t, before.Hints, after.Hints)
	require.Contains(t, *after.Feedback, "Error: ")
	require.Contains(t, *after.Feedback, "database unavailable")
}

func TestNextItemFetchFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	first := view.CurrentItem

	f.srv.RespondOnce(testsupport.OpItem, http.StatusNotFound, `{"detail":"Activity item not found"}`)
	out, err := f.ctrl.SubmitAnswer(ctx, first.ID, "Paris", true, false)
	require.ErrorIs(t, err, api.ErrNotFound)
	require.True(t, out.Response.SuccessVerdict)
	require.False(t, out.Advanced)

	view = f.ctrl.Snapshot()
	require.Equal(t, first.ID, view.CurrentItem.ID)
	require.Contains(t, *view.Feedback, "Error fetching next item: ")
}

func TestResumeOngoingActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.client.StartActivity(ctx, f.activity.ID)
	require.NoError(t, err)

	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, view.CurrentItem.ID)
	require.Equal(t, 1, f.srv.Calls(testsupport.OpStart))
	require.NoError(t, f.ctrl.Close(ctx))
	require.Empty(t, f.publisher.types())
}

func TestInvalidAnswerIsRejectedLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.ctrl.Load(ctx)
	require.NoError(t, err)

	_, err = f.ctrl.SubmitAnswer(ctx, "not-an-id", "Paris", true, false)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, f.srv.Calls(testsupport.OpAnswer))
}

type blockingService struct {
	Service
	entered chan struct{}
	release chan struct{}
}

func (s *blockingService) SubmitAnswer(ctx context.Context, activityID, itemID string, answer domain.AnswerCreate) (domain.AnswerResponse, error) {
	s.entered <- struct{}{}
	<-s.release
	return domain.AnswerResponse{}, errors.New("connection reset")
}

func TestSecondSubmitWhileInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := &blockingService{Service: f.client, entered: make(chan struct{}, 1), release: make(chan struct{})}
	ctrl := NewController(f.activity.ID, svc, f.store)
	view, err := ctrl.Load(ctx)
	require.NoError(t, err)
	itemID := view.CurrentItem.ID

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.SubmitAnswer(ctx, itemID, "Paris", true, false)
		done <- err
	}()
	<-svc.entered
	require.True(t, ctrl.Snapshot().Submitting)

	_, err = ctrl.Skip(ctx, itemID)
	require.ErrorIs(t, err, ErrSubmitInFlight)

	started, err := ctrl.AutoStart(ctx)
	require.NoError(t, err)
	require.False(t, started)

	close(svc.release)
	require.EqualError(t, <-done, "connection reset")
	require.False(t, ctrl.Snapshot().Submitting)
}

type stalledPublisher struct {
	recordingPublisher
	release chan struct{}
}

func (p *stalledPublisher) Publish(ctx context.Context, evt events.Event) error {
	<-p.release
	return p.recordingPublisher.Publish(ctx, evt)
}

func TestSlowPublisherDoesNotDelayActions(t *testing.T) {
	ctx := context.Background()
	srv := testsupport.StartServer(t)
	client := api.NewClient(srv.BaseURL, auth.StaticToken(srv.UserID))
	activity := srv.Seed(srv.UserID)
	pub := &stalledPublisher{release: make(chan struct{})}
	ctrl := NewController(activity.ID, client, cache.NewStore(), WithPublisher(pub))

	view, err := ctrl.Load(ctx)
	require.NoError(t, err)
	out, err := ctrl.SubmitAnswer(ctx, view.CurrentItem.ID, "Paris", true, false)
	require.NoError(t, err)
	require.True(t, out.Advanced)
	require.Empty(t, pub.types())

	close(pub.release)
	require.NoError(t, ctrl.Close(ctx))
	require.Equal(t, []string{events.TypeActivityStarted, events.TypeAnswerSubmitted}, pub.types())
}

func TestEmptyNextItemIDKeepsCurrentItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	first := view.CurrentItem.ID

	f.srv.RespondOnce(testsupport.OpAnswer, http.StatusOK, `{"activity_type": "FREE_TEXT", "next_item_id": "", "success_verdict": false, "activity_complete": false, "hints": []}`)
	out, err := f.ctrl.SubmitAnswer(ctx, first, "Lyon", false, false)
	require.NoError(t, err)
	require.False(t, out.Advanced)

	view = f.ctrl.Snapshot()
	require.Equal(t, first, view.CurrentItem.ID)
	require.Equal(t, FeedbackIncorrect, *view.Feedback)
	require.Zero(t, f.srv.Calls(testsupport.OpItem))
}
