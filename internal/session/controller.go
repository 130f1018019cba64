// Package session drives a user through the items of one activity. The remote service owns
// the activity and item state machines; the controller only re-derives what to show next.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/sia/internal/cache"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/events"
	"example.com/sia/internal/logger"
	"example.com/sia/internal/observability"
	"example.com/sia/internal/schema"
)

// ErrSubmitInFlight is returned when an item already has an outstanding submission.
var ErrSubmitInFlight = errors.New("session: answer submission already in flight")

// Feedback shown after an answer.
const (
	FeedbackCorrect   = "Correct!"
	FeedbackIncorrect = "Incorrect. Try again or skip."
)

// Service is the subset of the activity service the controller calls.
type Service interface {
	ActivityDetails(ctx context.Context, activityID string) (domain.ActivityDetails, error)
	StartActivity(ctx context.Context, activityID string) (domain.ActivityItem, error)
	ActivityItem(ctx context.Context, activityID, itemID string) (domain.ActivityItem, error)
	SubmitAnswer(ctx context.Context, activityID, itemID string, answer domain.AnswerCreate) (domain.AnswerResponse, error)
}

// Controller holds the client-local progression state of one activity.
type Controller struct {
	activityID string
	service    Service
	store      *cache.Store
	publisher  events.Publisher
	queue      *events.AsyncPublisher
	log        *logger.Logger
	now        func() time.Time

	mu         sync.Mutex
	details    *domain.ActivityDetails
	status     domain.ActivityStatus
	current    *domain.ActivityItem
	feedback   *string
	hints      []domain.Hint
	starting   bool
	started    bool
	answered   bool
	submitting map[string]bool
	completed  bool
}

// Option configures optional behaviour for the Controller.
type Option func(*Controller)

// WithPublisher sets the sink for progression events.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithLogger sets the controller logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller for activityID. The store is shared with every other
// consumer of the same service so invalidations are visible to them.
func NewController(activityID string, service Service, store *cache.Store, opts ...Option) *Controller {
	c := &Controller{
		activityID: activityID,
		service:    service,
		store:      store,
		publisher:  events.NoopPublisher{},
		log:        logger.Nop(),
		now:        func() time.Time { return time.Now().UTC() },
		submitting: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("activity_id", activityID)
	c.queue = events.NewAsyncPublisher(c.publisher, c.log)
	return c
}

// Close waits for queued progression events to reach the publisher. The publisher itself is
// left open since it is shared between controllers.
func (c *Controller) Close(ctx context.Context) error {
	return c.queue.Drain(ctx)
}

// ActivityID returns the id of the driven activity.
func (c *Controller) ActivityID() string { return c.activityID }

// Load fetches the activity aggregate. Not-found and transport failures are returned as is and
// leave the state untouched. A freshly loaded IDLE activity is started automatically; a failed
// start is reported through the feedback and the returned error.
func (c *Controller) Load(ctx context.Context) (View, error) {
	details, err := cache.Fetch(ctx, c.store, cache.DetailsKey(c.activityID), func(ctx context.Context) (domain.ActivityDetails, error) {
		return c.service.ActivityDetails(ctx, c.activityID)
	})
	if err != nil {
		return c.Snapshot(), err
	}

	c.mu.Lock()
	c.apply(details)
	idle := c.status == domain.ActivityStatusIdle
	c.mu.Unlock()

	if idle {
		if _, err := c.AutoStart(ctx); err != nil {
			return c.Snapshot(), err
		}
	}
	return c.Snapshot(), nil
}

// apply adopts a loaded aggregate. Caller holds c.mu.
func (c *Controller) apply(details domain.ActivityDetails) {
	c.details = &details
	if !(c.started && details.Activity.Status == domain.ActivityStatusIdle) {
		c.status = details.Activity.Status
	}
	if c.status == domain.ActivityStatusCompleted {
		c.completed = true
	}

	if c.current != nil {
		if fresh, ok := details.Item(c.current.ID); ok {
			c.current = &fresh
		}
		return
	}
	if c.status == domain.ActivityStatusOngoing {
		if next, ok := firstOpen(details.Items); ok {
			c.current = &next
		}
	}
}

// AutoStart starts the activity when its last known status is IDLE. It is a no-op while a
// start is in flight, once the activity was started or answered here, or when the activity is
// not IDLE.
func (c *Controller) AutoStart(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.starting || c.started || c.answered || len(c.submitting) > 0 || c.status != domain.ActivityStatusIdle {
		c.mu.Unlock()
		return false, nil
	}
	c.starting = true
	c.mu.Unlock()

	item, err := c.service.StartActivity(ctx, c.activityID)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.setFeedback("Error starting activity: " + err.Error())
		c.mu.Unlock()
		c.log.Warn("start activity failed", "error", err)
		return false, fmt.Errorf("start activity %s: %w", c.activityID, err)
	}
	c.started = true
	c.status = domain.ActivityStatusOngoing
	c.current = &item
	c.feedback = nil
	c.hints = nil
	userID := c.userID()
	c.mu.Unlock()

	c.invalidate(ctx, cache.DetailsKey(c.activityID), cache.ActivitiesKey())
	observability.RecordProgressEvent("started")
	c.publish(events.ActivityStarted{
		ActivityID:  c.activityID,
		UserID:      userID,
		FirstItemID: item.ID,
		OccurredAt:  c.now(),
	})
	return true, nil
}

// Outcome reports the result of an answer submission.
type Outcome struct {
	Response  domain.AnswerResponse
	Feedback  string
	Advanced  bool
	Completed bool
}

// SubmitAnswer sends an attempt for itemID and advances the controller according to the
// response: completion, the next item, or the same item with fresh feedback and hints.
func (c *Controller) SubmitAnswer(ctx context.Context, itemID, text string, isCorrect, skip bool) (Outcome, error) {
	c.mu.Lock()
	if c.submitting[itemID] {
		c.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	}
	c.submitting[itemID] = true
	c.answered = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.submitting, itemID)
		c.mu.Unlock()
	}()

	create := domain.AnswerCreate{
		ActivityItemID: itemID,
		Skip:           skip,
		IsCorrect:      isCorrect,
		Answer:         domain.FreeTextAnswer{Text: text},
	}

	var out Outcome
	err := runPipeline(ctx,
		step{"validate", func(context.Context) error {
			return schema.ValidateAnswerCreate(create)
		}},
		step{"submit", func(ctx context.Context) error {
			resp, err := c.service.SubmitAnswer(ctx, c.activityID, itemID, create)
			if err != nil {
				return err
			}
			out = c.record(ctx, itemID, create, resp)
			return nil
		}},
		step{"advance", func(ctx context.Context) error {
			if out.Completed || out.Response.NextItemID == nil || *out.Response.NextItemID == "" {
				return nil
			}
			if err := c.advance(ctx, *out.Response.NextItemID); err != nil {
				return &nextItemError{err: err}
			}
			out.Advanced = true
			return nil
		}},
	)
	if err != nil {
		var next *nextItemError
		c.mu.Lock()
		if errors.As(err, &next) {
			c.setFeedback("Error fetching next item: " + next.err.Error())
		} else {
			c.setFeedback("Error: " + err.Error())
		}
		c.mu.Unlock()
		c.log.Warn("answer submission failed", "item_id", itemID, "error", err)
		return out, err
	}
	return out, nil
}

// Skip gives up on an item. Retry accounting is left to the service.
func (c *Controller) Skip(ctx context.Context, itemID string) (Outcome, error) {
	return c.SubmitAnswer(ctx, itemID, "", false, true)
}

// record applies a successful answer response.
func (c *Controller) record(ctx context.Context, itemID string, create domain.AnswerCreate, resp domain.AnswerResponse) Outcome {
	feedback := FeedbackIncorrect
	if resp.SuccessVerdict {
		feedback = FeedbackCorrect
	}

	c.mu.Lock()
	c.setFeedback(feedback)
	c.hints = append([]domain.Hint(nil), resp.Hints...)
	if resp.ActivityComplete {
		c.completed = true
		c.status = domain.ActivityStatusCompleted
	}
	userID := c.userID()
	c.mu.Unlock()

	c.invalidate(ctx,
		cache.DetailsKey(c.activityID),
		cache.ActivitiesKey(),
		cache.ItemKey(c.activityID, itemID),
	)

	observability.RecordProgressEvent("answered")
	c.publish(events.AnswerSubmitted{
		ActivityID:     c.activityID,
		UserID:         userID,
		ItemID:         itemID,
		Skip:           create.Skip,
		IsCorrect:      create.IsCorrect,
		SuccessVerdict: resp.SuccessVerdict,
		NextItemID:     resp.NextItemID,
		OccurredAt:     c.now(),
	})
	if resp.ActivityComplete {
		observability.RecordProgressEvent("completed")
		c.publish(events.ActivityCompleted{
			ActivityID: c.activityID,
			UserID:     userID,
			OccurredAt: c.now(),
		})
	}

	return Outcome{Response: resp, Feedback: feedback, Completed: resp.ActivityComplete}
}

// advance fetches the next item and makes it current with a clean slate.
func (c *Controller) advance(ctx context.Context, nextID string) error {
	item, err := cache.Fetch(ctx, c.store, cache.ItemKey(c.activityID, nextID), func(ctx context.Context) (domain.ActivityItem, error) {
		return c.service.ActivityItem(ctx, c.activityID, nextID)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.current = &item
	c.feedback = nil
	c.hints = nil
	c.mu.Unlock()
	observability.RecordProgressEvent("advanced")
	return nil
}

func (c *Controller) setFeedback(msg string) {
	c.feedback = &msg
}

func (c *Controller) userID() string {
	if c.details == nil {
		return ""
	}
	return c.details.Activity.UserID
}

func (c *Controller) invalidate(ctx context.Context, keys ...cache.Key) {
	for _, key := range keys {
		if err := c.store.Invalidate(ctx, key); err != nil {
			c.log.Warn("cache invalidation failed", "key", key.String(), "error", err)
		}
	}
}

// publish queues evt; delivery happens off the caller's path.
func (c *Controller) publish(evt events.Event) {
	if err := c.queue.Publish(context.Background(), evt); err != nil {
		c.log.Warn("queue progress event failed", "event_type", evt.EventType(), "error", err)
	}
}

// firstOpen returns the first non-terminal item in question order.
func firstOpen(items []domain.ActivityItem) (domain.ActivityItem, bool) {
	open := make([]domain.ActivityItem, 0, len(items))
	for _, it := range items {
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
