// Package dashboard lists, creates and starts the current user's activities.
package dashboard

import (
	"context"
	"fmt"

	"example.com/sia/internal/cache"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/logger"
)

// Service is the subset of the activity service the dashboard calls.
type Service interface {
	ListActivities(ctx context.Context) ([]domain.Activity, error)
	CreateActivity(ctx context.Context) (domain.Activity, error)
	StartActivity(ctx context.Context, activityID string) (domain.ActivityItem, error)
}

// Action is the entry point offered for an activity.
type Action string

const (
	ActionStart    Action = "start"
	ActionContinue Action = "continue"
	ActionView     Action = "view"
)

// Label is the button text for the action.
func (a Action) Label() string {
	switch a {
	case ActionStart:
		return "Start Activity"
	case ActionContinue:
		return "Continue Activity"
	case ActionView:
		return "View Details"
	}
	return ""
}

// Dashboard reads and mutates the activity list through the shared query cache.
type Dashboard struct {
	service Service
	store   *cache.Store
	log     *logger.Logger
}

// New constructs a Dashboard.
func New(service Service, store *cache.Store, log *logger.Logger) *Dashboard {
	if log == nil {
		log = logger.Nop()
	}
	return &Dashboard{service: service, store: store, log: log}
}

// List returns the activities, served from the cache while fresh.
func (d *Dashboard) List(ctx context.Context) ([]domain.Activity, error) {
	return cache.Fetch(ctx, d.store, cache.ActivitiesKey(), d.service.ListActivities)
}

// Create asks the service for a new activity.
func (d *Dashboard) Create(ctx context.Context) (domain.Activity, error) {
	activity, err := d.service.CreateActivity(ctx)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	d.invalidate(ctx, cache.ActivitiesKey())
	d.log.Info("activity created", "activity_id", activity.ID)
	return activity, nil
}

// Start starts an IDLE activity and returns its first item.
func (d *Dashboard) Start(ctx context.Context, activityID string) (domain.ActivityItem, error) {
	item, err := d.service.StartActivity(ctx, activityID)
	if err != nil {
		return domain.ActivityItem{}, fmt.Errorf("start activity %s: %w", activityID, err)
	}
	d.invalidate(ctx, cache.ActivitiesKey(), cache.DetailsKey(activityID))
	d.log.Info("activity started", "activity_id", activityID, "item_id", item.ID)
	return item, nil
}

func (d *Dashboard) invalidate(ctx context.Context, keys ...cache.Key) {
	for _, key := range keys {
		if err := d.store.Invalidate(ctx, key); err != nil {
			d.log.Warn("cache invalidation failed", "key", key.String(), "error", err)
		}
	}
}

// ActionFor maps an activity status to the entry point offered for it.
func ActionFor(a domain.Activity) Action {
	switch a.Status {
	case domain.ActivityStatusIdle:
		return ActionStart
	case domain.ActivityStatusOngoing:
		return ActionContinue
	default:
		return ActionView
	}
}

// Title is the generated title or a short id fallback.
func Title(a domain.Activity) string {
	if a.GeneratedTitle != nil && *a.GeneratedTitle != "" {
		return *a.GeneratedTitle
	}
	id := a.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Activity " + id
}
