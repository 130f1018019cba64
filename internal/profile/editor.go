package profile

import (
	"context"
	"fmt"

	"example.com/sia/internal/cache"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/logger"
)

// Service is the subset of the activity service the editor calls.
type Service interface {
	Profile(ctx context.Context) (domain.Profile, error)
	SaveProfile(ctx context.Context, meta domain.PatientMetadata) (domain.Profile, error)
}

// Editor loads the profile into a Form and saves edited forms back wholesale.
type Editor struct {
	service Service
	store   *cache.Store
	log     *logger.Logger
}

// NewEditor constructs an Editor.
func NewEditor(service Service, store *cache.Store, log *logger.Logger) *Editor {
	if log == nil {
		log = logger.Nop()
	}
	return &Editor{service: service, store: store, log: log}
}

// Load fetches the profile and maps it into form values.
func (e *Editor) Load(ctx context.Context) (Form, error) {
	p, err := cache.Fetch(ctx, e.store, cache.ProfileKey(), e.service.Profile)
	if err != nil {
		return Form{}, fmt.Errorf("load profile: %w", err)
	}
	return FormFromMetadata(p.Metadata), nil
}

// Save validates form locally, replaces the stored metadata and returns the form reset from the
// service's response. Field violations are returned as FieldErrors without any network call.
func (e *Editor) Save(ctx context.Context, form Form) (Form, error) {
	meta, err := form.Metadata()
	if err != nil {
		return form, err
	}
	saved, err := e.service.SaveProfile(ctx, meta)
	if err != nil {
		e.log.Warn("profile save failed", "error", err)
		return form, fmt.Errorf("save profile: %w", err)
	}
	if err := e.store.Invalidate(ctx, cache.ProfileKey()); err != nil {
		e.log.Warn("cache invalidation failed", "key", cache.ProfileKey().String(), "error", err)
	}
	e.log.Info("profile saved", "user_id", saved.UserID)
	return FormFromMetadata(saved.Metadata), nil
}
