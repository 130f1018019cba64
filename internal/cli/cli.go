// Package cli is the terminal front end of the activity client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"example.com/sia/internal/auth"
	"example.com/sia/internal/dashboard"
	"example.com/sia/internal/logger"
	"example.com/sia/internal/profile"
	"example.com/sia/internal/session"
)

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("usage: sia activities | create | start <id> | session <id> | profile [edit]")

// ErrNotSignedIn is returned when no user identity is configured.
var ErrNotSignedIn = errors.New("not signed in: set SIA_USER_ID")

// App wires the client components to a terminal.
type App struct {
	UserID    string
	Dashboard *dashboard.Dashboard
	Profiles  *profile.Editor
	Session   func(activityID string) *session.Controller
	In        io.Reader
	Out       io.Writer
	Log       *logger.Logger
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if !auth.Authenticated(a.UserID) {
		return ErrNotSignedIn
	}
	if a.Log == nil {
		a.Log = logger.Nop()
	}
	in := bufio.NewScanner(a.In)

	switch args[0] {
	case "activities":
		return a.activities(ctx)
	case "create":
		return a.create(ctx)
	case "start":
		if len(args) < 2 {
			return ErrUsage
		}
		return a.start(ctx, args[1])
	case "session":
		if len(args) < 2 {
			return ErrUsage
		}
		return a.session(ctx, in, args[1])
	case "profile":
		if len(args) > 1 && args[1] == "edit" {
			return a.editProfile(ctx, in)
		}
		return a.showProfile(ctx)
	}
	return ErrUsage
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) activities(ctx context.Context) error {
	list, err := a.Dashboard.List(ctx)
	if err != nil {
		return fmt.Errorf("error loading activities: %w", err)
	}
	if len(list) == 0 {
		a.printf("No activities found. Create a new one to get started!\n")
		return nil
	}
	for _, activity := range list {
		a.printf("%s  %-32s  %-9s  %s  [%s]\n",
			activity.ID,
			dashboard.Title(activity),
			activity.Status,
			activity.CreatedAt.Local().Format(time.DateTime),
			dashboard.ActionFor(activity).Label(),
		)
	}
	return nil
}

func (a *App) create(ctx context.Context) error {
	activity, err := a.Dashboard.Create(ctx)
	if err != nil {
		return err
	}
	a.printf("New activity created: %s (%s)\n", dashboard.Title(activity), activity.ID)
	return nil
}

func (a *App) start(ctx context.Context, activityID string) error {
	item, err := a.Dashboard.Start(ctx, activityID)
	if err != nil {
		return err
	}
	a.printf("Activity %s started. First question: %s\n", activityID, item.Prompt())
	return nil
}

func (a *App) session(ctx context.Context, in *bufio.Scanner, activityID string) error {
	ctrl := a.Session(activityID)
	defer a.closeSession(ctrl)

	view, loadErr := ctrl.Load(ctx)
	if loadErr != nil && view.Activity == nil {
		return fmt.Errorf("error loading activity: %w", loadErr)
	}
	if view.Activity != nil {
		a.printf("Activity: %s (%s)\n", dashboard.Title(*view.Activity), view.Activity.Status)
	}

	for {
		view = ctrl.Snapshot()
		if view.Feedback != nil {
			a.printf("%s\n", *view.Feedback)
		}
		for _, hint := range view.Hints {
			a.printf("Hint: %s\n", session.HintText(hint))
		}
		switch {
		case view.Completed:
			a.printf("Activity completed!\n")
			return nil
		case view.CurrentItem == nil:
			a.printf("No activity item available.\n")
			return loadErr
		case view.CurrentTerminal():
			a.printf("%s\n", view.TerminalNotice())
			return nil
		}

		item := *view.CurrentItem
		a.printf("Question: %s\n> ", item.Prompt())
		if !in.Scan() {
			a.printf("\n")
			return in.Err()
		}
		text := strings.TrimSpace(in.Text())

		var (
			out session.Outcome
			err error
		)
		switch text {
		case ":quit":
			return nil
		case ":skip":
			out, err = ctrl.Skip(ctx, item.ID)
		case "":
			a.printf("Type an answer, :skip or :quit.\n")
			continue
		default:
			out, err = ctrl.SubmitAnswer(ctx, item.ID, text, session.Evaluate(item, text), false)
		}
		if err != nil {
			if errors.Is(err, session.ErrSubmitInFlight) {
				a.printf("Submitting...\n")
			}
			continue
		}
		if out.Advanced {
			a.printf("%s Moving to next item!\n", out.Feedback)
		}
	}
}

func (a *App) closeSession(ctrl *session.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Close(ctx); err != nil {
		a.Log.Warn("progress events not flushed", "activity_id", ctrl.ActivityID(), "error", err)
	}
}

func (a *App) showProfile(ctx context.Context) error {
	form, err := a.Profiles.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile data: %w", err)
	}
	for _, f := range fields(&form) {
		a.printf("%-16s %s\n", f.label+":", f.display())
	}
	return nil
}

func (a *App) editProfile(ctx context.Context, in *bufio.Scanner) error {
	form, err := a.Profiles.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile data: %w", err)
	}
	a.printf("Press Enter to keep a value; '-' clears an optional field.\n")
	for _, f := range fields(&form) {
		a.printf("%s [%s]: ", f.label, f.display())
		if !in.Scan() {
			a.printf("\n")
			break
		}
		f.set(in.Text())
	}

	saved, err := a.Profiles.Save(ctx, form)
	var fieldErrs profile.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, f := range fields(&form) {
			if msg, ok := fieldErrs[f.name]; ok {
				a.printf("%s: %s\n", f.label, msg)
			}
		}
		return err
	}
	if err != nil {
		return err
	}
	a.printf("Profile updated successfully!\n")
	for _, f := range fields(&saved) {
		a.printf("%-16s %s\n", f.label+":", f.display())
	}
	return nil
}
