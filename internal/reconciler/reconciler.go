// Package reconciler keeps a client-side copy of an organization's data in
// step with its change feed by refetching what each event affects.
package reconciler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// ErrStreamClosed is returned by Run when the event channel closes. Events
// may have been missed, so callers should resubscribe and Resync.
var ErrStreamClosed = errors.New("event stream closed")

// maxBatch bounds how many queued events are coalesced into one refresh pass.
const maxBatch = 64

// Kind names a client-side view that can be refetched.
type Kind string

const (
	KindProjectList Kind = "projects" // ID is the organization
	KindStats       Kind = "stats"    // ID is the organization
	KindProject     Kind = "project"  // ID is the project
	KindTask        Kind = "task"     // ID is the task
	KindComment     Kind = "comment"  // ID is the comment
)

// View identifies one thing to refetch. Deleted marks an entity view whose
// entity is gone: the refresher should evict it rather than fetch it.
type View struct {
	Kind    Kind
	ID      uuid.UUID
	Deleted bool
}

// Refresher refetches a single view.
type Refresher interface {
	Refresh(ctx context.Context, view View) error
}

// RefreshFunc adapts a plain function to Refresher.
type RefreshFunc func(ctx context.Context, view View) error

func (f RefreshFunc) Refresh(ctx context.Context, view View) error {
	return f(ctx, view)
}

// Affected lists the views an event invalidates. Project and task changes
// move the organization's project list (task counts) and its stats; comment
// changes only touch the comment itself.
func Affected(e domain.ChangeEvent) []View {
	deleted := e.EventType == domain.EventDeleted

	switch e.EntityType {
	case domain.EntityProject:
		return []View{
			{Kind: KindProjectList, ID: e.OrganizationID},
			{Kind: KindStats, ID: e.OrganizationID},
			{Kind: KindProject, ID: e.EntityID, Deleted: deleted},
		}
	case domain.EntityTask:
		return []View{
			{Kind: KindProjectList, ID: e.OrganizationID},
			{Kind: KindStats, ID: e.OrganizationID},
			{Kind: KindTask, ID: e.EntityID, Deleted: deleted},
		}
	case domain.EntityComment:
		return []View{{Kind: KindComment, ID: e.EntityID, Deleted: deleted}}
	default:
		return nil
	}
}

// Reconciler consumes a change feed and refreshes the affected views.
type Reconciler struct {
	refresher Refresher
	logger    *slog.Logger
}

// New creates a reconciler that refreshes views through refresher.
func New(refresher Refresher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		refresher: refresher,
		logger:    logger.With("component", "reconciler"),
	}
}

// Run refreshes views for every event until ctx is done (nil) or events is
// closed (ErrStreamClosed). Events already queued when one arrives are
// folded into the same pass, so a burst refetches each view once. A failed
// refresh is logged and does not stop the loop.
func (r *Reconciler) Run(ctx context.Context, events <-chan domain.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return ErrStreamClosed
			}

			batch, closed := drain(event, events)
			r.refresh(ctx, collect(batch))
			if closed {
				return ErrStreamClosed
			}
		}
	}
}

// Resync refreshes the organization-level views unconditionally, for use
// after (re)subscribing.
func (r *Reconciler) Resync(ctx context.Context, orgID uuid.UUID) {
	r.refresh(ctx, []View{
		{Kind: KindProjectList, ID: orgID},
		{Kind: KindStats, ID: orgID},
	})
}

func (r *Reconciler) refresh(ctx context.Context, views []View) {
	for _, view := range views {
		if ctx.Err() != nil {
			return
		}
		if err := r.refresher.Refresh(ctx, view); err != nil {
			r.logger.WarnContext(ctx, "refresh failed",
				"kind", view.Kind,
				"id", view.ID,
				"error", err,
			)
		}
	}
}

// drain takes first plus whatever is already queued, without blocking.
func drain(first domain.ChangeEvent, events <-chan domain.ChangeEvent) ([]domain.ChangeEvent, bool) {
	batch := []domain.ChangeEvent{first}
	for len(batch) < maxBatch {
		select {
		case event, ok := <-events:
			if !ok {
				return batch, true
			}
			batch = append(batch, event)
		default:
			return batch, false
		}
	}
	return batch, false
}

// collect merges the views of a batch in first-seen order. A later event
// for the same view decides whether it is deleted.
func collect(batch []domain.ChangeEvent) []View {
	type key struct {
		kind Kind
		id   uuid.UUID
	}

	index := make(map[key]int)
	var views []View
	for _, event := range batch {
		for _, view := range Affected(event) {
			k := key{view.Kind, view.ID}
			if i, ok := index[k]; ok {
				views[i].Deleted = view.Deleted
				continue
			}
			index[k] = len(views)
			views = append(views, view)
		}
	}
	return views
}
