package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

type recorder struct {
	mu    sync.Mutex
	views []View
	fail  map[Kind]bool
}

func (r *recorder) Refresh(_ context.Context, view View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
	if r.fail[view.Kind] {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func TestAffected(t *testing.T) {
	orgID, entityID := uuid.New(), uuid.New()

	tests := []struct {
		name  string
		event domain.ChangeEvent
		want  []View
	}{
		{
			name:  "project update",
			event: domain.NewChangeEvent(domain.EventUpdated, domain.EntityProject, entityID, orgID),
			want: []View{
				{Kind: KindProjectList, ID: orgID},
				{Kind: KindStats, ID: orgID},
				{Kind: KindProject, ID: entityID},
			},
		},
		{
			name:  "task delete",
			event: domain.NewChangeEvent(domain.EventDeleted, domain.EntityTask, entityID, orgID),
			want: []View{
				{Kind: KindProjectList, ID: orgID},
				{Kind: KindStats, ID: orgID},
				{Kind: KindTask, ID: entityID, Deleted: true},
			},
		},
		{
			name:  "comment create",
			event: domain.NewChangeEvent(domain.EventCreated, domain.EntityComment, entityID, orgID),
			want:  []View{{Kind: KindComment, ID: entityID}},
		},
		{
			name:  "unknown entity",
			event: domain.NewChangeEvent(domain.EventCreated, "WIDGET", entityID, orgID),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Affected(tt.event))
		})
	}
}

func TestRun_CoalescesQueuedEvents(t *testing.T) {
	orgID, taskID, projectID := uuid.New(), uuid.New(), uuid.New()

	events := make(chan domain.ChangeEvent, 4)
	events <- domain.NewChangeEvent(domain.EventUpdated, domain.EntityTask, taskID, orgID)
	events <- domain.NewChangeEvent(domain.EventUpdated, domain.EntityTask, taskID, orgID)
	events <- domain.NewChangeEvent(domain.EventUpdated, domain.EntityProject, projectID, orgID)
	events <- domain.NewChangeEvent(domain.EventDeleted, domain.EntityProject, projectID, orgID)
	close(events)

	rec := &recorder{}
	err := New(rec, logging.Discard()).Run(context.Background(), events)

	require.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, []View{
		{Kind: KindProjectList, ID: orgID},
		{Kind: KindStats, ID: orgID},
		{Kind: KindTask, ID: taskID},
		{Kind: KindProject, ID: projectID, Deleted: true},
	}, rec.Views())
}

func TestRun_ProcessesEventsAsTheyArrive(t *testing.T) {
	orgID := uuid.New()
	events := make(chan domain.ChangeEvent)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(rec, logging.Discard()).Run(ctx, events) }()

	commentID := uuid.New()
	events <- domain.NewChangeEvent(domain.EventCreated, domain.EntityComment, commentID, orgID)
	require.Eventually(t, func() bool { return len(rec.Views()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, View{Kind: KindComment, ID: commentID}, rec.Views()[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_RefreshFailureDoesNotStopLoop(t *testing.T) {
	orgID, projectID := uuid.New(), uuid.New()
	events := make(chan domain.ChangeEvent, 1)
	events <- domain.NewChangeEvent(domain.EventCreated, domain.EntityProject, projectID, orgID)
	close(events)

	rec := &recorder{fail: map[Kind]bool{KindProjectList: true}}
	err := New(rec, logging.Discard()).Run(context.Background(), events)

	require.ErrorIs(t, err, ErrStreamClosed)
	assert.Len(t, rec.Views(), 3)
}

func TestResync(t *testing.T) {
	orgID := uuid.New()
	var got []View
	refresh := RefreshFunc(func(_ context.Context, view View) error {
		got = append(got, view)
		return nil
	})

	New(refresh, logging.Discard()).Resync(context.Background(), orgID)

	assert.Equal(t, []View{
		{Kind: KindProjectList, ID: orgID},
		{Kind: KindStats, ID: orgID},
	}, got)
}
