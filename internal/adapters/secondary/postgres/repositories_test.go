package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

func TestOrganizationRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	owner := seedUser(t, store)
	org := seedOrganization(t, store, owner)

	t.Run("get by id", func(t *testing.T) {
		got, err := store.Organizations.GetByID(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, org.Slug, got.Slug)
		assert.Equal(t, owner.ID, got.OwnerID)
	})

	t.Run("list by owner", func(t *testing.T) {
		second := seedOrganization(t, store, owner)
		seedOrganization(t, store, seedUser(t, store))

		orgs, err := store.Organizations.ListByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, orgs, 2)
		assert.Equal(t, org.ID, orgs[0].ID)
		assert.Equal(t, second.ID, orgs[1].ID)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		dup, err := domain.NewOrganization(domain.OrganizationParams{
			Name: "Copy", Slug: org.Slug, ContactEmail: "a@b.io",
		}, owner.ID)
		require.NoError(t, err)

		_, err = store.Organizations.Create(ctx, dup)
		assert.ErrorIs(t, err, apperrors.ErrSlugTaken)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Organizations.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrOrganizationNotFound)
	})
}

func TestProjectRepository_CRUDAndCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	org := seedOrganization(t, store, seedUser(t, store))

	project, err := domain.NewProject(domain.ProjectParams{Name: "Website"}, org.ID)
	require.NoError(t, err)
	project, err = store.Projects.Create(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectActive, project.Status)
	assert.Nil(t, project.DueDate)

	for _, status := range []domain.TaskStatus{domain.TaskTodo, domain.TaskDone, domain.TaskDone} {
		task, err := domain.NewTask(domain.TaskParams{Title: "t", Status: status}, project.ID)
		require.NoError(t, err)
		_, err = store.Tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	projects, err := store.Projects.ListByOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, 3, projects[0].TaskCount)
	assert.Equal(t, 2, projects[0].CompletedTasks)

	name := "Website v2"
	status := domain.ProjectOnHold
	require.NoError(t, project.Apply(domain.ProjectPatch{Name: &name, Status: &status}))
	updated, err := store.Projects.Update(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, "Website v2", updated.Name)
	assert.Equal(t, domain.ProjectOnHold, updated.Status)

	got, err := store.Projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Website v2", got.Name)
}

func TestProjectRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	author := seedUser(t, store)
	org := seedOrganization(t, store, author)

	project, err := domain.NewProject(domain.ProjectParams{Name: "Doomed"}, org.ID)
	require.NoError(t, err)
	_, err = store.Projects.Create(ctx, project)
	require.NoError(t, err)

	task, err := domain.NewTask(domain.TaskParams{Title: "child"}, project.ID)
	require.NoError(t, err)
	_, err = store.Tasks.Create(ctx, task)
	require.NoError(t, err)

	comment, err := domain.NewComment(task.ID, author.Principal(), "hello")
	require.NoError(t, err)
	_, err = store.Comments.Create(ctx, comment)
	require.NoError(t, err)

	require.NoError(t, store.Projects.Delete(ctx, project.ID))

	_, err = store.Projects.GetByID(ctx, project.ID)
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
	_, err = store.Tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	_, err = store.Comments.GetByID(ctx, comment.ID)
	assert.ErrorIs(t, err, apperrors.ErrCommentNotFound)

	assert.ErrorIs(t, store.Projects.Delete(ctx, project.ID), apperrors.ErrProjectNotFound)
}

func TestProjectRepository_Stats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	org := seedOrganization(t, store, seedUser(t, store))

	stats, err := store.Projects.Stats(ctx, org.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProjects)
	assert.Zero(t, stats.TotalTasks)

	for _, status := range []domain.ProjectStatus{domain.ProjectActive, domain.ProjectCompleted, domain.ProjectOnHold, domain.ProjectActive} {
		p, err := domain.NewProject(domain.ProjectParams{Name: "p", Status: status}, org.ID)
		require.NoError(t, err)
		_, err = store.Projects.Create(ctx, p)
		require.NoError(t, err)

		task, err := domain.NewTask(domain.TaskParams{Title: "t", Status: domain.TaskDone}, p.ID)
		require.NoError(t, err)
		_, err = store.Tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	stats, err = store.Projects.Stats(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalProjects)
	assert.Equal(t, 2, stats.ActiveProjects)
	assert.Equal(t, 1, stats.CompletedProjects)
	assert.Equal(t, 1, stats.OnHoldProjects)
	assert.Equal(t, 4, stats.TotalTasks)
	assert.Equal(t, 4, stats.CompletedTasks)
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	author := seedUser(t, store)
	org := seedOrganization(t, store, author)

	project, err := domain.NewProject(domain.ProjectParams{Name: "p"}, org.ID)
	require.NoError(t, err)
	_, err = store.Projects.Create(ctx, project)
	require.NoError(t, err)

	task, err := domain.NewTask(domain.TaskParams{Title: "Write docs", AssigneeEmail: "dev@acme.io"}, project.ID)
	require.NoError(t, err)
	_, err = store.Tasks.Create(ctx, task)
	require.NoError(t, err)

	tasks, err := store.Tasks.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "dev@acme.io", tasks[0].AssigneeEmail)
	assert.Equal(t, domain.TaskTodo, tasks[0].Status)

	done := domain.TaskDone
	require.NoError(t, task.Apply(domain.TaskPatch{Status: &done}))
	updated, err := store.Tasks.Update(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, updated.Status)

	comment, err := domain.NewComment(task.ID, author.Principal(), "done!")
	require.NoError(t, err)
	_, err = store.Comments.Create(ctx, comment)
	require.NoError(t, err)

	require.NoError(t, store.Tasks.Delete(ctx, task.ID))
	_, err = store.Comments.GetByID(ctx, comment.ID)
	assert.ErrorIs(t, err, apperrors.ErrCommentNotFound)

	_, err = store.Tasks.Update(ctx, task)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestCommentRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	author := seedUser(t, store)
	org := seedOrganization(t, store, author)

	project, err := domain.NewProject(domain.ProjectParams{Name: "p"}, org.ID)
	require.NoError(t, err)
	_, err = store.Projects.Create(ctx, project)
	require.NoError(t, err)
	task, err := domain.NewTask(domain.TaskParams{Title: "t"}, project.ID)
	require.NoError(t, err)
	_, err = store.Tasks.Create(ctx, task)
	require.NoError(t, err)

	first, err := domain.NewComment(task.ID, author.Principal(), "first")
	require.NoError(t, err)
	_, err = store.Comments.Create(ctx, first)
	require.NoError(t, err)
	second, err := domain.NewComment(task.ID, author.Principal(), "second")
	require.NoError(t, err)
	_, err = store.Comments.Create(ctx, second)
	require.NoError(t, err)

	comments, err := store.Comments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, author.Email, comments[0].AuthorEmail)

	require.NoError(t, store.Comments.Delete(ctx, first.ID))
	assert.ErrorIs(t, store.Comments.Delete(ctx, first.ID), apperrors.ErrCommentNotFound)

	comments, err = store.Comments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "second", comments[0].Content)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tm := NewTransactionManager(testPool)

	user := &domain.User{ID: uuid.New(), Email: uniqueEmail(), FullName: "Tx", HashedPassword: "h"}
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := store.Users.Create(ctx, user); err != nil {
			return err
		}
		return apperrors.ErrInternal
	})
	require.ErrorIs(t, err, apperrors.ErrInternal)

	_, err = store.Users.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
