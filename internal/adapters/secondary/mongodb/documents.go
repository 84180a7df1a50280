package mongodb

import (
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// BSON documents are kept local so the domain carries no storage tags.
// Ids are stored as canonical strings.

type userDocument struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	FullName       string    `bson:"fullName"`
	HashedPassword string    `bson:"passwordHash"`
	CreatedAt      time.Time `bson:"createdAt"`
}

type organizationDocument struct {
	ID           string    `bson:"_id"`
	OwnerID      string    `bson:"ownerId"`
	Name         string    `bson:"name"`
	Slug         string    `bson:"slug"`
	ContactEmail string    `bson:"contactEmail"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type projectDocument struct {
	ID             string     `bson:"_id"`
	OrganizationID string     `bson:"organizationId"`
	Name           string     `bson:"name"`
	Description    string     `bson:"description"`
	Status         string     `bson:"status"`
	DueDate        *time.Time `bson:"dueDate"`
	CreatedAt      time.Time  `bson:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

type taskDocument struct {
	ID            string     `bson:"_id"`
	ProjectID     string     `bson:"projectId"`
	Title         string     `bson:"title"`
	Description   string     `bson:"description"`
	Status        string     `bson:"status"`
	AssigneeEmail string     `bson:"assigneeEmail"`
	DueDate       *time.Time `bson:"dueDate"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

type commentDocument struct {
	ID          string    `bson:"_id"`
	TaskID      string    `bson:"taskId"`
	Content     string    `bson:"content"`
	AuthorID    string    `bson:"authorId"`
	AuthorEmail string    `bson:"authorEmail"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// Mongo keeps millisecond precision, so timestamps are truncated on the way in.
func toMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func toMillisPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := toMillis(*t)
	return &v
}

func toUserDocument(u *domain.User) *userDocument {
	return &userDocument{
		ID:             u.ID.String(),
		Email:          u.Email,
		FullName:       u.FullName,
		HashedPassword: u.HashedPassword,
		CreatedAt:      toMillis(u.CreatedAt),
	}
}

func fromUserDocument(d *userDocument) (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:             id,
		Email:          d.Email,
		FullName:       d.FullName,
		HashedPassword: d.HashedPassword,
		CreatedAt:      d.CreatedAt.UTC(),
	}, nil
}

func toOrganizationDocument(o *domain.Organization) *organizationDocument {
	return &organizationDocument{
		ID:           o.ID.String(),
		OwnerID:      o.OwnerID.String(),
		Name:         o.Name,
		Slug:         o.Slug,
		ContactEmail: o.ContactEmail,
		CreatedAt:    toMillis(o.CreatedAt),
	}
}

func fromOrganizationDocument(d *organizationDocument) (*domain.Organization, error) {
	ids, err := parseIDs(d.ID, d.OwnerID)
	if err != nil {
		return nil, err
	}
	return &domain.Organization{
		ID:           ids[0],
		OwnerID:      ids[1],
		Name:         d.Name,
		Slug:         d.Slug,
		ContactEmail: d.ContactEmail,
		CreatedAt:    d.CreatedAt.UTC(),
	}, nil
}

func toProjectDocument(p *domain.Project) *projectDocument {
	return &projectDocument{
		ID:             p.ID.String(),
		OrganizationID: p.OrganizationID.String(),
		Name:           p.Name,
		Description:    p.Description,
		Status:         string(p.Status),
		DueDate:        toMillisPtr(p.DueDate),
		CreatedAt:      toMillis(p.CreatedAt),
		UpdatedAt:      toMillis(p.UpdatedAt),
	}
}

func fromProjectDocument(d *projectDocument) (*domain.Project, error) {
	ids, err := parseIDs(d.ID, d.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &domain.Project{
		ID:             ids[0],
		OrganizationID: ids[1],
		Name:           d.Name,
		Description:    d.Description,
		Status:         domain.ProjectStatus(d.Status),
		DueDate:        toMillisPtr(d.DueDate),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}

func toTaskDocument(t *domain.Task) *taskDocument {
	return &taskDocument{
		ID:            t.ID.String(),
		ProjectID:     t.ProjectID.String(),
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		AssigneeEmail: t.AssigneeEmail,
		DueDate:       toMillisPtr(t.DueDate),
		CreatedAt:     toMillis(t.CreatedAt),
		UpdatedAt:     toMillis(t.UpdatedAt),
	}
}

func fromTaskDocument(d *taskDocument) (*domain.Task, error) {
	ids, err := parseIDs(d.ID, d.ProjectID)
	if err != nil {
		return nil, err
	}
	return &domain.Task{
		ID:            ids[0],
		ProjectID:     ids[1],
		Title:         d.Title,
		Description:   d.Description,
		Status:        domain.TaskStatus(d.Status),
		AssigneeEmail: d.AssigneeEmail,
		DueDate:       toMillisPtr(d.DueDate),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

func toCommentDocument(c *domain.Comment) *commentDocument {
	return &commentDocument{
		ID:          c.ID.String(),
		TaskID:      c.TaskID.String(),
		Content:     c.Content,
		AuthorID:    c.AuthorID.String(),
		AuthorEmail: c.AuthorEmail,
		CreatedAt:   toMillis(c.CreatedAt),
	}
}

func fromCommentDocument(d *commentDocument) (*domain.Comment, error) {
	ids, err := parseIDs(d.ID, d.TaskID, d.AuthorID)
	if err != nil {
		return nil, err
	}
	return &domain.Comment{
		ID:          ids[0],
		TaskID:      ids[1],
		Content:     d.Content,
		AuthorID:    ids[2],
		AuthorEmail: d.AuthorEmail,
		CreatedAt:   d.CreatedAt.UTC(),
	}, nil
}

func parseIDs(values ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
