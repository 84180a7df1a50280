package mongodb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

var (
	_ ports.UserRepository         = (*UserRepository)(nil)
	_ ports.OrganizationRepository = (*OrganizationRepository)(nil)
	_ ports.ProjectRepository      = (*ProjectRepository)(nil)
	_ ports.TaskRepository         = (*TaskRepository)(nil)
	_ ports.CommentRepository      = (*CommentRepository)(nil)
)

// --- Users ---

type UserRepository struct {
	coll *mongo.Collection
}

// Create inserts user. The unique email index maps to ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := toUserDocument(user)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if duplicateOn(err, "users_email_key") {
			return nil, apperrors.ErrUserExists
		}
		return nil, err
	}
	return fromUserDocument(doc)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	return fromUserDocument(&doc)
}

// --- Organizations ---

type OrganizationRepository struct {
	coll *mongo.Collection
}

// Create inserts org. The unique slug index maps to ErrSlugTaken.
func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error) {
	doc := toOrganizationDocument(org)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if duplicateOn(err, "organizations_slug_key") {
			return nil, apperrors.ErrSlugTaken
		}
		return nil, err
	}
	return fromOrganizationDocument(doc)
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var doc organizationDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err, apperrors.ErrOrganizationNotFound)
	}
	return fromOrganizationDocument(&doc)
}

func (r *OrganizationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Organization, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID.String()}, byCreation())
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor, fromOrganizationDocument)
}

// --- Projects ---

// ProjectRepository deletes children with ordered DeleteMany calls. A
// standalone server has no multi-document transactions, so a failure part
// way leaves orphaned children that are unreachable through the API.
type ProjectRepository struct {
	coll     *mongo.Collection
	tasks    *mongo.Collection
	comments *mongo.Collection
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	doc := toProjectDocument(project)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return fromProjectDocument(doc)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var doc projectDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound)
	}
	return fromProjectDocument(&doc)
}

type taskCounts struct {
	ProjectID string `bson:"_id"`
	Total     int    `bson:"total"`
	Done      int    `bson:"done"`
}

// ListByOrganization returns the organization's projects, oldest first, with
// task counts from one aggregation.
func (r *ProjectRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.Project, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"organizationId": orgID.String()}, byCreation())
	if err != nil {
		return nil, err
	}
	projects, err := decodeAll(ctx, cursor, fromProjectDocument)
	if err != nil || len(projects) == 0 {
		return projects, err
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID.String()
	}

	counts, err := r.countTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if c, ok := counts[p.ID.String()]; ok {
			p.TaskCount = c.Total
			p.CompletedTasks = c.Done
		}
	}
	return projects, nil
}

func (r *ProjectRepository) countTasks(ctx context.Context, projectIDs []string) (map[string]taskCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"projectId": bson.M{"$in": projectIDs}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$projectId"},
			{Key: "total", Value: bson.M{"$sum": 1}},
			{Key: "done", Value: bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(domain.TaskDone)}}, 1, 0},
			}}},
		}}},
	}

	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []taskCounts
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make(map[string]taskCounts, len(rows))
	for _, row := range rows {
		out[row.ProjectID] = row
	}
	return out, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	doc := toProjectDocument(project)
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"status":      doc.Status,
		"dueDate":     doc.DueDate,
		"updatedAt":   doc.UpdatedAt,
	}})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, apperrors.ErrProjectNotFound
	}
	return r.GetByID(ctx, project.ID)
}

// Delete removes comments, then tasks, then the project.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	taskIDs, err := r.tasks.Distinct(ctx, "_id", bson.M{"projectId": id.String()})
	if err != nil {
		return fmt.Errorf("find project tasks: %w", err)
	}
	if len(taskIDs) > 0 {
		if _, err := r.comments.DeleteMany(ctx, bson.M{"taskId": bson.M{"$in": taskIDs}}); err != nil {
			return fmt.Errorf("delete project comments: %w", err)
		}
	}
	if _, err := r.tasks.DeleteMany(ctx, bson.M{"projectId": id.String()}); err != nil {
		return fmt.Errorf("delete project tasks: %w", err)
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrProjectNotFound
	}
	return nil
}

type statusCount struct {
	Status string `bson:"_id"`
	Count  int    `bson:"count"`
}

// Stats counts projects by status with one aggregation and tasks with a
// second one over the organization's project ids.
func (r *ProjectRepository) Stats(ctx context.Context, orgID uuid.UUID) (*domain.ProjectStats, error) {
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"organizationId": orgID.String()}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	var rows []statusCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	var stats domain.ProjectStats
	for _, row := range rows {
		stats.TotalProjects += row.Count
		switch domain.ProjectStatus(row.Status) {
		case domain.ProjectActive:
			stats.ActiveProjects = row.Count
		case domain.ProjectCompleted:
			stats.CompletedProjects = row.Count
		case domain.ProjectOnHold:
			stats.OnHoldProjects = row.Count
		}
	}
	if stats.TotalProjects == 0 {
		return &stats, nil
	}

	projectIDs, err := r.coll.Distinct(ctx, "_id", bson.M{"organizationId": orgID.String()})
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	ids := make([]string, 0, len(projectIDs))
	for _, v := range projectIDs {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}

	counts, err := r.countTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.TotalTasks += c.Total
		stats.CompletedTasks += c.Done
	}
	return &stats, nil
}

// --- Tasks ---

type TaskRepository struct {
	coll     *mongo.Collection
	comments *mongo.Collection
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	doc := toTaskDocument(task)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return fromTaskDocument(doc)
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var doc taskDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound)
	}
	return fromTaskDocument(&doc)
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"projectId": projectID.String()}, byCreation())
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor, fromTaskDocument)
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	doc := toTaskDocument(task)
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{
		"title":         doc.Title,
		"description":   doc.Description,
		"status":        doc.Status,
		"assigneeEmail": doc.AssigneeEmail,
		"dueDate":       doc.DueDate,
		"updatedAt":     doc.UpdatedAt,
	}})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, apperrors.ErrTaskNotFound
	}
	return r.GetByID(ctx, task.ID)
}

// Delete removes the task's comments before the task.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.comments.DeleteMany(ctx, bson.M{"taskId": id.String()}); err != nil {
		return fmt.Errorf("delete task comments: %w", err)
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

// --- Comments ---

type CommentRepository struct {
	coll *mongo.Collection
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	doc := toCommentDocument(comment)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return fromCommentDocument(doc)
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	var doc commentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err, apperrors.ErrCommentNotFound)
	}
	return fromCommentDocument(&doc)
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"taskId": taskID.String()}, byCreation())
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor, fromCommentDocument)
}

func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrCommentNotFound
	}
	return nil
}
