// Package mongodb implements the entity store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

const (
	usersCollection         = "users"
	organizationsCollection = "organizations"
	projectsCollection      = "projects"
	tasksCollection         = "tasks"
	commentsCollection      = "comments"
)

// Connect opens a client and verifies it against the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_key")},
		},
		organizationsCollection: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("organizations_slug_key")},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		projectsCollection: {
			{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// NewStore returns the MongoDB implementations of every repository.
func NewStore(db *mongo.Database) ports.Store {
	return ports.Store{
		Users:         &UserRepository{coll: db.Collection(usersCollection)},
		Organizations: &OrganizationRepository{coll: db.Collection(organizationsCollection)},
		Projects: &ProjectRepository{
			coll:     db.Collection(projectsCollection),
			tasks:    db.Collection(tasksCollection),
			comments: db.Collection(commentsCollection),
		},
		Tasks: &TaskRepository{
			coll:     db.Collection(tasksCollection),
			comments: db.Collection(commentsCollection),
		},
		Comments: &CommentRepository{coll: db.Collection(commentsCollection)},
	}
}

// Pinger adapts a client to the health checker interface.
type Pinger struct {
	client *mongo.Client
}

// NewPinger creates a health checker for client.
func NewPinger(client *mongo.Client) *Pinger {
	return &Pinger{client: client}
}

// Ping checks the primary.
func (p *Pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

func notFound(err, target error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return target
	}
	return err
}

// duplicateOn reports whether err is a duplicate key error on the named index.
func duplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

func decodeAll[D any, T any](ctx context.Context, cursor *mongo.Cursor, convert func(*D) (*T, error)) ([]*T, error) {
	defer cursor.Close(ctx)

	out := make([]*T, 0)
	for cursor.Next(ctx) {
		var doc D
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		item, err := convert(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, cursor.Err()
}

func byCreation() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}
