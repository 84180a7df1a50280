package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

const MaxCommentLength = 5000

type Comment struct {
	ID          uuid.UUID
	TaskID      uuid.UUID
	Content     string
	AuthorID    uuid.UUID
	AuthorEmail string
	CreatedAt   time.Time
}

// NewComment creates a comment on taskID written by author.
func NewComment(taskID uuid.UUID, author Principal, content string) (*Comment, error) {
	errs := apperrors.NewValidationErrors()

	content = strings.TrimSpace(content)
	if content == "" {
		errs.Add("content", "Content is required")
	} else if len(content) > MaxCommentLength {
		errs.Add("content", "Content must be 5000 characters or less")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	return &Comment{
		ID:          uuid.New(),
		TaskID:      taskID,
		Content:     content,
		AuthorID:    author.UserID,
		AuthorEmail: author.Email,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// IsAuthoredBy reports whether userID wrote the comment.
func (c *Comment) IsAuthoredBy(userID uuid.UUID) bool {
	return c.AuthorID == userID
}
