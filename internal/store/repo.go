// Package store keeps the canonical in-memory projection of one owner's
// tasks and reconciles it with a Repository by invalidate-and-refetch.
package store

import (
	"context"
	"errors"

	"github.com/nick-dorsch/agenda/pkg/models"
)

var (
	ErrNotFound        = errors.New("task not found")
	ErrVersionConflict = errors.New("task version conflict")
	// ErrAtomicUnsupported is returned by Store.ForwardAtomic when the
	// repository cannot seal and create in one transaction.
	ErrAtomicUnsupported = errors.New("repository does not support atomic forward")
)

// Repository is the persistence boundary of the engine.
type Repository interface {
	Fetch(ctx context.Context, filter models.Filter) ([]models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	Insert(ctx context.Context, t models.Task) (models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id string) error
	// OnChange registers fn to run after any write touching ownerID's tasks.
	// The returned func removes the registration.
	OnChange(ownerID string, fn func(ctx context.Context)) func()
}

// Forwarder is implemented by repositories that can seal a predecessor and
// insert its successor atomically.
type Forwarder interface {
	ForwardAtomic(ctx context.Context, predecessorID string, seal models.TaskPatch, successor models.Task) (models.Task, models.Task, error)
}
