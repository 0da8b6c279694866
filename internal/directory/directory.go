// Package directory defines the narrow interface to the business-object
// collaborator. The trust-and-audit core treats business persistence as
// external: it only needs to fetch a before-snapshot, apply an after-state,
// and list — the storage format belongs to the collaborator.
package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory: not found")

// Store holds workspace-scoped business objects (customers, invoices,
// expenses, tasks) as structured snapshots.
type Store interface {
	Get(ctx context.Context, workspaceID, resourceType, id string) (map[string]any, error)
	List(ctx context.Context, workspaceID, resourceType string) ([]map[string]any, error)
	Put(ctx context.Context, workspaceID, resourceType, id string, obj map[string]any) error
	Delete(ctx context.Context, workspaceID, resourceType, id string) error
}
