// Package store persists interview definitions and candidate responses.
package store

import (
	"context"
	"errors"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the durable persistence surface. All methods are safe for
// concurrent use.
type Store interface {
	CreateInterview(ctx context.Context, iv *types.Interview) error
	Interview(ctx context.Context, id string) (*types.Interview, error)
	UpdateInterview(ctx context.Context, iv *types.Interview) error
	ListInterviews(ctx context.Context) ([]*types.Interview, error)

	CreateResponse(ctx context.Context, rsp *types.Response) error
	Response(ctx context.Context, id string) (*types.Response, error)
	UpdateResponse(ctx context.Context, rsp *types.Response) error
	ResponsesForInterview(ctx context.Context, interviewID string) ([]*types.Response, error)

	// Ping verifies connectivity, used by readiness checks.
	Ping(ctx context.Context) error

	Close()
}
