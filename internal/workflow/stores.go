package workflow

import (
	"context"
	"errors"

	"github.com/devmatch/request-service/internal/domain"
)

// Store sentinels. Implementations translate their backend's errors into
// these; the engine never sees a driver error directly.
var (
	// ErrRequestMissing signals the request does not exist.
	ErrRequestMissing = errors.New("request not found")
	// ErrStaleStatus signals a compare-and-update lost the race: the stored
	// status no longer matches the expected one.
	ErrStaleStatus = errors.New("request status changed concurrently")
	// ErrNoMatch signals the developer has no application for the request.
	ErrNoMatch = errors.New("no match for developer")
)

// RequestStore is the engine's view of request persistence. Any backing
// store works: the postgres repository, the in-memory store used in tests,
// or anything else implementing these two methods.
type RequestStore interface {
	GetByID(ctx context.Context, id string) (*domain.Request, error)

	// CompareAndUpdate applies the patch only if the stored status still
	// equals expectedStatus, returning ErrStaleStatus otherwise. Nil pointer
	// fields in the patch are left untouched.
	CompareAndUpdate(ctx context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error)
}

// MatchReader looks up a developer's application for a request.
type MatchReader interface {
	GetByRequestAndDeveloper(ctx context.Context, requestID, developerID string) (*domain.Match, error)
}

// HistoryAppender persists audit entries. Append is best-effort from the
// engine's point of view: failures are logged, never surfaced as transition
// failures.
type HistoryAppender interface {
	Append(ctx context.Context, entry *domain.RequestHistory) error
}
