package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/devmatch/request-service/internal/domain"
)

// Recorder builds immutable audit entries for validated transitions.
// Building an entry never fails; only its persistence can, and that is
// handled by the engine.
type Recorder struct {
	now func() time.Time
}

// NewRecorder constructs a recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record produces a STATUS_CHANGE history entry for a completed transition.
// The caller's details map is copied, never annotated in place.
func (r *Recorder) Record(requestID string, previous, next domain.RequestStatus, actorID string, role domain.Role, details map[string]any) *domain.RequestHistory {
	annotated := make(map[string]any, len(details)+2)
	for key, value := range details {
		annotated[key] = value
	}
	annotated["previous_label"] = LabelOf(previous)
	annotated["new_label"] = LabelOf(next)
	return &domain.RequestHistory{
		ID:             uuid.NewString(),
		RequestID:      requestID,
		ChangeType:     domain.ChangeTypeStatus,
		PreviousStatus: previous,
		NewStatus:      next,
		ChangedBy:      actorID,
		ChangedByRole:  role,
		ChangedAt:      r.now(),
		Details:        annotated,
	}
}
