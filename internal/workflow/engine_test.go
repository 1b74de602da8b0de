package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/events"
	"github.com/devmatch/request-service/internal/repository"
	"github.com/devmatch/request-service/internal/workflow"
)

type engineFixture struct {
	engine   *workflow.Engine
	requests *repository.MemoryRequestRepository
	matches  *repository.MemoryMatchRepository
	history  *repository.MemoryHistoryRepository
	events   *capturingDispatcher
}

// capturingDispatcher records every published event for assertions.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) captured() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		requests: repository.NewMemoryRequestRepository(),
		matches:  repository.NewMemoryMatchRepository(),
		history:  repository.NewMemoryHistoryRepository(),
		events:   &capturingDispatcher{},
	}
	f.engine = workflow.NewEngine(workflow.EngineDependencies{
		Requests:   f.requests,
		Matches:    f.matches,
		History:    f.history,
		Dispatcher: f.events,
	})
	return f
}

func (f *engineFixture) seedRequest(t *testing.T, status domain.RequestStatus) *domain.Request {
	t.Helper()
	req := &domain.Request{
		ClientID:    "client-1",
		Title:       "Fix checkout flow",
		Description: "Payment button does nothing on mobile",
		Status:      status,
	}
	require.NoError(t, f.requests.Create(context.Background(), req))
	return req
}

func (f *engineFixture) seedMatch(t *testing.T, requestID, developerID string, status domain.MatchStatus) *domain.Match {
	t.Helper()
	match := &domain.Match{
		RequestID:   requestID,
		DeveloperID: developerID,
		Status:      status,
		Pitch:       "I have done this before",
	}
	require.NoError(t, f.matches.Create(context.Background(), match))
	return match
}

func kindOf(t *testing.T, err error) workflow.ErrorKind {
	t.Helper()
	var terr *workflow.TransitionError
	require.ErrorAs(t, err, &terr)
	return terr.Kind
}

func TestAttemptTransitionHappyPath(t *testing.T) {
	f := newEngineFixture(t)
	req := f.seedRequest(t, domain.StatusSubmitted)

	updated, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: "pending_match",
		ActingRole:      domain.RoleSystem,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, updated.Status)

	entries, err := f.history.ListByRequest(context.Background(), req.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChangeTypeStatus, entries[0].ChangeType)
	assert.Equal(t, domain.StatusSubmitted, entries[0].PreviousStatus)
	assert.Equal(t, domain.StatusPendingMatch, entries[0].NewStatus)
	assert.Equal(t, domain.RoleSystem, entries[0].ChangedByRole)

	captured := f.events.captured()
	require.Len(t, captured, 1)
	assert.Equal(t, events.EventRequestStatusChanged, captured[0].Type)
	payload, ok := captured[0].Payload.(events.RequestStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPendingMatch, payload.NewStatus)
}

func TestAttemptTransitionNormalizesInput(t *testing.T) {
	f := newEngineFixture(t)
	req := f.seedRequest(t, domain.StatusSubmitted)

	updated, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: " Pending-Match ",
		ActingRole:      domain.RoleSystem,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, updated.Status)
}

func TestAttemptTransitionIdempotentNoOp(t *testing.T) {
	f := newEngineFixture(t)
	req := f.seedRequest(t, domain.StatusPendingMatch)

	updated, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: "pending_match",
		ActingRole:      domain.RoleClient,
		ActorID:         "client-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, updated.Status)

	// A no-op writes nothing: no audit entry, no event.
	entries, err := f.history.ListByRequest(context.Background(), req.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.events.captured())
}

func TestAttemptTransitionUnknownRequest(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       "missing",
		RequestedStatus: "pending_match",
		ActingRole:      domain.RoleSystem,
	})
	assert.Equal(t, workflow.ErrNotFound, kindOf(t, err))
}

func TestAttemptTransitionUnknownStatus(t *testing.T) {
	f := newEngineFixture(t)
	req := f.seedRequest(t, domain.StatusPendingMatch)

	_, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: "escalated",
		ActingRole:      domain.RoleClient,
		ActorID:         "client-1",
	})
	assert.Equal(t, workflow.ErrInvalidStatus, kindOf(t, err))
}

func TestAttemptTransitionForbiddenEdge(t *testing.T) {
	f := newEngineFixture(t)

	cases := []struct {
		name      string
		from      domain.RequestStatus
		requested string
		role      domain.Role
	}{
		{"client skips to in_progress", domain.StatusPendingMatch, "in_progress", domain.RoleClient},
		{"developer skips to approved", domain.StatusPendingMatch, "approved", domain.RoleDeveloper},
		{"developer passes own QA", domain.StatusReadyForQA, "qa_pass", domain.RoleDeveloper},
		{"system resolves", domain.StatusReadyForFinalAction, "resolved", domain.RoleSystem},
		{"client leaves resolved", domain.StatusResolved, "reopened", domain.RoleClient},
		{"system revives cancelled", domain.StatusCancelledByClient, "pending_match", domain.RoleSystem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.seedRequest(t, tc.from)
			_, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
				RequestID:       req.ID,
				RequestedStatus: tc.requested,
				ActingRole:      tc.role,
				ActorID:         "actor-1",
			})
			assert.Equal(t, workflow.ErrForbidden, kindOf(t, err))
		})
	}
}

func TestUniversalClientCancel(t *testing.T) {
	f := newEngineFixture(t)

	for _, status := range domain.AllStatuses {
		if status.IsTerminal() {
			continue
		}
		req := f.seedRequest(t, status)
		updated, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "cancelled_by_client",
			ActingRole:      domain.RoleClient,
			ActorID:         "client-1",
		})
		require.NoError(t, err, "client cancel from %s", status)
		assert.Equal(t, domain.StatusCancelledByClient, updated.Status)
	}
}

func TestDeveloperEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("applying needs no match", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusPendingMatch)

		updated, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "dev_requested",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDevRequested, updated.Status)
	})

	t.Run("no match at all", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)

		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		assert.Equal(t, workflow.ErrNotAssigned, kindOf(t, err))
	})

	t.Run("pending match is not enough", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-1", domain.MatchPending)

		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		assert.Equal(t, workflow.ErrNotAssigned, kindOf(t, err))
	})

	t.Run("rejected match is not enough", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-1", domain.MatchRejected)

		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		assert.Equal(t, workflow.ErrNotAssigned, kindOf(t, err))
	})

	t.Run("approved match unlocks work", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-1", domain.MatchApproved)

		updated, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReadyForQA, updated.Status)
	})

	t.Run("abandoning needs any match", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-1", domain.MatchPending)

		updated, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "abandoned_by_dev",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAbandonedByDev, updated.Status)
	})

	t.Run("abandoning without any match", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)

		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "abandoned_by_dev",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		assert.Equal(t, workflow.ErrNotAssigned, kindOf(t, err))
	})

	t.Run("another developer's match does not count", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-2", domain.MatchApproved)

		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		assert.Equal(t, workflow.ErrNotAssigned, kindOf(t, err))
	})
}

func TestStatusEntryHooks(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	newFrozenEngine := func(f *engineFixture) *workflow.Engine {
		return workflow.NewEngine(workflow.EngineDependencies{
			Requests:   f.requests,
			Matches:    f.matches,
			History:    f.history,
			Dispatcher: f.events,
			Clock:      func() time.Time { return frozen },
		})
	}

	t.Run("entering ready_for_qa stamps QAStartedAt", func(t *testing.T) {
		f := newEngineFixture(t)
		engine := newFrozenEngine(f)
		req := f.seedRequest(t, domain.StatusInProgress)
		f.seedMatch(t, req.ID, "dev-1", domain.MatchApproved)

		updated, err := engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "ready_for_qa",
			ActingRole:      domain.RoleDeveloper,
			ActorID:         "dev-1",
		})
		require.NoError(t, err)
		require.NotNil(t, updated.QAStartedAt)
		assert.True(t, updated.QAStartedAt.Equal(frozen))
		assert.Nil(t, updated.CompletedAt)
	})

	t.Run("entering qa_fail stamps ReviewStartedAt", func(t *testing.T) {
		f := newEngineFixture(t)
		engine := newFrozenEngine(f)
		req := f.seedRequest(t, domain.StatusReadyForQA)

		updated, err := engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "qa_fail",
			ActingRole:      domain.RoleClient,
			ActorID:         "client-1",
		})
		require.NoError(t, err)
		require.NotNil(t, updated.ReviewStartedAt)
		assert.True(t, updated.ReviewStartedAt.Equal(frozen))
	})

	t.Run("entering resolved stamps CompletedAt", func(t *testing.T) {
		f := newEngineFixture(t)
		engine := newFrozenEngine(f)
		req := f.seedRequest(t, domain.StatusReadyForFinalAction)

		updated, err := engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: "resolved",
			ActingRole:      domain.RoleClient,
			ActorID:         "client-1",
		})
		require.NoError(t, err)
		require.NotNil(t, updated.CompletedAt)
		assert.True(t, updated.CompletedAt.Equal(frozen))
	})
}

// failingHistory always rejects appends.
type failingHistory struct{}

func (failingHistory) Append(context.Context, *domain.RequestHistory) error {
	return errors.New("history store down")
}

func TestHistoryFailureDoesNotBlockTransition(t *testing.T) {
	f := newEngineFixture(t)
	engine := workflow.NewEngine(workflow.EngineDependencies{
		Requests:   f.requests,
		Matches:    f.matches,
		History:    failingHistory{},
		Dispatcher: f.events,
	})
	req := f.seedRequest(t, domain.StatusSubmitted)

	updated, err := engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: "pending_match",
		ActingRole:      domain.RoleSystem,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, updated.Status)

	// The status change event still goes out.
	assert.Len(t, f.events.captured(), 1)
}

// staleOnUpdate simulates a concurrent writer changing the status between
// the engine's read and its conditional write.
type staleOnUpdate struct {
	*repository.MemoryRequestRepository
}

func (s staleOnUpdate) CompareAndUpdate(context.Context, string, domain.RequestStatus, domain.RequestPatch) (*domain.Request, error) {
	return nil, workflow.ErrStaleStatus
}

func TestConcurrentWriterLosesWithConflict(t *testing.T) {
	f := newEngineFixture(t)
	engine := workflow.NewEngine(workflow.EngineDependencies{
		Requests:   staleOnUpdate{f.requests},
		Matches:    f.matches,
		History:    f.history,
		Dispatcher: f.events,
	})
	req := f.seedRequest(t, domain.StatusReadyForQA)

	_, err := engine.AttemptTransition(context.Background(), workflow.TransitionInput{
		RequestID:       req.ID,
		RequestedStatus: "qa_pass",
		ActingRole:      domain.RoleClient,
		ActorID:         "client-1",
	})
	assert.Equal(t, workflow.ErrConflict, kindOf(t, err))

	// Loser writes no history and publishes nothing.
	entries, listErr := f.history.ListByRequest(context.Background(), req.ID, 10, 0)
	require.NoError(t, listErr)
	assert.Empty(t, entries)
	assert.Empty(t, f.events.captured())
}

func TestConcurrentRaceLeavesOneWinner(t *testing.T) {
	f := newEngineFixture(t)
	req := f.seedRequest(t, domain.StatusReadyForQA)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requested := "qa_pass"
			if i%2 == 1 {
				requested = "qa_fail"
			}
			_, err := f.engine.AttemptTransition(context.Background(), workflow.TransitionInput{
				RequestID:       req.ID,
				RequestedStatus: requested,
				ActingRole:      domain.RoleClient,
				ActorID:         "client-1",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	// Late readers that request the status the winner already applied are
	// idempotent no-ops, so nil results may outnumber one. The audit trail is
	// the ground truth: exactly one transition was applied.
	for _, err := range results {
		if err == nil {
			continue
		}
		kind := kindOf(t, err)
		assert.Contains(t, []workflow.ErrorKind{workflow.ErrConflict, workflow.ErrForbidden}, kind)
	}

	entries, err := f.history.ListByRequest(context.Background(), req.ID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	final, err := f.requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.RequestStatus{domain.StatusQAPass, domain.StatusQAFail}, final.Status)
}

func TestFullLifecycleAuditTrail(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	req := f.seedRequest(t, domain.StatusSubmitted)
	f.seedMatch(t, req.ID, "dev-1", domain.MatchApproved)

	steps := []struct {
		status string
		role   domain.Role
		actor  string
	}{
		{"pending_match", domain.RoleSystem, ""},
		{"dev_requested", domain.RoleDeveloper, "dev-1"},
		{"awaiting_client_approval", domain.RoleSystem, ""},
		{"approved", domain.RoleClient, "client-1"},
		{"requirements_review", domain.RoleDeveloper, "dev-1"},
		{"in_progress", domain.RoleDeveloper, "dev-1"},
		{"ready_for_qa", domain.RoleDeveloper, "dev-1"},
		{"qa_fail", domain.RoleClient, "client-1"},
		{"in_progress", domain.RoleDeveloper, "dev-1"},
		{"ready_for_qa", domain.RoleDeveloper, "dev-1"},
		{"qa_pass", domain.RoleClient, "client-1"},
		{"ready_for_final_action", domain.RoleSystem, ""},
		{"resolved", domain.RoleClient, "client-1"},
	}
	for _, step := range steps {
		_, err := f.engine.AttemptTransition(ctx, workflow.TransitionInput{
			RequestID:       req.ID,
			RequestedStatus: step.status,
			ActingRole:      step.role,
			ActorID:         step.actor,
		})
		require.NoError(t, err, "transition to %s as %s", step.status, step.role)
	}

	final, err := f.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, final.Status)
	assert.NotNil(t, final.QAStartedAt)
	assert.NotNil(t, final.ReviewStartedAt)
	assert.NotNil(t, final.CompletedAt)

	// One audit entry per applied transition, in order, each chaining from
	// the previous entry's new status.
	entries, err := f.history.ListByRequest(ctx, req.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, entries, len(steps))
	previous := domain.StatusSubmitted
	for i, entry := range entries {
		assert.Equal(t, previous, entry.PreviousStatus, "entry %d", i)
		assert.Equal(t, workflow.Normalize(steps[i].status), entry.NewStatus, "entry %d", i)
		previous = entry.NewStatus
	}
}
