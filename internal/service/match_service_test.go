package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/service"
)

func seedOpenRequest(t *testing.T, f *serviceFixture, clientID string) *domain.Request {
	t.Helper()
	created, err := f.requestSvc.CreateRequest(context.Background(), clientID, service.RequestCreateInput{
		Title:       "Migrate billing cron",
		Description: "Move the nightly invoice job off the legacy box",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingMatch, created.Status)
	return created
}

func TestApplyMovesRequestToAwaitingApproval(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, updated, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "I run these migrations weekly")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPending, match.Status)
	assert.Equal(t, "dev-1", match.DeveloperID)
	assert.Equal(t, domain.StatusAwaitingClientApproval, updated.Status)
}

func TestApplyTwiceIsRejected(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	_, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "first")
	require.NoError(t, err)

	_, _, err = f.matchSvc.Apply(ctx, "dev-1", request.ID, "second")
	assert.Equal(t, "CONFLICT", domainErrCode(t, err))
}

func TestApplyToNonOpenRequest(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	_, err := f.requestSvc.ChangeStatus(ctx, request.ID, "cancelled_by_client", domain.RoleClient, "client-1", nil)
	require.NoError(t, err)

	_, _, err = f.matchSvc.Apply(ctx, "dev-1", request.ID, "too late")
	assert.Equal(t, "FORBIDDEN", domainErrCode(t, err))
}

func TestRefusedApplicationLeavesNoMatchBehind(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	// dev-2's application moves the request out of matching, so dev-1's
	// attempt is refused.
	otherMatch, _, err := f.matchSvc.Apply(ctx, "dev-2", request.ID, "first in line")
	require.NoError(t, err)

	_, _, err = f.matchSvc.Apply(ctx, "dev-1", request.ID, "me too")
	require.Equal(t, "FORBIDDEN", domainErrCode(t, err))

	matches, err := f.matches.ListByRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// Once the client declines dev-2 the request is open again and dev-1
	// must be able to apply.
	_, err = f.matchSvc.Reject(ctx, "client-1", otherMatch.ID)
	require.NoError(t, err)

	_, updated, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "second attempt")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingClientApproval, updated.Status)
}

func TestApproveAssignsDeveloper(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)

	updated, err := f.matchSvc.Approve(ctx, "client-1", match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)
	require.NotNil(t, updated.DeveloperID)
	assert.Equal(t, "dev-1", *updated.DeveloperID)

	stored, err := f.matches.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchApproved, stored.Status)

	// The approved developer may now drive the work forward.
	next, err := f.requestSvc.ChangeStatus(ctx, request.ID, "requirements_review", domain.RoleDeveloper, "dev-1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRequirementsReview, next.Status)
}

func TestApproveByNonOwnerIsForbidden(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)

	_, err = f.matchSvc.Approve(ctx, "client-2", match.ID)
	assert.Equal(t, "FORBIDDEN", domainErrCode(t, err))
}

func TestRejectReturnsRequestToMatching(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)

	updated, err := f.matchSvc.Reject(ctx, "client-1", match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, updated.Status)

	stored, err := f.matches.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRejected, stored.Status)

	// The rejected developer no longer has standing to work the request.
	_, err = f.requestSvc.ChangeStatus(ctx, request.ID, "dev_requested", domain.RoleDeveloper, "dev-2", nil)
	require.NoError(t, err)
	_, err = f.requestSvc.ChangeStatus(ctx, request.ID, "awaiting_client_approval", domain.RoleSystem, "", nil)
	require.NoError(t, err)

	// A rejected developer may re-apply.
	_, _, err = f.matchSvc.Apply(ctx, "dev-1", seedOpenRequest(t, f, "client-1").ID, "again")
	assert.NoError(t, err)
}

func TestDecidingTwiceConflicts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)

	_, err = f.matchSvc.Approve(ctx, "client-1", match.ID)
	require.NoError(t, err)

	_, err = f.matchSvc.Reject(ctx, "client-1", match.ID)
	assert.Equal(t, "CONFLICT", domainErrCode(t, err))
}

func TestAbandonReopensMatching(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	match, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)
	_, err = f.matchSvc.Approve(ctx, "client-1", match.ID)
	require.NoError(t, err)
	_, err = f.requestSvc.ChangeStatus(ctx, request.ID, "requirements_review", domain.RoleDeveloper, "dev-1", nil)
	require.NoError(t, err)

	reopened, err := f.matchSvc.Abandon(ctx, "dev-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, reopened.Status)

	stored, err := f.matches.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRejected, stored.Status)
}

func TestAbandonWithoutMatchIsForbidden(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	_, err := f.matchSvc.Abandon(ctx, "dev-1", request.ID)
	assert.Equal(t, "FORBIDDEN", domainErrCode(t, err))
}

func TestListByRequestRequiresOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	request := seedOpenRequest(t, f, "client-1")

	_, _, err := f.matchSvc.Apply(ctx, "dev-1", request.ID, "pitch")
	require.NoError(t, err)

	matches, err := f.matchSvc.ListByRequest(ctx, "client-1", request.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = f.matchSvc.ListByRequest(ctx, "client-2", request.ID)
	assert.Equal(t, "FORBIDDEN", domainErrCode(t, err))
}
