package workflow

import "github.com/devmatch/request-service/internal/domain"

// TransitionRule is a single allowed edge in the request state machine.
// Label and Variant feed UI action buttons; they carry no engine semantics.
type TransitionRule struct {
	From    domain.RequestStatus
	To      domain.RequestStatus
	Roles   []domain.Role
	Label   string
	Variant string
}

// AllowsRole reports whether the rule permits the given role.
func (r TransitionRule) AllowsRole(role domain.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// transitionTable is the single source of truth for lifecycle edges. The
// universal client-cancel edge (any non-terminal status to
// cancelled_by_client) is layered on in RulesFor rather than enumerated
// per status.
var transitionTable = []TransitionRule{
	{From: domain.StatusSubmitted, To: domain.StatusPendingMatch, Roles: []domain.Role{domain.RoleSystem}, Label: "Open for matching", Variant: "default"},

	{From: domain.StatusPendingMatch, To: domain.StatusDevRequested, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Apply to request", Variant: "primary"},
	{From: domain.StatusDevRequested, To: domain.StatusAwaitingClientApproval, Roles: []domain.Role{domain.RoleSystem}, Label: "Send for approval", Variant: "default"},

	{From: domain.StatusAwaitingClientApproval, To: domain.StatusApproved, Roles: []domain.Role{domain.RoleClient}, Label: "Approve developer", Variant: "primary"},
	{From: domain.StatusAwaitingClientApproval, To: domain.StatusPendingMatch, Roles: []domain.Role{domain.RoleClient}, Label: "Decline developer", Variant: "secondary"},

	{From: domain.StatusApproved, To: domain.StatusRequirementsReview, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Start requirements review", Variant: "primary"},
	{From: domain.StatusRequirementsReview, To: domain.StatusInProgress, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Start work", Variant: "primary"},
	{From: domain.StatusRequirementsReview, To: domain.StatusNeedMoreInfo, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Request more info", Variant: "secondary"},
	{From: domain.StatusNeedMoreInfo, To: domain.StatusRequirementsReview, Roles: []domain.Role{domain.RoleClient}, Label: "Provide info", Variant: "primary"},

	{From: domain.StatusInProgress, To: domain.StatusReadyForQA, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Submit for QA", Variant: "primary"},
	{From: domain.StatusReadyForQA, To: domain.StatusQAPass, Roles: []domain.Role{domain.RoleClient}, Label: "Pass QA", Variant: "primary"},
	{From: domain.StatusReadyForQA, To: domain.StatusQAFail, Roles: []domain.Role{domain.RoleClient}, Label: "Fail QA", Variant: "danger"},
	{From: domain.StatusQAFail, To: domain.StatusInProgress, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Resume work", Variant: "primary"},
	{From: domain.StatusQAPass, To: domain.StatusReadyForFinalAction, Roles: []domain.Role{domain.RoleSystem}, Label: "Promote to final action", Variant: "default"},

	{From: domain.StatusReadyForFinalAction, To: domain.StatusResolved, Roles: []domain.Role{domain.RoleClient}, Label: "Mark resolved", Variant: "primary"},
	{From: domain.StatusReadyForFinalAction, To: domain.StatusReopened, Roles: []domain.Role{domain.RoleClient}, Label: "Reopen", Variant: "secondary"},
	{From: domain.StatusReopened, To: domain.StatusInProgress, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Resume work", Variant: "primary"},

	{From: domain.StatusApproved, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},
	{From: domain.StatusRequirementsReview, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},
	{From: domain.StatusNeedMoreInfo, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},
	{From: domain.StatusInProgress, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},
	{From: domain.StatusReadyForQA, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},
	{From: domain.StatusQAFail, To: domain.StatusAbandonedByDev, Roles: []domain.Role{domain.RoleDeveloper}, Label: "Abandon request", Variant: "danger"},

	{From: domain.StatusAbandonedByDev, To: domain.StatusPendingMatch, Roles: []domain.Role{domain.RoleSystem}, Label: "Reopen matching", Variant: "default"},
}

// clientCancelRule is the universal edge: clients may cancel from any
// non-terminal status.
func clientCancelRule(from domain.RequestStatus) TransitionRule {
	return TransitionRule{
		From:    from,
		To:      domain.StatusCancelledByClient,
		Roles:   []domain.Role{domain.RoleClient},
		Label:   "Cancel request",
		Variant: "danger",
	}
}

// RulesFor returns every transition rule applicable to the given status and
// role, including the universal client-cancel edge. The result is a fresh
// slice; callers may not observe shared state. Terminal statuses yield no
// rules for any role.
func RulesFor(status domain.RequestStatus, role domain.Role) []TransitionRule {
	status = Normalize(string(status))
	rules := []TransitionRule{}
	if status.IsTerminal() {
		return rules
	}
	for _, rule := range transitionTable {
		if rule.From == status && rule.AllowsRole(role) {
			rules = append(rules, rule)
		}
	}
	if role == domain.RoleClient {
		rules = append(rules, clientCancelRule(status))
	}
	return rules
}

// transitionAllowed reports whether any rule (table or universal cancel)
// permits from → to for the role.
func transitionAllowed(from, to domain.RequestStatus, role domain.Role) bool {
	for _, rule := range RulesFor(from, role) {
		if rule.To == to {
			return true
		}
	}
	return false
}
