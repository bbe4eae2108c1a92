// Package authz is the access-control decision point for request operations.
// It is pure: decisions depend only on the actor, the operation and a
// snapshot of the target request, never on the store.
package authz

import (
	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

// Operation identifies a gated request operation.
type Operation string

const (
	OpCreate       Operation = "create"
	OpView         Operation = "view"
	OpAccept       Operation = "accept"
	OpTransition   Operation = "transition"
	OpUpdateFields Operation = "update_fields"
	OpDelete       Operation = "delete"
	OpReview       Operation = "review"
)

// Actor is the authenticated principal attempting an operation.
type Actor struct {
	ID   int64
	Role models.UserRole
}

// RequestSnapshot is the minimal view of a request needed for a decision.
type RequestSnapshot struct {
	RequesterID int64
	ProviderID  *int64
	Status      models.RequestStatus
}

// rule describes who may perform an operation and under what request state.
type rule struct {
	// roles allowed unconditionally.
	roles map[models.UserRole]struct{}
	// asRequester permits the request's own requester.
	asRequester bool
	// asProvider permits the request's assigned provider.
	asProvider bool
	// requireStatus constrains the request state; violations are conflicts,
	// not authorization failures. Empty means any state.
	requireStatus models.RequestStatus
	// needsTarget indicates the operation is meaningless without a snapshot.
	needsTarget bool
}

func roleSet(roles ...models.UserRole) map[models.UserRole]struct{} {
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

var policy = map[Operation]rule{
	OpCreate: {roles: roleSet(models.RoleRequester)},
	OpView: {
		roles:       roleSet(models.RoleAdmin),
		asRequester: true,
		asProvider:  true,
		needsTarget: true,
	},
	OpAccept: {
		roles:         roleSet(models.RoleProvider),
		requireStatus: models.StatusPending,
		needsTarget:   true,
	},
	OpTransition: {
		roles:       roleSet(models.RoleAdmin),
		asRequester: true,
		asProvider:  true,
		needsTarget: true,
	},
	OpUpdateFields: {
		roles:       roleSet(models.RoleAdmin),
		asRequester: true,
		needsTarget: true,
	},
	OpDelete: {
		roles:       roleSet(models.RoleAdmin),
		asRequester: true,
		needsTarget: true,
	},
	OpReview: {
		asRequester:   true,
		requireStatus: models.StatusCompleted,
		needsTarget:   true,
	},
}

// Decide returns nil when the actor may perform op on the request described
// by snap. Role and ownership failures yield FORBIDDEN; state precondition
// failures yield CONFLICT. snap may be nil for operations without a target.
func Decide(actor Actor, op Operation, snap *RequestSnapshot) error {
	r, ok := policy[op]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "unknown operation")
	}
	if r.needsTarget && snap == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "operation requires a target request")
	}

	if !allowed(actor, r, snap) {
		return appErrors.Clone(appErrors.ErrForbidden, denyMessage(op))
	}

	if r.requireStatus != "" && snap.Status != r.requireStatus {
		return appErrors.Clone(appErrors.ErrConflict, conflictMessage(op))
	}

	return nil
}

func allowed(actor Actor, r rule, snap *RequestSnapshot) bool {
	if _, ok := r.roles[actor.Role]; ok {
		return true
	}
	if snap == nil {
		return false
	}
	if r.asRequester && actor.Role == models.RoleRequester && actor.ID == snap.RequesterID {
		return true
	}
	if r.asProvider && actor.Role == models.RoleProvider &&
		snap.ProviderID != nil && actor.ID == *snap.ProviderID {
		return true
	}
	return false
}

func denyMessage(op Operation) string {
	switch op {
	case OpCreate:
		return "only requesters can create requests"
	case OpAccept:
		return "only providers can accept requests"
	case OpReview:
		return "only the requester can review this request"
	case OpDelete:
		return "not authorized to delete this request"
	case OpView:
		return "not authorized to view this request"
	default:
		return "not authorized to update this request"
	}
}

func conflictMessage(op Operation) string {
	switch op {
	case OpAccept:
		return "request is not in pending status"
	case OpReview:
		return "can only review completed requests"
	default:
		return "request is not in the required status"
	}
}
