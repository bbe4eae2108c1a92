package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

func intPtr(v int64) *int64 { return &v }

func TestDecide(t *testing.T) {
	pending := &RequestSnapshot{RequesterID: 1, Status: models.StatusPending}
	inProgress := &RequestSnapshot{RequesterID: 1, ProviderID: intPtr(2), Status: models.StatusInProgress}
	completed := &RequestSnapshot{RequesterID: 1, ProviderID: intPtr(2), Status: models.StatusCompleted}

	tests := []struct {
		name     string
		actor    Actor
		op       Operation
		snap     *RequestSnapshot
		wantCode string
	}{
		{"requester creates", Actor{ID: 1, Role: models.RoleRequester}, OpCreate, nil, ""},
		{"provider cannot create", Actor{ID: 2, Role: models.RoleProvider}, OpCreate, nil, appErrors.ErrForbidden.Code},
		{"admin cannot create", Actor{ID: 9, Role: models.RoleAdmin}, OpCreate, nil, appErrors.ErrForbidden.Code},

		{"owner views", Actor{ID: 1, Role: models.RoleRequester}, OpView, pending, ""},
		{"assigned provider views", Actor{ID: 2, Role: models.RoleProvider}, OpView, inProgress, ""},
		{"admin views", Actor{ID: 9, Role: models.RoleAdmin}, OpView, pending, ""},
		{"stranger requester cannot view", Actor{ID: 5, Role: models.RoleRequester}, OpView, pending, appErrors.ErrForbidden.Code},
		{"unassigned provider cannot view", Actor{ID: 5, Role: models.RoleProvider}, OpView, pending, appErrors.ErrForbidden.Code},

		{"provider accepts pending", Actor{ID: 2, Role: models.RoleProvider}, OpAccept, pending, ""},
		{"requester cannot accept", Actor{ID: 1, Role: models.RoleRequester}, OpAccept, pending, appErrors.ErrForbidden.Code},
		{"accept non-pending conflicts", Actor{ID: 3, Role: models.RoleProvider}, OpAccept, inProgress, appErrors.ErrConflict.Code},

		{"owner transitions", Actor{ID: 1, Role: models.RoleRequester}, OpTransition, inProgress, ""},
		{"assigned provider transitions", Actor{ID: 2, Role: models.RoleProvider}, OpTransition, inProgress, ""},
		{"admin transitions", Actor{ID: 9, Role: models.RoleAdmin}, OpTransition, inProgress, ""},
		{"stranger cannot transition", Actor{ID: 5, Role: models.RoleProvider}, OpTransition, inProgress, appErrors.ErrForbidden.Code},

		{"owner updates fields", Actor{ID: 1, Role: models.RoleRequester}, OpUpdateFields, pending, ""},
		{"assigned provider cannot update fields", Actor{ID: 2, Role: models.RoleProvider}, OpUpdateFields, inProgress, appErrors.ErrForbidden.Code},

		{"owner deletes", Actor{ID: 1, Role: models.RoleRequester}, OpDelete, pending, ""},
		{"admin deletes", Actor{ID: 9, Role: models.RoleAdmin}, OpDelete, pending, ""},
		{"provider cannot delete", Actor{ID: 2, Role: models.RoleProvider}, OpDelete, inProgress, appErrors.ErrForbidden.Code},

		{"owner reviews completed", Actor{ID: 1, Role: models.RoleRequester}, OpReview, completed, ""},
		{"owner cannot review in-progress", Actor{ID: 1, Role: models.RoleRequester}, OpReview, inProgress, appErrors.ErrConflict.Code},
		{"admin cannot review", Actor{ID: 9, Role: models.RoleAdmin}, OpReview, completed, appErrors.ErrForbidden.Code},
		{"provider cannot review", Actor{ID: 2, Role: models.RoleProvider}, OpReview, completed, appErrors.ErrForbidden.Code},
		{"stranger cannot review", Actor{ID: 5, Role: models.RoleRequester}, OpReview, completed, appErrors.ErrForbidden.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.actor, tt.op, tt.snap)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestDecideRoleCheckedBeforeStatus(t *testing.T) {
	// A requester hitting accept on an IN_PROGRESS request must see the role
	// denial, not the state conflict.
	snap := &RequestSnapshot{RequesterID: 1, ProviderID: intPtr(2), Status: models.StatusInProgress}
	err := Decide(Actor{ID: 1, Role: models.RoleRequester}, OpAccept, snap)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDecideMissingTarget(t *testing.T) {
	err := Decide(Actor{ID: 9, Role: models.RoleAdmin}, OpView, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
