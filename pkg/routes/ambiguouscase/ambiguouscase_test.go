package ambiguouscase

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestGuardOpenAllowsOpenCase(t *testing.T) {
	err := guardOpen(&models.AmbiguousCase{ID: "c1", Status: models.AmbiguousCaseStatusOpen})
	assert.NoError(t, err)
}

// A case that was already resolved or dismissed must be rejected before any
// link is written, so a stale resolve request cannot overwrite the pair's
// source link.
func TestGuardOpenRejectsClosedCase(t *testing.T) {
	closed := []models.AmbiguousCaseStatus{
		models.AmbiguousCaseStatusResolvedManually,
		models.AmbiguousCaseStatusDismissed,
	}

	for _, status := range closed {
		err := guardOpen(&models.AmbiguousCase{ID: "c1", Status: status})
		require.Error(t, err, "status %s", status)
		assert.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	}
}
