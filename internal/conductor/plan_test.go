package conductor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

func TestDerivePlan(t *testing.T) {
	plan, err := derivePlan(true, true)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, models.WorkerTerminal, plan[0].WorkerType)
	assert.Equal(t, models.WorkerResearcher, plan[1].WorkerType)

	plan, err = derivePlan(true, false)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, models.WorkerTerminal, plan[0].WorkerType)

	plan, err = derivePlan(false, true)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, models.WorkerResearcher, plan[0].WorkerType)

	_, err = derivePlan(false, false)
	require.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestValidatePlan(t *testing.T) {
	plan := []models.WorkerStep{{WorkerType: models.WorkerTerminal}}
	require.NoError(t, validatePlan(plan, true, false))
	require.ErrorIs(t, validatePlan(plan, false, true), errs.ErrInvalidRequest)
	require.ErrorIs(t, validatePlan(nil, true, true), errs.ErrInvalidRequest)
}
