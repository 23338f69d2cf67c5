package conductor

import (
	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

const (
	defaultTerminalMaxSteps  = 4
	defaultTerminalTimeoutMS = 60_000
	defaultResearchMaxResults = 8
	defaultResearchTimeoutMS  = 60_000
)

// derivePlan builds the default two-worker plan per spec §4.7's routing
// table, keyed on which worker kinds are available:
//
//	(T, R): Terminal then Researcher
//	(T, -): Terminal only
//	(-, R): Researcher only
//	(-, -): InvalidRequest
func derivePlan(hasTerminal, hasResearcher bool) ([]models.WorkerStep, error) {
	switch {
	case hasTerminal && hasResearcher:
		return []models.WorkerStep{
			{WorkerType: models.WorkerTerminal, MaxSteps: defaultTerminalMaxSteps, TimeoutMS: defaultTerminalTimeoutMS},
			{WorkerType: models.WorkerResearcher, MaxResults: defaultResearchMaxResults, TimeoutMS: defaultResearchTimeoutMS},
		}, nil
	case hasTerminal:
		return []models.WorkerStep{
			{WorkerType: models.WorkerTerminal, MaxSteps: defaultTerminalMaxSteps, TimeoutMS: defaultTerminalTimeoutMS},
		}, nil
	case hasResearcher:
		return []models.WorkerStep{
			{WorkerType: models.WorkerResearcher, MaxResults: defaultResearchMaxResults, TimeoutMS: defaultResearchTimeoutMS},
		}, nil
	default:
		return nil, errs.ErrInvalidRequest
	}
}

// validatePlan rejects any step whose worker_type has no corresponding
// available actor.
func validatePlan(plan []models.WorkerStep, hasTerminal, hasResearcher bool) error {
	if len(plan) == 0 {
		return errs.ErrInvalidRequest
	}
	for _, step := range plan {
		switch step.WorkerType {
		case models.WorkerTerminal:
			if !hasTerminal {
				return errs.ErrInvalidRequest
			}
		case models.WorkerResearcher:
			if !hasResearcher {
				return errs.ErrInvalidRequest
			}
		default:
			return errs.ErrInvalidRequest
		}
	}
	return nil
}
