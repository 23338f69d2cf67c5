package harness

import "errors"

var (
	// ErrBudgetExhausted is returned when max_turns is exceeded before the
	// objective reaches a terminal status.
	ErrBudgetExhausted = errors.New("harness: turn budget exhausted")

	// ErrTimeout is returned when timeout_budget_ms elapses before the
	// objective reaches a terminal status.
	ErrTimeout = errors.New("harness: wall-clock timeout exceeded")

	// ErrCyclicDAG is returned when a Program's step dependency graph
	// contains a cycle.
	ErrCyclicDAG = errors.New("harness: cyclic DAG")

	// ErrDagTooLarge is returned when a Program declares more steps than
	// max_dag_steps allows.
	ErrDagTooLarge = errors.New("harness: DAG exceeds max_dag_steps")

	// ErrUnresolvedRef is returned when a step references ${step_id} for a
	// step_id that never ran or does not exist.
	ErrUnresolvedRef = errors.New("harness: unresolved step reference")
)
