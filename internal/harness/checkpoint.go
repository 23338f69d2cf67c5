package harness

// Checkpoint is the contract a Port may be asked to persist after each turn
// so a crashed harness can resume without double-dispatching tools that
// were already in flight.
type Checkpoint struct {
	RunID         string
	TurnNumber    int
	PendingReplies []string
}

// CheckpointPort is an optional Port extension; a worker implements it when
// it can durably persist turn checkpoints. The base Port interface does not
// require it, since not every caller of the harness needs crash recovery.
type CheckpointPort interface {
	Port
	SaveCheckpoint(cp Checkpoint) error
}
