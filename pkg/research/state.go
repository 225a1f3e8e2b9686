package research

import (
	"errors"
	"fmt"
	"time"
)

var errFinalized = errors.New("generation state already finalized")

var stageRank = map[Stage]int{
	StageBreakdown:  1,
	StageSearch:     2,
	StageReflection: 3,
	StagePlanning:   4,
	StageWriting:    5,
	StageComplete:   6,
}

// stateMachine guards the checkpoint of one run. Stages only move forward,
// reflection may repeat with a growing iteration, and the state is finalized
// exactly once.
type stateMachine struct {
	state   GenerationState
	entered time.Time
	now     func() time.Time
}

func newStateMachine(jobID string, now func() time.Time) *stateMachine {
	t := now()
	return &stateMachine{
		state: GenerationState{JobID: jobID, CreatedAt: t, UpdatedAt: t},
		now:   now,
	}
}

// advance moves to stage. It returns how long the previous stage lasted when
// the stage changed.
func (m *stateMachine) advance(stage Stage, iteration int) (Stage, time.Duration, error) {
	if m.state.IsCompleted {
		return "", 0, errFinalized
	}
	next, ok := stageRank[stage]
	if !ok || stage == StageComplete {
		return "", 0, fmt.Errorf("cannot advance to %q", stage)
	}
	if cur := stageRank[m.state.Stage]; next < cur {
		return "", 0, fmt.Errorf("stage %q cannot follow %q", stage, m.state.Stage)
	}

	if stage == StageReflection {
		if m.state.Stage == StageReflection && iteration < m.state.Iteration {
			return "", 0, fmt.Errorf("reflection iteration %d is behind %d", iteration, m.state.Iteration)
		}
	} else {
		iteration = 0
	}

	t := m.now()
	prev, elapsed := m.state.Stage, time.Duration(0)
	if prev != stage && prev != "" {
		elapsed = t.Sub(m.entered)
	}
	if prev != stage {
		m.entered = t
	}
	m.state.Stage = stage
	m.state.Iteration = iteration
	m.state.UpdatedAt = t
	return prev, elapsed, nil
}

// finish marks the state completed with a terminal stage.
func (m *stateMachine) finish(stage Stage) error {
	if m.state.IsCompleted {
		return errFinalized
	}
	if stage != StageComplete && stage != StageError {
		return fmt.Errorf("%q is not a terminal stage", stage)
	}
	m.state.Stage = stage
	m.state.Iteration = 0
	m.state.IsCompleted = true
	m.state.UpdatedAt = m.now()
	return nil
}

func (m *stateMachine) record(ev EventRecord, partial string) GenerationState {
	m.state.LastEvent = ev
	m.state.PartialContent = partial
	m.state.UpdatedAt = m.now()
	return m.state
}
