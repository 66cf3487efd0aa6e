package pipeline

import (
	"github.com/nao1215/sysdump/internal/model"
)

// Action tells the outer run loop how to move after a step.
type Action int

const (
	// ActionAdvance moves to the next position.
	ActionAdvance Action = iota

	// ActionRepeatFrom moves back to Decision.Position.
	ActionRepeatFrom

	// ActionStop ends the run.
	ActionStop
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionRepeatFrom:
		return "repeat-from"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Decision is the result of one step.
type Decision struct {
	Action Action

	// Position is the rewind target for ActionRepeatFrom.
	Position int
}

// Advance is the decision to move to the next position.
func Advance() Decision { return Decision{Action: ActionAdvance} }

// RepeatFrom is the decision to rewind to pos.
func RepeatFrom(pos int) Decision { return Decision{Action: ActionRepeatFrom, Position: pos} }

// Stop is the decision to end the run.
func Stop() Decision { return Decision{Action: ActionStop} }

// VisitResult is how far a stage got during one visit.
type VisitResult int

const (
	// VisitPreFailed means PreExecute did not return StatusOk.
	VisitPreFailed VisitResult = iota

	// VisitExecFailed means Execute returned neither StatusOk nor StatusMoreData.
	VisitExecFailed

	// VisitCompleted means AfterExecute ran.
	VisitCompleted
)

// String returns the result name.
func (v VisitResult) String() string {
	switch v {
	case VisitPreFailed:
		return "pre-failed"
	case VisitExecFailed:
		return "exec-failed"
	case VisitCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Visit records what happened when a stage was visited.
type Visit struct {
	Result VisitResult

	// After is the AfterExecute status; only set for VisitCompleted.
	After model.Status
}

// decide applies the loop rule to one visited position and returns the next
// move together with the updated loop stack.
//
// A loop-eligible Producer that completed with MoreData pushes its position.
// A completed Sink or GroupMarker rewinds to the most recently pushed
// position, if any, and clears the stack; earlier entries are dropped.
// Stages that failed leave the stack untouched.
func decide(stack []int, index int, cfg model.StageConfig, v Visit) (Decision, []int) {
	if v.Result != VisitCompleted {
		return Advance(), stack
	}
	if cfg.IsLoopPoint() && v.After == model.StatusMoreData {
		stack = append(stack, index)
	}
	if !cfg.EndsSegment() {
		return Advance(), stack
	}
	if len(stack) == 0 {
		return Advance(), stack
	}
	top := stack[len(stack)-1]
	return RepeatFrom(top), stack[:0]
}
