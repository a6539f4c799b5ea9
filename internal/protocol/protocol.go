// Package protocol drives ordered point collection for the two measurement
// flows. A Machine is an explicit finite-state machine: each stage is a
// distinct state value carrying only the data that stage has legitimately
// collected, so invalid intermediates (an odd girth list, a third canopy
// point) cannot be represented. The machine computes no metrics; it
// assembles and validates the point set the segmentation service consumes.
package protocol

import "errors"

// Protocol selects one of the two mutually exclusive collection flows.
type Protocol int

const (
	// ProtocolAssisted collects a trunk anchor and two canopy edges; the
	// segmentation service does the rest.
	ProtocolAssisted Protocol = iota

	// ProtocolManual collects base, height, canopy, and girth references
	// explicitly.
	ProtocolManual
)

func (p Protocol) String() string {
	switch p {
	case ProtocolAssisted:
		return "assisted"
	case ProtocolManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Stage identifies where in the active protocol the machine currently is.
type Stage int

const (
	StageTrunk Stage = iota
	StageBase
	StageHeight
	StageCanopy
	StageGirth
	StageConfirm
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageTrunk:
		return "trunk"
	case StageBase:
		return "base"
	case StageHeight:
		return "height"
	case StageCanopy:
		return "canopy"
	case StageGirth:
		return "girth"
	case StageConfirm:
		return "confirm"
	case StageReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Instruction returns the operator prompt for the stage.
func (s Stage) Instruction() string {
	switch s {
	case StageTrunk:
		return "tap once on the trunk"
	case StageBase:
		return "tap the base of the tree"
	case StageHeight:
		return "tap the top of the tree"
	case StageCanopy:
		return "tap the left canopy edge, then the right"
	case StageGirth:
		return "tap opposite trunk edges at breast height; repeat per stem"
	case StageConfirm:
		return "review the points, then confirm"
	case StageReady:
		return "points complete"
	default:
		return ""
	}
}

// State is the tagged union of protocol stages.
type State interface {
	Stage() Stage

	// isState seals the union to this package.
	isState()
}

var (
	// ErrNotAccepting reports a point placed in a stage that takes none.
	ErrNotAccepting = errors.New("stage does not accept points")

	// ErrCannotConfirm reports a confirm before the stage contract is met.
	ErrCannotConfirm = errors.New("stage contract not yet satisfied")

	// ErrNotReady reports a handoff attempt before the protocol completed.
	ErrNotReady = errors.New("protocol has not reached handoff")

	// ErrBadDimensions reports a machine built for an empty image.
	ErrBadDimensions = errors.New("image dimensions must be positive")
)
