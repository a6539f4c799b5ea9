package protocol

import "github.com/Kaushik-Ravi/dendro/internal/model"

// Assisted flow states.

// AssistedTrunk awaits the single trunk anchor. Pending holds an unconfirmed
// placement; nil Pending is the flow's true initial state.
type AssistedTrunk struct {
	Pending *model.TaggedPoint
}

func (AssistedTrunk) Stage() Stage { return StageTrunk }
func (AssistedTrunk) isState()     {}

// AssistedCanopy awaits up to two canopy edge points over a confirmed trunk
// anchor.
type AssistedCanopy struct {
	Trunk  model.TaggedPoint
	Canopy []model.TaggedPoint
}

func (AssistedCanopy) Stage() Stage { return StageCanopy }
func (AssistedCanopy) isState()     {}

// AssistedReady holds the confirmed three-point set.
type AssistedReady struct {
	Trunk  model.TaggedPoint
	Canopy [2]model.TaggedPoint
}

func (AssistedReady) Stage() Stage { return StageReady }
func (AssistedReady) isState()     {}

// Manual flow states.

// ManualBase is the manual flow's true initial state; the first tap marks
// the tree base and doubles as the first height point.
type ManualBase struct{}

func (ManualBase) Stage() Stage { return StageBase }
func (ManualBase) isState()     {}

// ManualHeight awaits the second height point (the tree top).
type ManualHeight struct {
	Base model.TaggedPoint
}

func (ManualHeight) Stage() Stage { return StageHeight }
func (ManualHeight) isState()     {}

// ManualCanopy awaits up to two canopy edge points.
type ManualCanopy struct {
	Height [2]model.TaggedPoint
	Canopy []model.TaggedPoint
}

func (ManualCanopy) Stage() Stage { return StageCanopy }
func (ManualCanopy) isState()     {}

// ManualGirth collects girth pairs. Completed pairs are always even by
// construction; Open holds the first point of an in-progress pair.
type ManualGirth struct {
	Height [2]model.TaggedPoint
	Canopy [2]model.TaggedPoint
	Pairs  []GirthPair
	Open   *model.TaggedPoint
}

func (ManualGirth) Stage() Stage { return StageGirth }
func (ManualGirth) isState()     {}

// ManualConfirm is the review stage before handoff.
type ManualConfirm struct {
	Height [2]model.TaggedPoint
	Canopy [2]model.TaggedPoint
	Pairs  []GirthPair
}

func (ManualConfirm) Stage() Stage { return StageConfirm }
func (ManualConfirm) isState()     {}

// ManualReady holds the confirmed full manual point set.
type ManualReady struct {
	Height [2]model.TaggedPoint
	Canopy [2]model.TaggedPoint
	Pairs  []GirthPair
}

func (ManualReady) Stage() Stage { return StageReady }
func (ManualReady) isState()     {}
