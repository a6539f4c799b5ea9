package protocol

import (
	"fmt"
	"math"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// Machine runs one protocol over one capture. It is not safe for concurrent
// use; a session owns exactly one machine at a time.
type Machine struct {
	protocol Protocol
	cfg      model.ProtocolConfig
	width    int
	height   int
	guideRow float64 // negative when no external guide is set
	state    State
}

func newMachine(p Protocol, cfg model.ProtocolConfig, width, height int, initial State) (*Machine, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, width, height)
	}
	if cfg.MinGirthPairs < 1 {
		cfg.MinGirthPairs = 1
	}
	return &Machine{
		protocol: p,
		cfg:      cfg,
		width:    width,
		height:   height,
		guideRow: -1,
		state:    initial,
	}, nil
}

// NewAssisted builds a machine for the assisted flow.
func NewAssisted(cfg model.ProtocolConfig, width, height int) (*Machine, error) {
	return newMachine(ProtocolAssisted, cfg, width, height, AssistedTrunk{})
}

// NewManual builds a machine for the manual flow.
func NewManual(cfg model.ProtocolConfig, width, height int) (*Machine, error) {
	return newMachine(ProtocolManual, cfg, width, height, ManualBase{})
}

func (m *Machine) Protocol() Protocol { return m.protocol }
func (m *Machine) State() State       { return m.state }
func (m *Machine) Stage() Stage       { return m.state.Stage() }

// SetGirthGuide sets the suggested breast-height row that girth taps snap
// to. Rows outside the frame clamp to its edge.
func (m *Machine) SetGirthGuide(row float64) {
	m.guideRow = clamp(row, 0, float64(m.height-1))
}

// GuideRow returns the effective snap row for the current girth state: the
// external suggestion when one was set, otherwise the open pair's row.
func (m *Machine) GuideRow() (float64, bool) {
	if m.guideRow >= 0 {
		return m.guideRow, true
	}
	if g, ok := m.state.(ManualGirth); ok && g.Open != nil {
		return g.Open.Y, true
	}
	return 0, false
}

// Place records a tap at image coordinates. Out-of-frame taps clamp to the
// frame edge; stages that take no points reject the tap.
func (m *Machine) Place(x, y float64) error {
	pt := model.Point{
		X: clamp(x, 0, float64(m.width-1)),
		Y: clamp(y, 0, float64(m.height-1)),
	}
	switch s := m.state.(type) {
	case AssistedTrunk:
		tp := model.TaggedPoint{Category: model.PointTrunk, Point: pt}
		m.state = AssistedTrunk{Pending: &tp}
	case AssistedCanopy:
		if len(s.Canopy) >= 2 {
			return ErrNotAccepting
		}
		canopy := append(copyPoints(s.Canopy), model.TaggedPoint{Category: model.PointCanopy, Point: pt})
		m.state = AssistedCanopy{Trunk: s.Trunk, Canopy: canopy}
	case ManualBase:
		// The base tap doubles as the first height point.
		m.state = ManualHeight{Base: model.TaggedPoint{Category: model.PointHeight, Point: pt}}
	case ManualHeight:
		top := model.TaggedPoint{Category: model.PointHeight, Point: pt}
		m.state = ManualCanopy{Height: [2]model.TaggedPoint{s.Base, top}}
	case ManualCanopy:
		tp := model.TaggedPoint{Category: model.PointCanopy, Point: pt}
		if len(s.Canopy) == 0 {
			m.state = ManualCanopy{Height: s.Height, Canopy: []model.TaggedPoint{tp}}
			return nil
		}
		m.state = ManualGirth{Height: s.Height, Canopy: [2]model.TaggedPoint{s.Canopy[0], tp}}
	case ManualGirth:
		m.placeGirth(s, pt)
	default:
		return ErrNotAccepting
	}
	return nil
}

func (m *Machine) placeGirth(s ManualGirth, pt model.Point) {
	pt = m.snapGirth(s, pt)
	tp := model.TaggedPoint{Category: model.PointGirth, Point: pt}
	if s.Open == nil {
		m.state = ManualGirth{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs, Open: &tp}
		return
	}
	pairs := append(copyPairs(s.Pairs), GirthPair{A: *s.Open, B: tp})
	m.state = ManualGirth{Height: s.Height, Canopy: s.Canopy, Pairs: pairs}
}

// snapGirth relocates a tap to the guide row when it lands within the snap
// band, keeping opposite trunk edges on one row even on noisy images.
func (m *Machine) snapGirth(s ManualGirth, pt model.Point) model.Point {
	band := m.cfg.SnapBandFraction * float64(m.height)
	if m.guideRow >= 0 && math.Abs(pt.Y-m.guideRow) <= band {
		pt.Y = m.guideRow
		return pt
	}
	if s.Open != nil && math.Abs(pt.Y-s.Open.Y) <= band {
		pt.Y = s.Open.Y
	}
	return pt
}

// CanConfirm reports whether the active stage's point contract is satisfied.
func (m *Machine) CanConfirm() bool {
	switch s := m.state.(type) {
	case AssistedTrunk:
		return s.Pending != nil
	case AssistedCanopy:
		return len(s.Canopy) == 2
	case ManualGirth:
		return s.Open == nil && len(s.Pairs) >= m.cfg.MinGirthPairs
	case ManualConfirm:
		return true
	default:
		return false
	}
}

// Confirm advances the stages that require an explicit confirmation. The
// point-count contracts are enforced here by gating rather than surfacing
// later as computation errors.
func (m *Machine) Confirm() error {
	if !m.CanConfirm() {
		return ErrCannotConfirm
	}
	switch s := m.state.(type) {
	case AssistedTrunk:
		m.state = AssistedCanopy{Trunk: *s.Pending}
	case AssistedCanopy:
		m.state = AssistedReady{Trunk: s.Trunk, Canopy: [2]model.TaggedPoint{s.Canopy[0], s.Canopy[1]}}
	case ManualGirth:
		m.state = ManualConfirm{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs}
	case ManualConfirm:
		m.state = ManualReady{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs}
	}
	return nil
}

// CanUndo reports whether any action can be rolled back. Only the true
// initial state of the active protocol refuses.
func (m *Machine) CanUndo() bool {
	switch s := m.state.(type) {
	case AssistedTrunk:
		return s.Pending != nil
	case ManualBase:
		return false
	default:
		return true
	}
}

// Undo rolls back one action. Each state defines its own predecessor and
// what to discard; at the true initial state it is a no-op.
func (m *Machine) Undo() {
	switch s := m.state.(type) {
	case AssistedTrunk:
		m.state = AssistedTrunk{}
	case AssistedCanopy:
		if len(s.Canopy) > 0 {
			m.state = AssistedCanopy{Trunk: s.Trunk, Canopy: copyPoints(s.Canopy[:len(s.Canopy)-1])}
			return
		}
		trunk := s.Trunk
		m.state = AssistedTrunk{Pending: &trunk}
	case AssistedReady:
		m.state = AssistedCanopy{Trunk: s.Trunk, Canopy: copyPoints(s.Canopy[:])}
	case ManualHeight:
		m.state = ManualBase{}
	case ManualCanopy:
		if len(s.Canopy) > 0 {
			m.state = ManualCanopy{Height: s.Height, Canopy: copyPoints(s.Canopy[:len(s.Canopy)-1])}
			return
		}
		m.state = ManualHeight{Base: s.Height[0]}
	case ManualGirth:
		m.undoGirth(s)
	case ManualConfirm:
		m.state = ManualGirth{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs}
	case ManualReady:
		m.state = ManualConfirm{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs}
	}
}

func (m *Machine) undoGirth(s ManualGirth) {
	switch {
	case s.Open != nil:
		m.state = ManualGirth{Height: s.Height, Canopy: s.Canopy, Pairs: s.Pairs}
	case len(s.Pairs) > 0:
		// Undoing a completed pair reopens it with its first point kept.
		last := s.Pairs[len(s.Pairs)-1]
		open := last.A
		m.state = ManualGirth{Height: s.Height, Canopy: s.Canopy, Pairs: copyPairs(s.Pairs[:len(s.Pairs)-1]), Open: &open}
	default:
		m.state = ManualCanopy{Height: s.Height, Canopy: []model.TaggedPoint{s.Canopy[0]}}
	}
}

// Points snapshots everything collected so far, girth pairs flattened in
// placement order with any open point last.
func (m *Machine) Points() model.PointSet {
	var ps model.PointSet
	switch s := m.state.(type) {
	case AssistedTrunk:
		if s.Pending != nil {
			ps.Add(*s.Pending)
		}
	case AssistedCanopy:
		ps.Add(s.Trunk)
		for _, p := range s.Canopy {
			ps.Add(p)
		}
	case AssistedReady:
		ps.Add(s.Trunk)
		ps.Add(s.Canopy[0])
		ps.Add(s.Canopy[1])
	case ManualHeight:
		ps.Add(s.Base)
	case ManualCanopy:
		ps.Add(s.Height[0])
		ps.Add(s.Height[1])
		for _, p := range s.Canopy {
			ps.Add(p)
		}
	case ManualGirth:
		addManualPoints(&ps, s.Height, s.Canopy, s.Pairs)
		if s.Open != nil {
			ps.Add(*s.Open)
		}
	case ManualConfirm:
		addManualPoints(&ps, s.Height, s.Canopy, s.Pairs)
	case ManualReady:
		addManualPoints(&ps, s.Height, s.Canopy, s.Pairs)
	}
	return ps
}

// Handoff returns the validated point set for the segmentation request.
// Manual girth pairs are folded to the single pair diameter math consumes.
func (m *Machine) Handoff() (model.PointSet, error) {
	var ps model.PointSet
	switch s := m.state.(type) {
	case AssistedReady:
		ps.Add(s.Trunk)
		ps.Add(s.Canopy[0])
		ps.Add(s.Canopy[1])
	case ManualReady:
		ps.Add(s.Height[0])
		ps.Add(s.Height[1])
		ps.Add(s.Canopy[0])
		ps.Add(s.Canopy[1])
		if pair, ok := FoldGirth(s.Pairs); ok {
			ps.Add(pair.A)
			ps.Add(pair.B)
		}
	default:
		return model.PointSet{}, ErrNotReady
	}
	return ps, nil
}

func addManualPoints(ps *model.PointSet, height, canopy [2]model.TaggedPoint, pairs []GirthPair) {
	ps.Add(height[0])
	ps.Add(height[1])
	ps.Add(canopy[0])
	ps.Add(canopy[1])
	for _, p := range pairs {
		ps.Add(p.A)
		ps.Add(p.B)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyPoints(pts []model.TaggedPoint) []model.TaggedPoint {
	out := make([]model.TaggedPoint, len(pts))
	copy(out, pts)
	return out
}

func copyPairs(pairs []GirthPair) []GirthPair {
	out := make([]GirthPair, len(pairs))
	copy(out, pairs)
	return out
}
