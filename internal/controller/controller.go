// Package controller implements the click-driven selection and move state
// machine that sits between the board UI and the rules engine.
//
// A Controller is not safe for concurrent use; callers serialize events
// (see internal/session).
package controller

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/rules"
)

var (
	ErrNoEngine           = errors.New("rules engine is required")
	ErrNoGame             = errors.New("no game in progress")
	ErrNoPendingPromotion = errors.New("no promotion pending")
	ErrInvalidPromotion   = errors.New("invalid promotion piece")
)

// Phase is the controller's interaction state.
type Phase int

const (
	NotStarted Phase = iota
	Idle
	PieceSelected
	AwaitingPromotion
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PieceSelected:
		return "piece_selected"
	case AwaitingPromotion:
		return "awaiting_promotion"
	default:
		return "not_started"
	}
}

// Transition reports what a single event did.
type Transition int

const (
	None Transition = iota
	Selected
	Reselected
	Cancelled
	Moved
	PromotionPending
	Rejected
	Undone
	Reset
)

func (t Transition) String() string {
	switch t {
	case Selected:
		return "selected"
	case Reselected:
		return "reselected"
	case Cancelled:
		return "cancelled"
	case Moved:
		return "moved"
	case PromotionPending:
		return "promotion_pending"
	case Rejected:
		return "rejected"
	case Undone:
		return "undone"
	case Reset:
		return "reset"
	default:
		return "none"
	}
}

// Selection is the selected square and its legal destinations.
type Selection struct {
	Square       board.Square
	Destinations []rules.LegalMove
}

// Destination returns the legal move ending on sq, if any.
func (s Selection) Destination(sq board.Square) (rules.LegalMove, bool) {
	for _, d := range s.Destinations {
		if d.To == sq {
			return d, true
		}
	}
	return rules.LegalMove{}, false
}

// PendingPromotion is a promotion move waiting for the piece choice.
type PendingPromotion struct {
	From board.Square
	To   board.Square
}

type Controller struct {
	engine rules.Engine
	logger *zap.Logger

	snap      *rules.Snapshot
	selection *Selection
	pending   *PendingPromotion
}

func New(engine rules.Engine, logger *zap.Logger) (*Controller, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, logger: logger}, nil
}

// Phase derives the interaction state from the held fields.
func (c *Controller) Phase() Phase {
	switch {
	case c.snap == nil:
		return NotStarted
	case c.pending != nil:
		return AwaitingPromotion
	case c.selection != nil:
		return PieceSelected
	default:
		return Idle
	}
}

// Active reports whether a game has been started.
func (c *Controller) Active() bool { return c.snap != nil }

// Snapshot returns the current game snapshot, or nil before the first game.
func (c *Controller) Snapshot() *rules.Snapshot { return c.snap }

// Selection returns a copy of the current selection.
func (c *Controller) Selection() (Selection, bool) {
	if c.selection == nil {
		return Selection{}, false
	}
	return Selection{
		Square:       c.selection.Square,
		Destinations: append([]rules.LegalMove(nil), c.selection.Destinations...),
	}, true
}

// Pending returns the pending promotion, if any.
func (c *Controller) Pending() (PendingPromotion, bool) {
	if c.pending == nil {
		return PendingPromotion{}, false
	}
	return *c.pending, true
}

// NewGame installs a fresh initial position and clears all interaction state.
func (c *Controller) NewGame() error {
	snap, err := c.engine.NewGame()
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}
	c.install(snap)
	c.logger.Info("controller_new_game")
	return nil
}

// Load starts a game from fen. On failure the current game is kept.
func (c *Controller) Load(fen string) error {
	snap, err := c.engine.FromFEN(fen)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	c.install(snap)
	c.logger.Info("controller_load", zap.String("fen", snap.FEN()))
	return nil
}

func (c *Controller) install(snap *rules.Snapshot) {
	c.snap = snap
	c.selection = nil
	c.pending = nil
}

// Click feeds one board click into the state machine. Moves the engine
// rejects are recovered here and reported as Rejected; only unexpected
// engine or decode faults are returned as errors.
func (c *Controller) Click(sq board.Square) (Transition, error) {
	if !sq.Valid() {
		return None, fmt.Errorf("%w: %d", board.ErrInvalidSquare, sq)
	}
	if c.snap == nil || c.pending != nil || c.snap.Status().Terminal() {
		return None, nil
	}

	if c.selection == nil {
		ok, err := c.trySelect(sq)
		if err != nil || !ok {
			return None, err
		}
		return Selected, nil
	}

	if dest, ok := c.selection.Destination(sq); ok {
		from := c.selection.Square
		if dest.Promotion {
			c.selection = nil
			c.pending = &PendingPromotion{From: from, To: sq}
			c.logger.Debug("controller_promotion_pending",
				zap.Stringer("from", from),
				zap.Stringer("to", sq),
			)
			return PromotionPending, nil
		}
		before := c.snap
		if err := c.execute(rules.MoveRequest{From: from, To: sq}); err != nil {
			return Rejected, err
		}
		if c.snap == before {
			return Rejected, nil
		}
		return Moved, nil
	}

	c.selection = nil
	ok, err := c.trySelect(sq)
	if err != nil {
		return Cancelled, err
	}
	if ok {
		return Reselected, nil
	}
	return Cancelled, nil
}

// ChoosePromotion completes the pending promotion move with piece.
func (c *Controller) ChoosePromotion(piece board.PieceType) (Transition, error) {
	if c.pending == nil {
		return None, ErrNoPendingPromotion
	}
	if !piece.CanPromoteTo() {
		return None, fmt.Errorf("%w: %s", ErrInvalidPromotion, piece)
	}
	pending := *c.pending
	// the overlay must not outlive a rejected move
	c.pending = nil
	before := c.snap
	if err := c.execute(rules.MoveRequest{From: pending.From, To: pending.To, Promotion: piece}); err != nil {
		return Rejected, err
	}
	if c.snap == before {
		return Rejected, nil
	}
	return Moved, nil
}

// Undo rolls back one ply. It only acts in Idle with a non-empty history and
// reports whether anything was undone.
func (c *Controller) Undo() (bool, error) {
	if c.Phase() != Idle || c.snap.MoveCount() == 0 {
		return false, nil
	}
	snap, undone, err := c.engine.Undo(c.snap)
	if err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}
	if !undone {
		return false, nil
	}
	c.snap = snap
	c.logger.Debug("controller_undo", zap.Int("ply", snap.MoveCount()))
	return true, nil
}

// trySelect selects sq when it holds a piece of the side to move.
func (c *Controller) trySelect(sq board.Square) (bool, error) {
	b, err := c.snap.Board()
	if err != nil {
		return false, fmt.Errorf("decode position: %w", err)
	}
	piece, ok := b.Piece(sq)
	if !ok || piece.Color != c.snap.Turn() {
		return false, nil
	}
	dests, err := c.engine.LegalMoves(c.snap, sq)
	if err != nil {
		return false, fmt.Errorf("legal moves from %s: %w", sq, err)
	}
	c.selection = &Selection{Square: sq, Destinations: dests}
	c.logger.Debug("controller_select",
		zap.Stringer("square", sq),
		zap.Int("destinations", len(dests)),
	)
	return true, nil
}

// execute runs req through the engine. A rejected move leaves the snapshot
// and selection untouched and is not an error for the caller.
func (c *Controller) execute(req rules.MoveRequest) error {
	next, err := c.engine.Move(c.snap, req)
	if err != nil {
		c.logger.Warn("controller_move_rejected",
			zap.Stringer("from", req.From),
			zap.Stringer("to", req.To),
			zap.Stringer("promotion", req.Promotion),
			zap.Error(err),
		)
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil
		}
		return fmt.Errorf("execute move: %w", err)
	}
	c.snap = next
	c.selection = nil
	c.logger.Debug("controller_move",
		zap.Stringer("from", req.From),
		zap.Stringer("to", req.To),
		zap.Int("ply", next.MoveCount()),
	)
	return nil
}
