package controller

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/rules"
)

func sq(s string) board.Square { return board.MustParseSquare(s) }

func newController(t *testing.T, engine rules.Engine) *Controller {
	t.Helper()
	if engine == nil {
		engine = rules.NewStandard(nil)
	}
	c, err := New(engine, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func started(t *testing.T) *Controller {
	t.Helper()
	c := newController(t, nil)
	if err := c.NewGame(); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return c
}

func click(t *testing.T, c *Controller, square string, want Transition) {
	t.Helper()
	got, err := c.Click(sq(square))
	if err != nil {
		t.Fatalf("click %s: %v", square, err)
	}
	if got != want {
		t.Fatalf("click %s: got %v want %v (phase %v)", square, got, want, c.Phase())
	}
}

// rejectingEngine accepts everything a Standard engine does except moves.
type rejectingEngine struct {
	*rules.Standard
}

func (rejectingEngine) Move(*rules.Snapshot, rules.MoveRequest) (*rules.Snapshot, error) {
	return nil, rules.ErrIllegalMove
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}

func TestClicksIgnoredBeforeGame(t *testing.T) {
	c := newController(t, nil)
	if c.Phase() != NotStarted || c.Active() {
		t.Fatalf("phase: %v", c.Phase())
	}
	click(t, c, "e2", None)
	if undone, err := c.Undo(); undone || err != nil {
		t.Fatalf("undo before game: %v %v", undone, err)
	}
}

func TestSelectAndMovePawn(t *testing.T) {
	c := started(t)
	click(t, c, "e2", Selected)

	sel, ok := c.Selection()
	if !ok || c.Phase() != PieceSelected {
		t.Fatalf("expected selection, phase %v", c.Phase())
	}
	want := Selection{
		Square:       sq("e2"),
		Destinations: []rules.LegalMove{{To: sq("e3")}, {To: sq("e4")}},
	}
	if diff := cmp.Diff(want, sel); diff != "" {
		t.Fatalf("selection (-want +got):\n%s", diff)
	}

	click(t, c, "e4", Moved)
	if c.Phase() != Idle {
		t.Fatalf("phase after move: %v", c.Phase())
	}
	snap := c.Snapshot()
	if snap.Turn() != board.Black {
		t.Fatalf("turn: %v", snap.Turn())
	}
	hist := snap.History()
	if len(hist) != 1 || hist[0].From != sq("e2") || hist[0].To != sq("e4") || hist[0].SAN != "e4" {
		t.Fatalf("history: %+v", hist)
	}
}

func TestDestinationsMatchEngine(t *testing.T) {
	c := started(t)
	engine := rules.NewStandard(nil)
	for _, from := range []string{"a2", "b1", "g1", "h2"} {
		click(t, c, from, Selected)
		sel, _ := c.Selection()
		want, err := engine.LegalMoves(c.Snapshot(), sq(from))
		if err != nil {
			t.Fatalf("LegalMoves: %v", err)
		}
		if diff := cmp.Diff(want, sel.Destinations); diff != "" {
			t.Fatalf("%s destinations (-engine +controller):\n%s", from, diff)
		}
		click(t, c, "e5", Cancelled)
	}
}

func TestIdleClicksOnEmptyOrOpponentAreInert(t *testing.T) {
	c := started(t)
	click(t, c, "e4", None)
	click(t, c, "e7", None)
	if c.Phase() != Idle {
		t.Fatalf("phase: %v", c.Phase())
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("unexpected selection")
	}
}

func TestCancelAndReselect(t *testing.T) {
	c := started(t)
	click(t, c, "e2", Selected)
	click(t, c, "d2", Reselected)
	if sel, _ := c.Selection(); sel.Square != sq("d2") {
		t.Fatalf("selection: %v", sel.Square)
	}
	// the selected square itself is not a destination, so it is re-selected
	click(t, c, "d2", Reselected)
	click(t, c, "h6", Cancelled)
	if c.Phase() != Idle {
		t.Fatalf("phase: %v", c.Phase())
	}
	click(t, c, "g1", Selected)
	click(t, c, "e7", Cancelled)
}

func TestPieceWithoutMovesStillSelects(t *testing.T) {
	c := started(t)
	click(t, c, "a1", Selected)
	sel, ok := c.Selection()
	if !ok || len(sel.Destinations) != 0 {
		t.Fatalf("selection: %+v %v", sel, ok)
	}
	click(t, c, "a3", Cancelled)
}

func TestPromotionFlow(t *testing.T) {
	c := newController(t, nil)
	if err := c.Load("4k3/P7/8/8/8/8/8/4K3 w - - 0 1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	click(t, c, "a7", Selected)
	click(t, c, "a8", PromotionPending)

	if c.Phase() != AwaitingPromotion {
		t.Fatalf("phase: %v", c.Phase())
	}
	if c.Snapshot().MoveCount() != 0 {
		t.Fatalf("move executed before promotion choice")
	}
	if p, ok := c.Pending(); !ok || p != (PendingPromotion{From: sq("a7"), To: sq("a8")}) {
		t.Fatalf("pending: %+v %v", p, ok)
	}

	click(t, c, "e1", None)
	if undone, _ := c.Undo(); undone {
		t.Fatalf("undo must be unavailable while a promotion is pending")
	}
	if _, err := c.ChoosePromotion(board.King); !errors.Is(err, ErrInvalidPromotion) {
		t.Fatalf("king promotion: %v", err)
	}
	if c.Phase() != AwaitingPromotion {
		t.Fatalf("invalid choice must keep the pending promotion")
	}

	tr, err := c.ChoosePromotion(board.Knight)
	if err != nil || tr != Moved {
		t.Fatalf("ChoosePromotion: %v %v", tr, err)
	}
	last, ok := c.Snapshot().LastMove()
	if !ok || last.Promotion != board.Knight {
		t.Fatalf("last move: %+v", last)
	}
	if c.Phase() != Idle {
		t.Fatalf("phase: %v", c.Phase())
	}
	if _, err := c.ChoosePromotion(board.Queen); !errors.Is(err, ErrNoPendingPromotion) {
		t.Fatalf("second choice: %v", err)
	}
}

func TestCheckmateFreezesBoard(t *testing.T) {
	c := started(t)
	for _, pair := range [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}} {
		click(t, c, pair[0], Selected)
		click(t, c, pair[1], Moved)
	}
	if !c.Snapshot().Status().Checkmate {
		t.Fatalf("expected checkmate")
	}
	click(t, c, "e1", None)
	click(t, c, "a2", None)
	if c.Phase() != Idle {
		t.Fatalf("phase: %v", c.Phase())
	}
}

func TestUndo(t *testing.T) {
	c := started(t)
	if undone, err := c.Undo(); undone || err != nil {
		t.Fatalf("undo on empty history: %v %v", undone, err)
	}
	click(t, c, "e2", Selected)
	click(t, c, "e4", Moved)

	click(t, c, "e7", Selected)
	if undone, _ := c.Undo(); undone {
		t.Fatalf("undo must be unavailable with a selection")
	}
	click(t, c, "a3", Cancelled)

	undone, err := c.Undo()
	if err != nil || !undone {
		t.Fatalf("Undo: %v %v", undone, err)
	}
	if c.Snapshot().FEN() != board.StartFEN || len(c.Snapshot().History()) != 0 {
		t.Fatalf("after undo: %s", c.Snapshot().FEN())
	}
}

func TestRejectedMoveKeepsState(t *testing.T) {
	c := newController(t, rejectingEngine{rules.NewStandard(nil)})
	if err := c.NewGame(); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	before := c.Snapshot()
	click(t, c, "e2", Selected)
	click(t, c, "e4", Rejected)
	if c.Snapshot() != before {
		t.Fatalf("snapshot replaced after rejection")
	}
	if sel, ok := c.Selection(); !ok || sel.Square != sq("e2") {
		t.Fatalf("selection lost after rejection: %+v %v", sel, ok)
	}
}

func TestRejectedPromotionClearsOverlay(t *testing.T) {
	c := newController(t, rejectingEngine{rules.NewStandard(nil)})
	if err := c.Load("4k3/P7/8/8/8/8/8/4K3 w - - 0 1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	click(t, c, "a7", Selected)
	click(t, c, "a8", PromotionPending)
	tr, err := c.ChoosePromotion(board.Queen)
	if err != nil || tr != Rejected {
		t.Fatalf("ChoosePromotion: %v %v", tr, err)
	}
	if c.Phase() != Idle || c.Snapshot().MoveCount() != 0 {
		t.Fatalf("phase %v moves %d", c.Phase(), c.Snapshot().MoveCount())
	}
}

func TestNewGameResetsEverything(t *testing.T) {
	c := newController(t, nil)
	if err := c.Load("4k3/P7/8/8/8/8/8/4K3 w - - 0 1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	click(t, c, "a7", Selected)
	click(t, c, "a8", PromotionPending)
	if err := c.NewGame(); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if c.Phase() != Idle || c.Snapshot().FEN() != board.StartFEN {
		t.Fatalf("phase %v fen %s", c.Phase(), c.Snapshot().FEN())
	}
	if _, ok := c.Pending(); ok {
		t.Fatalf("pending promotion survived NewGame")
	}
}

func TestLoadRejectsBadFEN(t *testing.T) {
	c := started(t)
	before := c.Snapshot()
	if err := c.Load("not/a/fen"); !errors.Is(err, rules.ErrInvalidPosition) {
		t.Fatalf("Load: %v", err)
	}
	if c.Snapshot() != before {
		t.Fatalf("snapshot replaced on failed load")
	}
}
