package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/rules"
)

func sq(s string) board.Square { return board.MustParseSquare(s) }

func playUCI(t *testing.T, fen string, moves ...string) *rules.Snapshot {
	t.Helper()
	e := rules.NewStandard(nil)
	snap, err := e.FromFEN(fen)
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	for _, mv := range moves {
		req := rules.MoveRequest{From: sq(mv[:2]), To: sq(mv[2:4])}
		if len(mv) == 5 {
			req.Promotion, _ = board.ParsePieceType(mv[4:])
		}
		if snap, err = e.Move(snap, req); err != nil {
			t.Fatalf("move %s: %v", mv, err)
		}
	}
	return snap
}

func TestDeriveNotStarted(t *testing.T) {
	v := Derive(nil)
	if v.Active || v.CanUndo || v.LastMove != nil {
		t.Fatalf("view: %+v", v)
	}
	if v.Status != `Click "New Game" to start playing` {
		t.Fatalf("status: %q", v.Status)
	}
}

func TestDeriveStatusTexts(t *testing.T) {
	cases := []struct {
		name  string
		fen   string
		moves []string
		want  string
	}{
		{"initial", "", nil, "White to move"},
		{"after e4", "", []string{"e2e4"}, "Black to move"},
		{"check", "", []string{"e2e4", "f7f6", "d1h5"}, "Black is in check"},
		{"check at load", "4k3/8/8/8/8/8/4r3/4K3 w - - 0 1", nil, "White is in check"},
		{"mate", "", []string{"f2f3", "e7e5", "g2g4", "d8h4"}, "Checkmate! Black wins!"},
		{"stalemate", "7k/4Q3/6K1/8/8/8/8/8 w - - 0 1", []string{"e7f7"}, "Game ended in a draw (Stalemate)"},
		{"bare kings", "k7/8/8/8/8/8/1q6/K7 w - - 0 1", []string{"a1b2"}, "Game ended in a draw (Insufficient material)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Derive(playUCI(t, tc.fen, tc.moves...))
			if v.Status != tc.want {
				t.Fatalf("status: got %q want %q", v.Status, tc.want)
			}
		})
	}
}

func TestDeriveHistoryPairsAndLabels(t *testing.T) {
	snap := playUCI(t, "",
		"e2e4", "d7d5", "e4d5", "g8f6", "f1b5", "c7c6", "g1f3", "c6b5", "e1g1",
	)
	v := Derive(snap)
	if len(v.History) != 5 {
		t.Fatalf("rows: %d", len(v.History))
	}
	if v.History[0].Number != 1 || v.History[0].White.SAN != "e4" || v.History[0].Black.SAN != "d5" {
		t.Fatalf("row 1: %+v", v.History[0])
	}
	if got := v.History[1].White; got.Label != Capture || got.LabelText != "Capture" {
		t.Fatalf("exd5 label: %+v", got)
	}
	if got := v.History[2].White; got.Label != Check || got.SAN != "Bb5+" {
		t.Fatalf("Bb5+ label: %+v", got)
	}
	last := v.History[4]
	if last.White.Label != Castle || last.White.SAN != "O-O" || last.Black != nil {
		t.Fatalf("row 5: %+v", last)
	}
	if diff := cmp.Diff(&LastMove{From: sq("e1"), To: sq("g1")}, v.LastMove); diff != "" {
		t.Fatalf("last move (-want +got):\n%s", diff)
	}
	want := Captured{
		ByWhite: []board.PieceType{board.Pawn},
		ByBlack: []board.PieceType{board.Bishop},
	}
	if diff := cmp.Diff(want, v.Captured); diff != "" {
		t.Fatalf("captured (-want +got):\n%s", diff)
	}
	if !v.CanUndo || !v.Active || v.GameOver {
		t.Fatalf("flags: %+v", v)
	}
}

func TestDeriveMateLabel(t *testing.T) {
	v := Derive(playUCI(t, "", "f2f3", "e7e5", "g2g4", "d8h4"))
	black := v.History[1].Black
	if black == nil || black.Label != Checkmate || black.LabelText != "Checkmate" {
		t.Fatalf("mate ply: %+v", black)
	}
	if !v.GameOver {
		t.Fatalf("expected game over")
	}
}

func TestDeriveBlackFirstHistory(t *testing.T) {
	snap := playUCI(t, "4k3/8/8/8/8/8/4p3/K7 b - - 0 1", "e2e1q", "a1b2")
	v := Derive(snap)
	if len(v.History) != 2 {
		t.Fatalf("rows: %+v", v.History)
	}
	if v.History[0].Black == nil || v.History[0].White.SAN != "" {
		t.Fatalf("row 1: %+v", v.History[0])
	}
	if v.History[1].White.SAN != "Kb2" {
		t.Fatalf("row 2: %+v", v.History[1])
	}
}

func TestDeriveIsRepeatable(t *testing.T) {
	snap := playUCI(t, "", "e2e4", "d7d5", "e4d5", "d8d5")
	if diff := cmp.Diff(Derive(snap), Derive(snap)); diff != "" {
		t.Fatalf("derive not repeatable:\n%s", diff)
	}
}
