// Package view derives everything the board UI displays from a game
// snapshot. Derivation is pure and recomputed in full for every snapshot;
// nothing here is updated incrementally.
package view

import (
	"strings"
	"sync"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/rules"
)

// Label classifies a ply in the history panel.
type Label int

const (
	NoLabel Label = iota
	Checkmate
	Check
	Capture
	Castle
)

var labelKeys = map[Label]string{
	Checkmate: "label.checkmate",
	Check:     "label.check",
	Capture:   "label.capture",
	Castle:    "label.castle",
}

// Classify labels a ply by precedence: checkmate, check, capture, castle.
func Classify(h rules.HistoryEntry) Label {
	switch {
	case strings.Contains(h.SAN, "#"):
		return Checkmate
	case strings.Contains(h.SAN, "+"):
		return Check
	case h.Captured != board.NoPieceType:
		return Capture
	case h.SAN == "O-O" || h.SAN == "O-O-O":
		return Castle
	default:
		return NoLabel
	}
}

type Ply struct {
	SAN       string
	From      board.Square
	To        board.Square
	Label     Label
	LabelText string
}

// MovePair is one numbered row of the history panel. Black is nil while
// black has not replied yet.
type MovePair struct {
	Number int
	White  Ply
	Black  *Ply
}

// Captured lists captured piece types by the color that captured them, in
// capture order.
type Captured struct {
	ByWhite []board.PieceType
	ByBlack []board.PieceType
}

type LastMove struct {
	From board.Square
	To   board.Square
}

type View struct {
	Active   bool
	Status   string
	Turn     board.Color
	GameOver bool
	History  []MovePair
	Captured Captured
	LastMove *LastMove
	CanUndo  bool
	Opening  rules.Opening
}

// Deriver renders status text and labels through a message catalog.
type Deriver struct {
	cat *msgcat.Catalog
}

func NewDeriver(cat *msgcat.Catalog) *Deriver {
	if cat == nil {
		cat = defaultCatalog()
	}
	return &Deriver{cat: cat}
}

var defaultCatalog = sync.OnceValue(msgcat.MustDefault)

// Derive uses the embedded English messages. A nil snapshot means no game
// has been started.
func Derive(snap *rules.Snapshot) View {
	return NewDeriver(nil).Derive(snap)
}

func (d *Deriver) Derive(snap *rules.Snapshot) View {
	if snap == nil {
		return View{Status: d.cat.Text("status.not_started", nil)}
	}
	history := snap.History()
	st := snap.Status()
	v := View{
		Active:   true,
		Status:   d.status(snap.Turn(), st),
		Turn:     snap.Turn(),
		GameOver: st.Terminal(),
		History:  d.pairs(history),
		Captured: capturedFrom(history),
		CanUndo:  len(history) > 0,
		Opening:  snap.Opening(),
	}
	if n := len(history); n > 0 {
		v.LastMove = &LastMove{From: history[n-1].From, To: history[n-1].To}
	}
	return v
}

func (d *Deriver) status(turn board.Color, st rules.Status) string {
	switch {
	case st.Checkmate:
		return d.cat.Text("status.checkmate", map[string]any{"Winner": turn.Opponent().String()})
	case st.Draw:
		var reasons []string
		if st.Stalemate {
			reasons = append(reasons, d.cat.Text("draw.stalemate", nil))
		}
		if st.InsufficientMaterial {
			reasons = append(reasons, d.cat.Text("draw.insufficient_material", nil))
		}
		if st.ThreefoldRepetition {
			reasons = append(reasons, d.cat.Text("draw.threefold_repetition", nil))
		}
		if st.FiftyMoveRule {
			reasons = append(reasons, d.cat.Text("draw.fifty_move_rule", nil))
		}
		return d.cat.Text("status.draw", map[string]any{"Reasons": reasons})
	case st.Check:
		return d.cat.Text("status.check", map[string]any{"Side": turn.String()})
	default:
		return d.cat.Text("status.turn", map[string]any{"Side": turn.String()})
	}
}

func (d *Deriver) ply(h rules.HistoryEntry) Ply {
	p := Ply{SAN: h.SAN, From: h.From, To: h.To, Label: Classify(h)}
	if key, ok := labelKeys[p.Label]; ok {
		p.LabelText = d.cat.Text(key, nil)
	}
	return p
}

// pairs groups plies by move number. A history that starts with black to
// move (a loaded position) puts black's ply in the first row alone.
func (d *Deriver) pairs(history []rules.HistoryEntry) []MovePair {
	var out []MovePair
	for i := 0; i < len(history); i++ {
		h := history[i]
		if h.Color == board.Black {
			p := d.ply(h)
			out = append(out, MovePair{Number: len(out) + 1, Black: &p})
			continue
		}
		row := MovePair{Number: len(out) + 1, White: d.ply(h)}
		if i+1 < len(history) && history[i+1].Color == board.Black {
			p := d.ply(history[i+1])
			row.Black = &p
			i++
		}
		out = append(out, row)
	}
	return out
}

func capturedFrom(history []rules.HistoryEntry) Captured {
	var c Captured
	for _, h := range history {
		if h.Captured == board.NoPieceType {
			continue
		}
		if h.Color == board.White {
			c.ByWhite = append(c.ByWhite, h.Captured)
		} else {
			c.ByBlack = append(c.ByBlack, h.Captured)
		}
	}
	return c
}
