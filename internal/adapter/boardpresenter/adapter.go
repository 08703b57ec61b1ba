// Package boardpresenter converts controller state and derived views into
// the DTOs served to the board UI.
package boardpresenter

import (
	"fmt"

	"github.com/park285/cheese-board/internal/assets"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/view"
	"github.com/park285/cheese-board/pkg/boarddto"
)

// ToDTOState builds the full UI state. The caller must hold the session
// lock for c.
func ToDTOState(sessionID string, c *controller.Controller, v view.View, assetsReady bool) (*boarddto.State, error) {
	if c == nil {
		return nil, controller.ErrNoGame
	}
	snap := c.Snapshot()
	fen := board.StartFEN
	if snap != nil {
		fen = snap.FEN()
	}
	b, err := board.Decode(fen)
	if err != nil {
		return nil, fmt.Errorf("present board: %w", err)
	}

	st := &boarddto.State{
		SessionID:   sessionID,
		Phase:       c.Phase().String(),
		Active:      v.Active,
		GameOver:    v.GameOver,
		Status:      v.Status,
		History:     toDTOHistory(v.History),
		Captured:    toDTOCaptured(v.Captured),
		CanUndo:     v.CanUndo && c.Phase() == controller.Idle,
		AssetsReady: assetsReady,
	}
	if snap != nil {
		st.Turn = v.Turn.Code()
		st.FEN = snap.FEN()
	}
	if v.LastMove != nil {
		st.LastMove = &boarddto.Move{From: v.LastMove.From.String(), To: v.LastMove.To.String()}
	}
	if v.Opening.Code != "" {
		st.Opening = &boarddto.Opening{Code: v.Opening.Code, Title: v.Opening.Title}
	}

	var checked *board.Square
	if snap != nil {
		if s := snap.Status(); s.Check || s.Checkmate {
			checked = kingSquare(b, snap.Turn())
		}
	}
	sel, hasSel := c.Selection()
	st.Squares = toDTOSquares(b, sel, hasSel, v.LastMove, checked)

	if p, ok := c.Pending(); ok {
		st.Promotion = toDTOPromotion(p, v.Turn)
	}
	return st, nil
}

func toDTOSquares(b board.Board, sel controller.Selection, hasSel bool, last *view.LastMove, checked *board.Square) []boarddto.Square {
	out := make([]boarddto.Square, 0, 64)
	for _, sq := range board.AllSquares() {
		d := boarddto.Square{Coord: sq.String(), Light: sq.Light()}
		p, occupied := b.Piece(sq)
		if occupied {
			d.Piece = p.Code()
			d.Glyph = p.Glyph()
			d.Image = assets.Path(p)
		}
		if hasSel {
			d.Selected = sq == sel.Square
			if _, ok := sel.Destination(sq); ok {
				d.Destination = true
				d.CaptureTarget = occupied
			}
		}
		if last != nil {
			d.LastMove = sq == last.From || sq == last.To
		}
		d.Check = checked != nil && *checked == sq
		out = append(out, d)
	}
	return out
}

func toDTOHistory(pairs []view.MovePair) []boarddto.MovePair {
	out := make([]boarddto.MovePair, 0, len(pairs))
	for _, mp := range pairs {
		row := boarddto.MovePair{Number: mp.Number}
		if mp.White.SAN != "" {
			white := toDTOPly(mp.White)
			row.White = &white
		}
		if mp.Black != nil {
			black := toDTOPly(*mp.Black)
			row.Black = &black
		}
		out = append(out, row)
	}
	return out
}

func toDTOPly(p view.Ply) boarddto.Ply {
	return boarddto.Ply{SAN: p.SAN, From: p.From.String(), To: p.To.String(), Label: p.LabelText}
}

// toDTOCaptured flips colors: white's tray holds black pieces.
func toDTOCaptured(c view.Captured) boarddto.Captured {
	return boarddto.Captured{
		ByWhite: capturedPieces(c.ByWhite, board.Black),
		ByBlack: capturedPieces(c.ByBlack, board.White),
	}
}

func capturedPieces(types []board.PieceType, owner board.Color) []boarddto.CapturedPiece {
	out := make([]boarddto.CapturedPiece, 0, len(types))
	for _, t := range types {
		p := board.Piece{Type: t, Color: owner}
		out = append(out, boarddto.CapturedPiece{Piece: p.Code(), Glyph: p.Glyph(), Image: assets.Path(p)})
	}
	return out
}

func toDTOPromotion(p controller.PendingPromotion, mover board.Color) *boarddto.Promotion {
	choices := make([]boarddto.PromotionChoice, 0, len(board.PromotionTypes))
	for _, t := range board.PromotionTypes {
		piece := board.Piece{Type: t, Color: mover}
		choices = append(choices, boarddto.PromotionChoice{
			Piece: t.Letter(),
			Code:  piece.Code(),
			Glyph: piece.Glyph(),
			Image: assets.Path(piece),
		})
	}
	return &boarddto.Promotion{From: p.From.String(), To: p.To.String(), Choices: choices}
}

func kingSquare(b board.Board, c board.Color) *board.Square {
	king := board.Piece{Type: board.King, Color: c}
	for sq, p := range b {
		if p == king {
			return &sq
		}
	}
	return nil
}
