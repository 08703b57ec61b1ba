// Package rules adapts github.com/corentings/chess/v2 to the rules-engine
// contract the board controller consumes. Every call rehydrates a fresh
// engine game from the snapshot's start position and UCI move list, so
// snapshots never share engine storage.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/board"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
	ErrNoSnapshot      = errors.New("no game snapshot")
)

// LegalMove is a destination reachable from a queried origin square.
// Promotion is set when reaching To requires choosing a promotion piece.
type LegalMove struct {
	To        board.Square
	Promotion bool
}

// MoveRequest describes a move to execute. Promotion is NoPieceType for
// ordinary moves.
type MoveRequest struct {
	From      board.Square
	To        board.Square
	Promotion board.PieceType
}

func (r MoveRequest) uci() string {
	return r.From.String() + r.To.String() + r.Promotion.Letter()
}

// Engine is the rules-engine contract: construct games, list legal moves,
// execute and undo moves. Mutating calls return a new Snapshot and leave
// their input untouched.
type Engine interface {
	NewGame() (*Snapshot, error)
	FromFEN(fen string) (*Snapshot, error)
	LegalMoves(s *Snapshot, from board.Square) ([]LegalMove, error)
	Move(s *Snapshot, req MoveRequest) (*Snapshot, error)
	Undo(s *Snapshot) (*Snapshot, bool, error)
}

// Standard implements Engine with standard chess rules.
type Standard struct {
	logger *zap.Logger
}

func NewStandard(logger *zap.Logger) *Standard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Standard{logger: logger}
}

func (e *Standard) NewGame() (*Snapshot, error) {
	return build("", nil)
}

func (e *Standard) FromFEN(fen string) (*Snapshot, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == board.StartFEN {
		return build("", nil)
	}
	if _, err := board.Decode(fen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return build(fen, nil)
}

func (e *Standard) LegalMoves(s *Snapshot, from board.Square) ([]LegalMove, error) {
	if s == nil {
		return nil, ErrNoSnapshot
	}
	game, err := replay(s.startFEN, s.moves)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, nil
	}

	origin := toEngineSquare(from)
	index := make(map[board.Square]int)
	var out []LegalMove
	for _, mv := range game.ValidMoves() {
		if mv.S1() != origin {
			continue
		}
		to := fromEngineSquare(mv.S2())
		promo := mv.Promo() != nchess.NoPieceType
		if i, ok := index[to]; ok {
			out[i].Promotion = out[i].Promotion || promo
			continue
		}
		index[to] = len(out)
		out = append(out, LegalMove{To: to, Promotion: promo})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out, nil
}

func (e *Standard) Move(s *Snapshot, req MoveRequest) (*Snapshot, error) {
	if s == nil {
		return nil, ErrNoSnapshot
	}
	if req.Promotion != board.NoPieceType && !req.Promotion.CanPromoteTo() {
		return nil, fmt.Errorf("%w: cannot promote to %s", ErrIllegalMove, req.Promotion)
	}
	game, err := replay(s.startFEN, s.moves)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, fmt.Errorf("%w: game already finished", ErrIllegalMove)
	}

	text := req.uci()
	move, err := nchess.UCINotation{}.Decode(game.Position(), text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, text, err)
	}
	if err := game.Move(move, nil); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, text, err)
	}

	moves := append(s.MovesUCI(), text)
	e.logger.Debug("rules_move",
		zap.String("uci", text),
		zap.Int("ply", len(moves)),
		zap.String("fen", game.FEN()),
	)
	return snapshotFromGame(s.startFEN, moves, game), nil
}

// Undo rolls back one ply. The boolean is false, with the input snapshot
// returned, when there is nothing to undo.
func (e *Standard) Undo(s *Snapshot) (*Snapshot, bool, error) {
	if s == nil {
		return nil, false, ErrNoSnapshot
	}
	if len(s.moves) == 0 {
		return s, false, nil
	}
	next, err := build(s.startFEN, s.moves[:len(s.moves)-1])
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func build(startFEN string, moves []string) (*Snapshot, error) {
	game, err := replay(startFEN, moves)
	if err != nil {
		return nil, err
	}
	return snapshotFromGame(startFEN, append([]string(nil), moves...), game), nil
}

func replay(startFEN string, moves []string) (*nchess.Game, error) {
	var game *nchess.Game
	if startFEN == "" {
		game = nchess.NewGame()
	} else {
		opt, err := nchess.FEN(startFEN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
		}
		game = nchess.NewGame(opt)
	}
	notation := nchess.UCINotation{}
	for _, mv := range moves {
		move, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func snapshotFromGame(startFEN string, moves []string, game *nchess.Game) *Snapshot {
	history := buildHistory(game)
	snap := &Snapshot{
		startFEN: startFEN,
		moves:    moves,
		fen:      game.FEN(),
		turn:     colorFrom(game.Position().Turn()),
		history:  history,
		status:   statusOf(game, history),
	}
	if startFEN == "" {
		snap.opening = lookupOpening(game)
	}
	return snap
}

func buildHistory(game *nchess.Game) []HistoryEntry {
	moves := game.Moves()
	positions := game.Positions()
	san := nchess.AlgebraicNotation{}
	uci := nchess.UCINotation{}

	out := make([]HistoryEntry, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		pos := positions[i]
		mover := pos.Board().Piece(mv.S1())
		entry := HistoryEntry{
			From:      fromEngineSquare(mv.S1()),
			To:        fromEngineSquare(mv.S2()),
			Color:     colorFrom(pos.Turn()),
			Piece:     pieceTypeFrom(mover.Type()),
			Captured:  capturedType(pos, mv),
			Promotion: pieceTypeFrom(mv.Promo()),
			SAN:       san.Encode(pos, mv),
			UCI:       strings.ToLower(uci.Encode(pos, mv)),
		}
		entry.Checkmate = strings.HasSuffix(entry.SAN, "#")
		entry.Check = entry.Checkmate || mv.HasTag(nchess.Check)
		out = append(out, entry)
	}
	return out
}

func capturedType(pos *nchess.Position, mv *nchess.Move) board.PieceType {
	if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
		return board.NoPieceType
	}
	sq := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		if pos.Turn() == nchess.White {
			sq = nchess.NewSquare(sq.File(), sq.Rank()-1)
		} else {
			sq = nchess.NewSquare(sq.File(), sq.Rank()+1)
		}
	}
	piece := pos.Board().Piece(sq)
	if piece == nchess.NoPiece {
		return board.NoPieceType
	}
	return pieceTypeFrom(piece.Type())
}

func statusOf(game *nchess.Game, history []HistoryEntry) Status {
	var st Status
	switch game.Method() {
	case nchess.Checkmate:
		st.Checkmate = true
	case nchess.Stalemate:
		st.Stalemate = true
	case nchess.InsufficientMaterial:
		st.InsufficientMaterial = true
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		st.ThreefoldRepetition = true
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		st.FiftyMoveRule = true
	}
	if game.Outcome() == nchess.Draw {
		st.Draw = true
	}
	if game.Outcome() == nchess.NoOutcome {
		// claimable draws count as drawn
		for _, m := range game.EligibleDraws() {
			switch m {
			case nchess.ThreefoldRepetition:
				st.ThreefoldRepetition = true
				st.Draw = true
			case nchess.FiftyMoveRule:
				st.FiftyMoveRule = true
				st.Draw = true
			}
		}
	}
	if !st.Checkmate {
		if n := len(history); n > 0 {
			st.Check = history[n-1].Check
		} else {
			st.Check = rootInCheck(game.FEN(), colorFrom(game.Position().Turn()))
		}
	}
	return st
}

// rootInCheck reports whether turn's king is attacked in a position no move
// led into. The library only tags check on moves, so the opponent is given
// the move on a separate game with its own king lifted, and its legal
// replies are searched for one landing on the king.
func rootInCheck(fen string, turn board.Color) bool {
	b, err := board.Decode(fen)
	if err != nil {
		return false
	}
	king, found := board.Square(0), false
	for sq, p := range b {
		switch p {
		case board.Piece{Type: board.King, Color: turn}:
			king, found = sq, true
		case board.Piece{Type: board.King, Color: turn.Opponent()}:
			delete(b, sq)
		}
	}
	if !found {
		return false
	}
	opt, err := nchess.FEN(board.Placement(b) + " " + turn.Opponent().Code() + " - - 0 1")
	if err != nil {
		return false
	}
	target := toEngineSquare(king)
	for _, mv := range nchess.NewGame(opt).ValidMoves() {
		if mv.S2() == target {
			return true
		}
	}
	return false
}

var ecoBook = sync.OnceValue(opening.NewBookECO)

func lookupOpening(game *nchess.Game) Opening {
	moves := game.Moves()
	if len(moves) == 0 {
		return Opening{}
	}
	book := ecoBook()
	if book == nil {
		return Opening{}
	}
	if eco := book.Find(moves); eco != nil {
		return Opening{Code: eco.Code(), Title: eco.Title()}
	}
	return Opening{}
}

func toEngineSquare(sq board.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File()), nchess.Rank(sq.Rank()))
}

func fromEngineSquare(sq nchess.Square) board.Square {
	return board.NewSquare(int(sq.File()), int(sq.Rank()))
}

func colorFrom(c nchess.Color) board.Color {
	if c == nchess.Black {
		return board.Black
	}
	return board.White
}

func pieceTypeFrom(t nchess.PieceType) board.PieceType {
	switch t {
	case nchess.Pawn:
		return board.Pawn
	case nchess.Knight:
		return board.Knight
	case nchess.Bishop:
		return board.Bishop
	case nchess.Rook:
		return board.Rook
	case nchess.Queen:
		return board.Queen
	case nchess.King:
		return board.King
	default:
		return board.NoPieceType
	}
}
