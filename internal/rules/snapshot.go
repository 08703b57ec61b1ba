package rules

import (
	"strings"

	"github.com/park285/cheese-board/internal/board"
)

// Status carries the terminal and check flags of a position.
type Status struct {
	Check                bool
	Checkmate            bool
	Stalemate            bool
	ThreefoldRepetition  bool
	InsufficientMaterial bool
	FiftyMoveRule        bool
	Draw                 bool
}

// Terminal reports whether the game has ended (checkmate or any draw).
func (s Status) Terminal() bool {
	return s.Checkmate || s.Draw
}

// HistoryEntry is one ply of verbose move history.
type HistoryEntry struct {
	From      board.Square
	To        board.Square
	Color     board.Color
	Piece     board.PieceType
	Captured  board.PieceType
	Promotion board.PieceType
	Check     bool
	Checkmate bool
	SAN       string
	UCI       string
}

// Castle reports whether the entry is a castling move.
func (h HistoryEntry) Castle() bool {
	return strings.HasPrefix(h.SAN, "O-O")
}

// Opening names the ECO classification of the move sequence, when known.
type Opening struct {
	Code  string
	Title string
}

// Snapshot is an immutable game state. It never shares storage with the
// engine object it was produced from; every accessor returns copies.
type Snapshot struct {
	startFEN string
	moves    []string

	fen     string
	turn    board.Color
	status  Status
	history []HistoryEntry
	opening Opening
}

// FEN returns the full position encoding.
func (s *Snapshot) FEN() string { return s.fen }

// Turn returns the side to move.
func (s *Snapshot) Turn() board.Color { return s.turn }

// Status returns the terminal and check flags.
func (s *Snapshot) Status() Status { return s.status }

// History returns a copy of the verbose move history, oldest first.
func (s *Snapshot) History() []HistoryEntry {
	return append([]HistoryEntry(nil), s.history...)
}

// MoveCount returns the number of plies played since the start position.
func (s *Snapshot) MoveCount() int { return len(s.moves) }

// MovesUCI returns a copy of the played moves in UCI notation.
func (s *Snapshot) MovesUCI() []string {
	return append([]string(nil), s.moves...)
}

// StartFEN returns the position the game began from.
func (s *Snapshot) StartFEN() string {
	if s.startFEN == "" {
		return board.StartFEN
	}
	return s.startFEN
}

// Opening returns the ECO opening for the move sequence, or a zero value.
func (s *Snapshot) Opening() Opening { return s.opening }

// LastMove returns the most recent history entry.
func (s *Snapshot) LastMove() (HistoryEntry, bool) {
	if len(s.history) == 0 {
		return HistoryEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// Board decodes the snapshot's position for rendering.
func (s *Snapshot) Board() (board.Board, error) {
	return board.Decode(s.fen)
}
