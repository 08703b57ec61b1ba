package board

import "fmt"

// Color identifies a chess side.
type Color uint8

const (
	White Color = iota
	Black
)

// Code returns the single-letter color code used by asset names ("w" or "b").
func (c Color) Code() string {
	if c == Black {
		return "b"
	}
	return "w"
}

func (c Color) String() string {
	if c == Black {
		return "Black"
	}
	return "White"
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceType is the kind of a piece. NoPieceType marks "none" in history
// entries (no capture, no promotion).
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// PieceTypes lists every real piece type in asset order.
var PieceTypes = []PieceType{Pawn, Knight, Bishop, Rook, Queen, King}

// PromotionTypes lists the piece types a pawn may promote to, in chooser order.
var PromotionTypes = []PieceType{Queen, Rook, Knight, Bishop}

// Letter returns the lowercase FEN letter for the type, or "" for NoPieceType.
func (t PieceType) Letter() string {
	switch t {
	case Pawn:
		return "p"
	case Knight:
		return "n"
	case Bishop:
		return "b"
	case Rook:
		return "r"
	case Queen:
		return "q"
	case King:
		return "k"
	default:
		return ""
	}
}

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// CanPromoteTo reports whether a pawn may become this type.
func (t PieceType) CanPromoteTo() bool {
	switch t {
	case Queen, Rook, Knight, Bishop:
		return true
	default:
		return false
	}
}

// ParsePieceType accepts a FEN letter (either case) or a full English name.
func ParsePieceType(s string) (PieceType, error) {
	switch s {
	case "p", "P", "pawn":
		return Pawn, nil
	case "n", "N", "knight":
		return Knight, nil
	case "b", "B", "bishop":
		return Bishop, nil
	case "r", "R", "rook":
		return Rook, nil
	case "q", "Q", "queen":
		return Queen, nil
	case "k", "K", "king":
		return King, nil
	default:
		return NoPieceType, fmt.Errorf("unknown piece type %q", s)
	}
}

// Piece is a (type, color) pair. Pieces carry no identity beyond that.
type Piece struct {
	Type  PieceType
	Color Color
}

// Code returns the asset code, e.g. "wp" or "bk".
func (p Piece) Code() string {
	return p.Color.Code() + p.Type.Letter()
}

// FEN returns the FEN letter: uppercase for white, lowercase for black.
func (p Piece) FEN() byte {
	l := p.Type.Letter()
	if l == "" {
		return '?'
	}
	if p.Color == White {
		return l[0] - 'a' + 'A'
	}
	return l[0]
}

var glyphs = map[Piece]string{
	{Pawn, White}: "♙", {Pawn, Black}: "♟",
	{Knight, White}: "♘", {Knight, Black}: "♞",
	{Bishop, White}: "♗", {Bishop, Black}: "♝",
	{Rook, White}: "♖", {Rook, Black}: "♜",
	{Queen, White}: "♕", {Queen, Black}: "♛",
	{King, White}: "♔", {King, Black}: "♚",
}

// Glyph returns the Unicode chess symbol used when piece images are missing.
func (p Piece) Glyph() string {
	return glyphs[p]
}

func pieceFromFEN(c byte) (Piece, bool) {
	color := White
	lower := c
	if c >= 'a' && c <= 'z' {
		color = Black
	} else if c >= 'A' && c <= 'Z' {
		lower = c - 'A' + 'a'
	} else {
		return Piece{}, false
	}
	var t PieceType
	switch lower {
	case 'p':
		t = Pawn
	case 'n':
		t = Knight
	case 'b':
		t = Bishop
	case 'r':
		t = Rook
	case 'q':
		t = Queen
	case 'k':
		t = King
	default:
		return Piece{}, false
	}
	return Piece{Type: t, Color: color}, true
}
