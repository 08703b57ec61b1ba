// Package board decodes FEN piece placement into a square→piece mapping used
// for rendering and click lookups.
package board

import (
	"errors"
	"fmt"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrMalformedPlacement is wrapped by every DecodeError.
var ErrMalformedPlacement = errors.New("malformed piece placement")

// DecodeError reports the first rank segment that could not be decoded.
// Rank is the zero-based segment index (0 = rank 8); -1 means the segment
// count itself was wrong.
type DecodeError struct {
	Rank    int
	Segment string
	Reason  string
}

func (e *DecodeError) Error() string {
	if e.Rank < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedPlacement, e.Reason)
	}
	return fmt.Sprintf("%s: rank %d %q: %s", ErrMalformedPlacement, 8-e.Rank, e.Segment, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrMalformedPlacement }

// Board maps occupied squares to their pieces. Empty squares are absent.
type Board map[Square]Piece

// Piece returns the piece on sq and whether the square is occupied.
func (b Board) Piece(sq Square) (Piece, bool) {
	p, ok := b[sq]
	return p, ok
}

// Decode parses the placement field of a FEN string. Only the text before
// the first space is read, so a full FEN is accepted. Input is trusted to
// come from the rules engine; anything malformed is reported, never patched.
func Decode(fen string) (Board, error) {
	placement := strings.TrimSpace(fen)
	if i := strings.IndexByte(placement, ' '); i >= 0 {
		placement = placement[:i]
	}
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return nil, &DecodeError{Rank: -1, Segment: placement, Reason: fmt.Sprintf("want 8 ranks, got %d", len(ranks))}
	}

	out := make(Board, 32)
	for i, seg := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(seg); j++ {
			c := seg[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				if file > 8 {
					return nil, &DecodeError{Rank: i, Segment: seg, Reason: "more than 8 files"}
				}
				continue
			}
			p, ok := pieceFromFEN(c)
			if !ok {
				return nil, &DecodeError{Rank: i, Segment: seg, Reason: fmt.Sprintf("unexpected character %q", c)}
			}
			if file >= 8 {
				return nil, &DecodeError{Rank: i, Segment: seg, Reason: "more than 8 files"}
			}
			out[NewSquare(file, rank)] = p
			file++
		}
		if file != 8 {
			return nil, &DecodeError{Rank: i, Segment: seg, Reason: fmt.Sprintf("files sum to %d", file)}
		}
	}
	return out, nil
}

// Placement encodes b back into a FEN placement field.
func Placement(b Board) string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p, ok := b[NewSquare(file, rank)]
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FEN())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}
