package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSquare is returned when a coordinate is not a1..h8.
var ErrInvalidSquare = errors.New("invalid square")

// Square is one of the 64 board coordinates, indexed rank-major from a1 (0)
// to h8 (63).
type Square uint8

// NewSquare builds a square from zero-based file (a=0) and rank (1=0).
func NewSquare(file, rank int) Square {
	return Square(rank*8 + file)
}

// ParseSquare parses algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return NewSquare(int(f-'a'), int(r-'1')), nil
}

// MustParseSquare is ParseSquare for constants in tests and tables.
func MustParseSquare(s string) Square {
	sq, err := ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return sq
}

// File returns the zero-based file index (a=0).
func (s Square) File() int { return int(s) % 8 }

// Rank returns the zero-based rank index (rank 1 = 0).
func (s Square) Rank() int { return int(s) / 8 }

// Valid reports whether s is on the board.
func (s Square) Valid() bool { return s < 64 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// Light reports whether the square is a light square (h1 and a8 are light).
func (s Square) Light() bool {
	return (s.File()+s.Rank())%2 == 1
}

// AllSquares returns the 64 squares in display order: a8..h8, a7..h7, ..., a1..h1.
func AllSquares() []Square {
	out := make([]Square, 0, 64)
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			out = append(out, NewSquare(file, rank))
		}
	}
	return out
}
