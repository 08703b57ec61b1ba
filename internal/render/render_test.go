package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/park285/cheese-board/internal/assets"
	"github.com/park285/cheese-board/internal/board"
)

type noImages struct{}

func (noImages) Image(board.Piece, int) (image.Image, error) {
	return nil, errors.New("no images")
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return img
}

func startBoard(t *testing.T) board.Board {
	t.Helper()
	b, err := board.Decode(board.StartFEN)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return b
}

func TestRenderDimensions(t *testing.T) {
	r, err := New(noImages{}, 32, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := r.RenderPNG(context.Background(), startBoard(t), Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decodePNG(t, data)
	if b := img.Bounds(); b.Dx() != r.Size() || b.Dy() != r.Size() || r.Size() != 32*8+32 {
		t.Fatalf("bounds %v size %d", b, r.Size())
	}
}

func TestRenderWithLoadedAssets(t *testing.T) {
	l := assets.NewLoader(nil, nil)
	l.Start(context.Background())
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("assets: %v", err)
	}
	r, _ := New(l, 48, nil)
	sel := board.MustParseSquare("e2")
	data, err := r.RenderPNG(context.Background(), startBoard(t), Options{
		Selected:     &sel,
		Destinations: []Destination{{Square: board.MustParseSquare("e3")}, {Square: board.MustParseSquare("e4")}},
		LastMove:     &[2]board.Square{board.MustParseSquare("d7"), board.MustParseSquare("d5")},
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	decodePNG(t, data)
}

func TestSquareMappingAndFlip(t *testing.T) {
	r, _ := New(noImages{}, 40, nil)
	origin := image.Pt(r.margin(), r.margin())
	a8 := r.squareRect(board.MustParseSquare("a8"), origin, false)
	if a8.Min != origin {
		t.Fatalf("a8 should be top-left, got %v", a8)
	}
	h1 := r.squareRect(board.MustParseSquare("h1"), origin, true)
	if h1.Min != origin {
		t.Fatalf("flipped h1 should be top-left, got %v", h1)
	}
	for _, flip := range []bool{false, true} {
		for _, sq := range board.AllSquares() {
			rect := r.squareRect(sq, origin, flip)
			got, ok := r.SquareAt(rect.Min.X+3, rect.Min.Y+3, flip)
			if !ok || got != sq {
				t.Fatalf("SquareAt(%v) flip=%v: got %v %v", sq, flip, got, ok)
			}
		}
	}
	if _, ok := r.SquareAt(1, 1, false); ok {
		t.Fatalf("margin pixel mapped to a square")
	}
}

func TestSelectedSquareIsTinted(t *testing.T) {
	r, _ := New(noImages{}, 32, nil)
	empty := board.Board{}
	sq := board.MustParseSquare("d4")
	data, err := r.RenderPNG(context.Background(), empty, Options{Selected: &sq})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decodePNG(t, data)
	rect := r.squareRect(sq, image.Pt(r.margin(), r.margin()), false)
	got := color.RGBAModel.Convert(img.At(rect.Min.X+2, rect.Min.Y+2)).(color.RGBA)
	if got == darkSquare || got == lightSquare {
		t.Fatalf("selected square not highlighted: %v", got)
	}
}

func TestRenderRejectsInputs(t *testing.T) {
	if _, err := New(nil, 8, nil); err == nil {
		t.Fatalf("expected size error")
	}
	r, _ := New(nil, 32, nil)
	if _, err := r.RenderPNG(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected nil board error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, board.Board{}, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
