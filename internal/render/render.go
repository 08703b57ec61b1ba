// Package render draws a decoded board to PNG.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-board/internal/board"
)

// PieceImages supplies rasterized piece images; assets.Loader implements it.
type PieceImages interface {
	Image(p board.Piece, size int) (image.Image, error)
}

// Destination marks a legal target square. Capture targets get a ring
// instead of a dot.
type Destination struct {
	Square  board.Square
	Capture bool
}

type Options struct {
	Flip         bool
	Selected     *board.Square
	Destinations []Destination
	LastMove     *[2]board.Square
	Check        *board.Square
}

type Renderer struct {
	images     PieceImages
	squareSize int
	logger     *zap.Logger
}

func New(images PieceImages, squareSize int, logger *zap.Logger) (*Renderer, error) {
	if squareSize < 16 {
		return nil, fmt.Errorf("square size %d too small", squareSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{images: images, squareSize: squareSize, logger: logger}, nil
}

// Size returns the edge length in pixels of every rendered image.
func (r *Renderer) Size() int {
	return r.squareSize*8 + 2*r.margin()
}

func (r *Renderer) margin() int { return r.squareSize / 2 }

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	frameColor      = color.RGBA{48, 46, 43, 255}
	lastMoveFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	selectedFill    = color.NRGBA{R: 120, G: 190, B: 90, A: 150}
	checkFill       = color.NRGBA{R: 230, G: 60, B: 50, A: 150}
	destinationDot  = color.NRGBA{R: 20, G: 85, B: 30, A: 120}
	coordinateColor = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	glyphWhite      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	glyphBlack      = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
)

func (r *Renderer) RenderPNG(ctx context.Context, b board.Board, opts Options) ([]byte, error) {
	if b == nil {
		return nil, errors.New("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := r.Size()
	origin := image.Point{X: r.margin(), Y: r.margin()}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	for _, sq := range board.AllSquares() {
		clr := darkSquare
		if sq.Light() {
			clr = lightSquare
		}
		imagedraw.Draw(img, r.squareRect(sq, origin, opts.Flip), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
	if opts.LastMove != nil {
		r.overlay(img, opts.LastMove[0], origin, opts.Flip, lastMoveFill)
		r.overlay(img, opts.LastMove[1], origin, opts.Flip, lastMoveFill)
	}
	if opts.Selected != nil {
		r.overlay(img, *opts.Selected, origin, opts.Flip, selectedFill)
	}
	if opts.Check != nil {
		r.overlay(img, *opts.Check, origin, opts.Flip, checkFill)
	}

	if err := r.drawPieces(ctx, img, b, origin, opts.Flip); err != nil {
		return nil, err
	}
	for _, d := range opts.Destinations {
		r.drawDestination(img, d, origin, opts.Flip)
	}
	r.drawCoordinates(img, origin, opts.Flip)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawPieces(ctx context.Context, dst *image.RGBA, b board.Board, origin image.Point, flip bool) error {
	for _, sq := range board.AllSquares() {
		p, ok := b.Piece(sq)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rect := r.squareRect(sq, origin, flip)
		if r.images != nil {
			pieceImg, err := r.images.Image(p, r.squareSize)
			if err == nil {
				imagedraw.Draw(dst, rect, pieceImg, image.Point{}, imagedraw.Over)
				continue
			}
			r.logger.Debug("render_piece_fallback", zap.String("piece", p.Code()), zap.Error(err))
		}
		drawGlyph(dst, rect, p)
	}
	return nil
}

// drawGlyph is the text fallback for a piece without an image: a disc in
// the piece color carrying its FEN letter.
func drawGlyph(dst *image.RGBA, rect image.Rectangle, p board.Piece) {
	fill, ink := glyphWhite, glyphBlack
	if p.Color == board.Black {
		fill, ink = glyphBlack, glyphWhite
	}
	center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
	drawDisc(dst, center, rect.Dx()*3/10, fill)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(ink), Face: face}
	text := string(p.FEN())
	width := drawer.MeasureString(text).Round()
	ascent := face.Metrics().Ascent.Ceil()
	drawer.Dot = fixed.P(center.X-width/2, center.Y+ascent/2-1)
	drawer.DrawString(text)
}

func (r *Renderer) drawDestination(dst *image.RGBA, d Destination, origin image.Point, flip bool) {
	rect := r.squareRect(d.Square, origin, flip)
	center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
	if d.Capture {
		drawRing(dst, center, rect.Dx()/2-1, rect.Dx()/12+1, destinationDot)
		return
	}
	drawDisc(dst, center, rect.Dx()/7, destinationDot)
}

func (r *Renderer) drawCoordinates(dst *image.RGBA, origin image.Point, flip bool) {
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateColor), Face: basicfont.Face7x13}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		file, rank := i, 7-i
		if flip {
			file, rank = 7-i, i
		}
		fileText := string(rune('a' + file))
		rankText := string(rune('1' + rank))

		x := origin.X + i*r.squareSize + r.squareSize/2
		drawCentered(drawer, fileText, x, origin.Y+8*r.squareSize+(r.margin()+ascent)/2)

		y := origin.Y + i*r.squareSize + r.squareSize/2 + ascent/2
		drawCentered(drawer, rankText, r.margin()/2, y)
	}
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func (r *Renderer) overlay(img *image.RGBA, sq board.Square, origin image.Point, flip bool, clr color.Color) {
	imagedraw.Draw(img, r.squareRect(sq, origin, flip), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// squareRect maps a square to pixels. White is at the bottom unless flip.
func (r *Renderer) squareRect(sq board.Square, origin image.Point, flip bool) image.Rectangle {
	col, row := sq.File(), 7-sq.Rank()
	if flip {
		col, row = 7-sq.File(), sq.Rank()
	}
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

// SquareAt maps a pixel of a rendered image back to its square.
func (r *Renderer) SquareAt(x, y int, flip bool) (board.Square, bool) {
	x -= r.margin()
	y -= r.margin()
	if x < 0 || y < 0 || x >= 8*r.squareSize || y >= 8*r.squareSize {
		return 0, false
	}
	col, row := x/r.squareSize, y/r.squareSize
	if flip {
		return board.NewSquare(7-col, row), true
	}
	return board.NewSquare(col, 7-row), true
}
