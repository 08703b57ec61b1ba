// Package boarddto holds the JSON shapes exchanged with the board UI.
package boarddto

type Square struct {
	Coord         string `json:"coord"`
	Piece         string `json:"piece,omitempty"`
	Glyph         string `json:"glyph,omitempty"`
	Image         string `json:"image,omitempty"`
	Light         bool   `json:"light"`
	Selected      bool   `json:"selected,omitempty"`
	Destination   bool   `json:"destination,omitempty"`
	CaptureTarget bool   `json:"captureTarget,omitempty"`
	LastMove      bool   `json:"lastMove,omitempty"`
	Check         bool   `json:"check,omitempty"`
}

type Ply struct {
	SAN   string `json:"san"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// MovePair is one numbered history row. White is nil when a loaded
// position starts with black to move.
type MovePair struct {
	Number int  `json:"number"`
	White  *Ply `json:"white,omitempty"`
	Black  *Ply `json:"black,omitempty"`
}

// CapturedPiece is one entry of a captured-pieces tray.
type CapturedPiece struct {
	Piece string `json:"piece"`
	Glyph string `json:"glyph"`
	Image string `json:"image"`
}

// Captured lists pieces by the side that took them.
type Captured struct {
	ByWhite []CapturedPiece `json:"byWhite"`
	ByBlack []CapturedPiece `json:"byBlack"`
}

type PromotionChoice struct {
	Piece string `json:"piece"`
	Code  string `json:"code"`
	Glyph string `json:"glyph"`
	Image string `json:"image"`
}

type Promotion struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Choices []PromotionChoice `json:"choices"`
}

type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Opening struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// State is the full board UI state for one session. Clients re-render from
// it wholesale.
type State struct {
	SessionID   string     `json:"sessionId"`
	Phase       string     `json:"phase"`
	Active      bool       `json:"active"`
	GameOver    bool       `json:"gameOver"`
	Turn        string     `json:"turn,omitempty"`
	Status      string     `json:"status"`
	FEN         string     `json:"fen,omitempty"`
	Squares     []Square   `json:"squares"`
	History     []MovePair `json:"history"`
	Captured    Captured   `json:"captured"`
	LastMove    *Move      `json:"lastMove,omitempty"`
	CanUndo     bool       `json:"canUndo"`
	Promotion   *Promotion `json:"promotion,omitempty"`
	Opening     *Opening   `json:"opening,omitempty"`
	AssetsReady bool       `json:"assetsReady"`
}
