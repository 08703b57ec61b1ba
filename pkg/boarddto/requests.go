package boarddto

type ClickRequest struct {
	Square string `json:"square"`
}

type PromotionRequest struct {
	Piece string `json:"piece"`
}

// NewGameRequest starts a game. An empty FEN means the standard start.
type NewGameRequest struct {
	FEN string `json:"fen,omitempty"`
}

// Response is returned by every mutating endpoint.
type Response struct {
	Transition string `json:"transition,omitempty"`
	State      *State `json:"state"`
}

// Frame types exchanged over the WebSocket.
const (
	FrameClick     = "click"
	FramePromotion = "promotion"
	FrameNewGame   = "new"
	FrameUndo      = "undo"
	FrameState     = "state"
	FrameError     = "error"
)

// ClientFrame is a UI event sent by the browser.
type ClientFrame struct {
	Type   string `json:"type"`
	Square string `json:"square,omitempty"`
	Piece  string `json:"piece,omitempty"`
	FEN    string `json:"fen,omitempty"`
}

// ServerFrame carries either a fresh state or an error.
type ServerFrame struct {
	Type       string `json:"type"`
	Transition string `json:"transition,omitempty"`
	State      *State `json:"state,omitempty"`
	Error      *Error `json:"error,omitempty"`
}
