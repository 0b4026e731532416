package domain

// Stream event types sent by the backend on stream/check/
const (
	EventTypeStores = "stores"
	EventTypeResult = "result"
)

// StreamEvent is one decoded server-sent event of a check session
type StreamEvent struct {
	Type   string            `json:"type"`
	Stores []StoreDescriptor `json:"stores,omitempty"`
	Store  *StoreDescriptor  `json:"store,omitempty"`
	URL    string            `json:"url,omitempty"`
	Prices []PriceOffer      `json:"prices,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Result converts a backend "result" event into a terminal StoreResult
func (e StreamEvent) Result() (StoreResult, bool) {
	if e.Type != EventTypeResult || e.Store == nil || e.Store.Name == "" {
		return StoreResult{}, false
	}
	if e.Error != "" {
		return FailedResult(e.Store.Name, e.URL, e.Error), true
	}
	return SuccessResult(e.Store.Name, e.URL, e.Prices), true
}

// SessionState is the connection state of a check session
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StateStreaming  SessionState = "streaming"
	StateClosed     SessionState = "closed"
)
