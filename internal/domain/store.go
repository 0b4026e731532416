package domain

// StoreDescriptor describes one storefront that applies to a check session.
// The backend sends the full set once per session and it never changes afterwards.
type StoreDescriptor struct {
	Name       string `json:"name"`
	ModuleID   string `json:"module,omitempty"`
	IsCore     bool   `json:"is_core,omitempty"`
	IsFrontend bool   `json:"is_frontend,omitempty"`
}

// MatchCandidate is a single title/URL hit from a store's search endpoint
type MatchCandidate struct {
	Title string
	URL   string
}

// MatchResult is the candidate picked by the fuzzy matcher
type MatchResult struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// PriceOffer is one priced variant (e.g. color x warranty) of a product at one store.
// Price is in backend minor units; each adapter owns its own scale factor.
type PriceOffer struct {
	Variant string `json:"color"`
	Note    string `json:"note"`
	Price   int64  `json:"price"`
}

// ResultStatus is the derived lifecycle state of a StoreResult
type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultResolved ResultStatus = "resolved"
	ResultFailed   ResultStatus = "failed"
)

// StoreResult is the live price-resolution outcome for one store.
// At most one of Offers / Error is set; when neither is set and Done is false
// the store is still pending.
type StoreResult struct {
	StoreName string       `json:"store"`
	URL       *string      `json:"url"`
	Offers    []PriceOffer `json:"prices"`
	Error     *string      `json:"error"`
	Done      bool         `json:"done"`
	Override  bool         `json:"override,omitempty"`
}

// Status reports whether the result is pending, resolved or failed
func (r StoreResult) Status() ResultStatus {
	switch {
	case r.Error != nil:
		return ResultFailed
	case r.Offers != nil || r.Done:
		return ResultResolved
	default:
		return ResultPending
	}
}

// ResolvedURL returns the URL or "" when none was found
func (r StoreResult) ResolvedURL() string {
	if r.URL == nil {
		return ""
	}
	return *r.URL
}

// PendingResult creates the placeholder slot for a freshly declared store
func PendingResult(storeName string) StoreResult {
	return StoreResult{StoreName: storeName}
}

// SuccessResult builds a terminal result. An empty offer list is stored as nil
// so that "found but empty" never appears as a distinct state.
func SuccessResult(storeName, url string, offers []PriceOffer) StoreResult {
	if len(offers) == 0 {
		offers = nil
	}
	r := StoreResult{StoreName: storeName, Offers: offers, Done: true}
	if url != "" {
		r.URL = &url
	}
	return r
}

// FailedResult builds a terminal error result
func FailedResult(storeName, url, message string) StoreResult {
	r := StoreResult{StoreName: storeName, Error: &message, Done: true}
	if url != "" {
		r.URL = &url
	}
	return r
}

// StoreLink is one store/url pair ready to be submitted with a new product
type StoreLink struct {
	Store string `json:"store"`
	URL   string `json:"url"`
}
