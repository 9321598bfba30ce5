package marketplace

// OutcomeKind classifies one probe of the coverage API.
type OutcomeKind string

const (
	// Covered: HTTP 200 and the response body holds at least one retailer.
	Covered OutcomeKind = "covered"
	// NotCovered: HTTP 404, or HTTP 200 with an empty retailer list. A bare
	// 200 is not coverage; the payload decides.
	NotCovered OutcomeKind = "not_covered"
	// RateLimited: HTTP 429. Retryable, never a terminal verdict.
	RateLimited OutcomeKind = "rate_limited"
	// TransientFailure: timeout, connection failure, or HTTP 5xx. Retryable.
	TransientFailure OutcomeKind = "transient_failure"
	// PermanentFailure: any other non-2xx/404 status. Not retried; the zip is
	// recorded as invalid.
	PermanentFailure OutcomeKind = "permanent_failure"
)

// Retailer is one retailer record from the coverage API response.
type Retailer struct {
	RetailerKey string `json:"retailer_key"`
	Name        string `json:"name"`
}

// Outcome is the structured result of probing one zip code.
type Outcome struct {
	Kind       OutcomeKind
	HTTPStatus int
	Retailers  []Retailer
	Cause      string
}

// RetailerCount returns the number of retailers serving the probed zip.
func (o Outcome) RetailerCount() int {
	return len(o.Retailers)
}

// Retryable reports whether the probe should go back through the backoff
// controller.
func (o Outcome) Retryable() bool {
	return o.Kind == RateLimited || o.Kind == TransientFailure
}

// Definitive reports whether the outcome yields a cache verdict for the zip.
func (o Outcome) Definitive() bool {
	return o.Kind == Covered || o.Kind == NotCovered || o.Kind == PermanentFailure
}
