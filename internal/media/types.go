// Package media defines the shared extraction types for castgrab.
package media

// FailureKind classifies why an extraction did not produce an audio URL.
type FailureKind int

const (
	KindNone FailureKind = iota
	InvalidInput
	Network
	RenderTimeout
	MissingDataIsland
	EmptyDataIsland
	MalformedJSON
	MissingField
	Resource
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case InvalidInput:
		return "invalid-input"
	case Network:
		return "network"
	case RenderTimeout:
		return "render-timeout"
	case MissingDataIsland:
		return "missing-data-island"
	case EmptyDataIsland:
		return "empty-data-island"
	case MalformedJSON:
		return "malformed-json"
	case MissingField:
		return "missing-field"
	case Resource:
		return "resource"
	default:
		return "unknown"
	}
}

// UserMessage returns the sanitized text shown to portal users for this kind.
// The detailed reason stays in the server log.
func (k FailureKind) UserMessage() string {
	switch k {
	case InvalidInput:
		return "Please provide a valid episode URL."
	case Network:
		return "Could not reach the episode page."
	case RenderTimeout:
		return "The episode page took too long to load."
	case MissingDataIsland, EmptyDataIsland:
		return "Could not find episode data on the page."
	case MalformedJSON:
		return "The episode page returned unreadable data."
	case MissingField:
		return "No audio file URL found in the episode data."
	case Resource:
		return "The extraction service is busy or unavailable. Try again later."
	default:
		return "Error extracting MP3 URL."
	}
}

// Strategy names which extractor produced a Result.
type Strategy string

const (
	StrategyStatic   Strategy = "static"
	StrategyRendered Strategy = "rendered"
)

// Request is a single extraction request.
type Request struct {
	URL string `json:"url"`
}

// Result is the outcome of one extraction: either a non-empty audio URL or a
// failure reason. The zero value is a failure with KindNone and no reason.
type Result struct {
	audioURL string
	kind     FailureKind
	reason   string
	strategy Strategy
}

// Success builds a successful Result. Callers must have checked that
// audioURL is non-blank.
func Success(audioURL string) Result {
	return Result{audioURL: audioURL}
}

// Failure builds a failed Result.
func Failure(kind FailureKind, reason string) Result {
	return Result{kind: kind, reason: reason}
}

// From returns a copy of r attributed to strategy s.
func (r Result) From(s Strategy) Result {
	r.strategy = s
	return r
}

// OK reports whether the result carries an audio URL.
func (r Result) OK() bool { return r.audioURL != "" }

// AudioURL returns the extracted URL, or "" for failures.
func (r Result) AudioURL() string { return r.audioURL }

// Kind returns the failure kind, or KindNone for successes.
func (r Result) Kind() FailureKind { return r.kind }

// Reason returns the detailed failure reason, or "" for successes.
func (r Result) Reason() string { return r.reason }

// Strategy returns the extractor that produced the result.
func (r Result) Strategy() Strategy { return r.strategy }
