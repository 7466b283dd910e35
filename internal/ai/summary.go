package ai

// FallbackSummary is stored when no summary could be produced
const FallbackSummary = "Summary unavailable."

// Summary is either the model's text or the reason it is missing. The zero
// value is unavailable.
type Summary struct {
	text   string
	reason string
	ok     bool
}

func Available(text string) Summary {
	return Summary{text: text, ok: true}
}

func Unavailable(reason string) Summary {
	return Summary{reason: reason}
}

// Text returns the summary text and whether it is available
func (s Summary) Text() (string, bool) {
	return s.text, s.ok
}

// Reason explains an unavailable summary
func (s Summary) Reason() string {
	if s.ok {
		return ""
	}
	if s.reason == "" {
		return "unavailable"
	}
	return s.reason
}

// OrFallback returns the text, or FallbackSummary when unavailable
func (s Summary) OrFallback() string {
	if s.ok {
		return s.text
	}
	return FallbackSummary
}
