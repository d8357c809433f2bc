package llm

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed means the body is not a JSON object
	ErrMalformed = errors.New("malformed response body")
	// ErrNoContent means no extraction strategy found any text
	ErrNoContent = errors.New("no content in response")
)

// Extractor pulls reply text out of a response body. The boolean reports
// whether the strategy recognized the shape, even when the text is empty.
type Extractor func(body []byte) (string, bool)

var (
	// AnalysisChain is tried on prompt analysis responses
	AnalysisChain = []Extractor{MessageContent, FlatResponse}
	// ReplyChain is tried on generation responses
	ReplyChain = []Extractor{MessageContent, FlatResponse, FirstTopLevel}
)

// MessageContent reads the chat shape {"message": {"content": ...}}
func MessageContent(body []byte) (string, bool) {
	r := gjson.GetBytes(body, "message.content")
	if !r.Exists() {
		return "", false
	}
	return r.String(), true
}

// FlatResponse reads the generate shape {"response": ...}
func FlatResponse(body []byte) (string, bool) {
	r := gjson.GetBytes(body, "response")
	if !r.Exists() {
		return "", false
	}
	return r.String(), true
}

// FirstTopLevel walks the top-level fields in order and takes the first
// object carrying a content field or the first non-blank string.
func FirstTopLevel(body []byte) (string, bool) {
	var (
		text  string
		found bool
	)
	gjson.ParseBytes(body).ForEach(func(_, value gjson.Result) bool {
		switch {
		case value.IsObject():
			if c := value.Get("content"); c.Exists() {
				text, found = c.String(), true
			}
		case value.Type == gjson.String && strings.TrimSpace(value.Str) != "":
			text, found = value.Str, true
		}
		return !found
	})
	return text, found
}

// Extract runs the strategies in order and returns the text of the first one
// that recognizes the body.
func Extract(body []byte, chain []Extractor) (string, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return "", ErrMalformed
	}
	for _, extract := range chain {
		if text, ok := extract(body); ok {
			return text, nil
		}
	}
	return "", ErrNoContent
}
