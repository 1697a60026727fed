package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/makeasinger/songprompt/internal/parser"
)

// TextBackend is one text-generation provider. Implementations keep no
// per-call state and are safe for concurrent use.
type TextBackend interface {
	// Name identifies the provider, e.g. "groq".
	Name() string
	// IsConfigured reports whether the credentials the provider needs are present.
	IsConfigured() bool
	// Complete sends prompt with the system instruction. When structured is set
	// the reply must parse into a title/lyrics record, which is returned in Parsed.
	Complete(ctx context.Context, prompt, system string, structured bool) (*Completion, error)
}

// Completion is a provider reply.
type Completion struct {
	Text   string
	Parsed *parser.Lyrics
}

// structuredInstruction is appended to the prompt whenever a structured reply is expected.
const structuredInstruction = `

OUTPUT FORMAT: Respond with ONLY a raw JSON object of the form {"title": "...", "lyrics": "..."}.
No markdown, no code fences, no explanations, no text before or after the JSON.`

func withStructuredInstruction(prompt string, structured bool) string {
	if !structured {
		return prompt
	}
	return prompt + structuredInstruction
}

// finish turns raw provider text into a Completion, running the response
// parser when a structured reply was requested.
func finish(backend, text string, structured bool) (*Completion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &BackendError{Backend: backend, Kind: KindMalformedResponse, Message: "empty completion"}
	}

	completion := &Completion{Text: text}
	if !structured {
		return completion, nil
	}

	rec, err := parser.Parse(text)
	if err != nil {
		return nil, &BackendError{Backend: backend, Kind: KindParse, Message: "reply was not valid title/lyrics JSON", Err: err}
	}
	completion.Parsed = rec
	return completion, nil
}

// transportError classifies a failure that happened before any HTTP status was received.
func transportError(backend string, err error) *BackendError {
	msg := "request failed, please retry"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out, please retry"
	}
	if errors.Is(err, context.Canceled) {
		msg = "request cancelled"
	}
	return &BackendError{Backend: backend, Kind: KindTransport, Message: msg, Err: err}
}

// credentialSettings names the setting each backend needs.
var credentialSettings = map[string]string{
	BackendGroq:        "GROQ_API_KEY",
	BackendGemini:      "GEMINI_API_KEY",
	BackendHuggingFace: "HF_API_TOKEN",
}

// NotConfigured is the missing_credential error for the named backend.
func NotConfigured(backend string) *BackendError {
	setting, ok := credentialSettings[backend]
	if !ok {
		setting = "the API credential"
	}
	return &BackendError{
		Backend: backend,
		Kind:    KindMissingCredential,
		Message: fmt.Sprintf("%s is not set", setting),
	}
}
