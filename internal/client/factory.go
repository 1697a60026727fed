package client

import (
	"context"
	"fmt"

	"github.com/makeasinger/songprompt/internal/config"
)

// Backend names accepted by AI_BACKEND.
const (
	BackendGroq        = "groq"
	BackendGemini      = "gemini"
	BackendOllama      = "ollama"
	BackendHuggingFace = "huggingface"
)

// NewBackend builds the backend selected by cfg.AI.Backend. An unconfigured
// backend is still returned so that each call reports missing_credential.
func NewBackend(ctx context.Context, cfg *config.Config) (TextBackend, error) {
	switch cfg.AI.Backend {
	case BackendGroq, "":
		return NewGroqClient(&cfg.Groq), nil
	case BackendGemini:
		return NewGeminiClient(ctx, &cfg.Gemini)
	case BackendOllama:
		return NewOllamaClient(&cfg.Ollama), nil
	case BackendHuggingFace, "hf":
		return NewHuggingFaceClient(&cfg.HuggingFace), nil
	default:
		return nil, fmt.Errorf("unknown AI_BACKEND %q (want groq, gemini, ollama or huggingface)", cfg.AI.Backend)
	}
}
