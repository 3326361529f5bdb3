package gemini

import (
	"io"
	"log/slog"

	"github.com/phrazzld/atlas-api/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		GeminiAPIKey: "test-api-key",
		ModelName:    "gemini-2.0-flash",
	}
}
