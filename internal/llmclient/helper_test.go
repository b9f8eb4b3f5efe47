package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// mockGenerator is a mock implementation of contentGenerator for testing.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, cfg)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidLLMConfig returns a valid LLMConfig for testing purposes.
func getValidLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:          config.ProviderGemini,
		APIKey:            "test-api-key",
		Model:             "test-model",
		APITimeout:        5 * time.Second,
		Temperature:       0.7,
		ToolMode:          config.ToolModeFunctions,
		ExcludedFunctions: []string{actions.OpenWebBrowser},
		MaxRetryElapsed:   time.Second,
	}
}

func testOptions() Options {
	return Options{
		Tools:             actions.NewStandardRegistry(actions.DefaultStandardOptions()).Set(),
		SystemInstruction: "Operate the browser.",
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}
