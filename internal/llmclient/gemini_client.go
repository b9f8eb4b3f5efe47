// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// contentGenerator is the slice of the genai Models service the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options carries what the client advertises to the model besides the
// connection settings.
type Options struct {
	// Tools are the declarations offered in functions mode.
	Tools *toolschema.Set
	// SystemInstruction is sent with every request when non-empty.
	SystemInstruction string
}

// GeminiClient implements schemas.ModelClient on top of the Gemini API.
type GeminiClient struct {
	models    contentGenerator
	model     string
	genConfig *genai.GenerateContentConfig
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger

	// attachScreenshots nests observations in function responses.
	attachScreenshots bool

	backoffFactory func() backoff.BackOff
}

var _ schemas.ModelClient = (*GeminiClient)(nil)

// NewGeminiClient connects to the Gemini Developer API with an API key, or to
// Vertex AI when use_vertex_ai is set.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, opts Options, logger *zap.Logger) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	if cfg.UseVertexAI {
		if cfg.Project == "" {
			return nil, fmt.Errorf("vertex AI requires llm.project (or GOOGLE_CLOUD_PROJECT)")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or llm.api_key)")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, opts, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMConfig, opts Options, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxElapsed := cfg.MaxRetryElapsed
	c := &GeminiClient{
		models:    models,
		model:     cfg.Model,
		genConfig: buildGenerateConfig(cfg, opts),
		timeout:   cfg.APITimeout,

		attachScreenshots: cfg.ToolMode == config.ToolModeComputerUse,
		logger:    logger.Named("llm_client.gemini"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Send submits the whole conversation and returns the first candidate as a
// model turn. Rate limits and transient server errors are retried with
// exponential backoff.
func (c *GeminiClient) Send(ctx context.Context, conversation []schemas.Turn) (schemas.Turn, error) {
	contents, err := toContents(conversation, c.attachScreenshots)
	if err != nil {
		return schemas.Turn{}, fmt.Errorf("failed to encode conversation: %w", err)
	}

	var turn schemas.Turn
	attempt := 0
	operation := func() error {
		attempt++
		// Every attempt, retries included, counts against the request rate.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		startTime := time.Now()
		resp, err := c.models.GenerateContent(callCtx, c.model, contents, c.genConfig)
		duration := time.Since(startTime)

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isRetryable(err) {
				c.logger.Warn("Transient error from Gemini API, retrying...",
					zap.Int("attempt", attempt), zap.Error(err))
				return err
			}
			return backoff.Permanent(fmt.Errorf("gemini API error: %w", err))
		}

		candidate, err := firstCandidate(resp)
		if err != nil {
			return err
		}

		fields := []zap.Field{
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.String("finish_reason", string(candidate.FinishReason)),
		}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", u.PromptTokenCount),
				zap.Int32("completion_tokens", u.CandidatesTokenCount),
				zap.Int32("thought_tokens", u.ThoughtsTokenCount),
				zap.Int32("total_tokens", u.TotalTokenCount),
			)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		turn = fromContent(candidate.Content)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return schemas.Turn{}, err
	}
	return turn, nil
}

func (c *GeminiClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// blockedFinishReasons end a candidate without content and will not change
// on retry.
var blockedFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
	genai.FinishReasonRecitation:        true,
}

// firstCandidate picks the usable candidate or classifies why there is none.
func firstCandidate(resp *genai.GenerateContentResponse) (*genai.Candidate, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, backoff.Permanent(fmt.Errorf("gemini API blocked the prompt (Reason: %s)", resp.PromptFeedback.BlockReason))
		}
		return nil, backoff.Permanent(errors.New("gemini API returned no candidates"))
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if blockedFinishReasons[candidate.FinishReason] {
			return nil, backoff.Permanent(fmt.Errorf("gemini API blocked the response (Reason: %s)", candidate.FinishReason))
		}
		return nil, fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}
	return candidate, nil
}

// isRetryable reports whether an API failure is worth another attempt.
// Errors without a status code are treated as network failures.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	default:
		return true
	}
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// -- Request Configuration --

func buildGenerateConfig(cfg config.LLMConfig, opts Options) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(cfg.Temperature),
		SafetySettings: safetySettings(cfg.SafetyFilters),
		Tools:          buildTools(cfg, opts.Tools),
	}
	if opts.SystemInstruction != "" {
		gc.SystemInstruction = genai.NewContentFromText(opts.SystemInstruction, genai.RoleUser)
	}
	if cfg.IncludeThoughts {
		gc.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return gc
}

// buildTools advertises either our own declarations or the provider's
// predefined browser tool. Excluded names are withheld in both modes.
func buildTools(cfg config.LLMConfig, tools *toolschema.Set) []*genai.Tool {
	if cfg.ToolMode == config.ToolModeComputerUse {
		return []*genai.Tool{{
			ComputerUse: &genai.ComputerUse{
				Environment:                 genai.EnvironmentBrowser,
				ExcludedPredefinedFunctions: cfg.ExcludedFunctions,
			},
		}}
	}
	if tools == nil {
		return nil
	}
	decls := tools.Without(cfg.ExcludedFunctions...)
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: FunctionDeclarations(decls)}}
}

// safetySettings converts the configured filters. Keys arrive lower-cased
// from viper, so both sides are normalized. Output is sorted by category.
func safetySettings(filters map[string]string) []*genai.SafetySetting {
	if len(filters) == 0 {
		return nil
	}
	categories := make([]string, 0, len(filters))
	for k := range filters {
		categories = append(categories, k)
	}
	sort.Strings(categories)

	out := make([]*genai.SafetySetting, 0, len(filters))
	for _, k := range categories {
		out = append(out, &genai.SafetySetting{
			Category:  genai.HarmCategory(strings.ToUpper(k)),
			Threshold: genai.HarmBlockThreshold(strings.ToUpper(filters[k])),
		})
	}
	return out
}
