package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/wenshape/internal/apperr"
)

const OpenAIClientName = "openai"

// OpenAIConfig configures a thin OpenAI-compatible chat completion client.
// BaseURL lets it target any OpenAI-compatible gateway (local models,
// proxies), the way the teacher's OpenAITTSConfig does for audio.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	RPM          float64
	Timeout      time.Duration
}

// OpenAIClient implements LLMClient against the OpenAI chat completions
// API (or any OpenAI-compatible endpoint reachable via BaseURL).
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          float64
	client       openai.Client
	limiter      *RateLimiter
}

// NewOpenAIClient builds an OpenAIClient from cfg.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0), // retry.go drives retries so classification stays in one place
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       openai.NewClient(opts...),
		limiter:      NewRateLimiter(int(cfg.RPM)),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string { return OpenAIClientName }

// Chat sends a chat completion request without tools.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doRequest(ctx, req, nil)
}

// ChatWithTools sends a chat completion request offering the model a set
// of callable tools.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	return c.doRequest(ctx, req, tools)
}

func (c *OpenAIClient) doRequest(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: adaptMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(tools) > 0 {
		params.Tools = adaptTools(tools)
	}

	result := &ChatResult{Provider: OpenAIClientName, ModelUsed: model, RequestID: req.RequestID}

	var comp *openai.ChatCompletion
	attempts := 0
	err := runWithRetry(ctx, func() error {
		attempts++
		var callErr error
		comp, callErr = c.client.Chat.Completions.New(ctx, params)
		classified := classifyOpenAIError(callErr)
		var apiErr *openai.Error
		if errors.As(callErr, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			c.limiter.Record429(retryAfter)
		}
		return classified
	})
	result.Attempts = attempts
	result.TotalTime = time.Since(start)

	if err != nil {
		var llmErr *apperr.LLMError
		if errors.As(err, &llmErr) {
			result.ErrorType = string(llmErr.Kind)
			result.ErrorMessage = llmErr.Error()
		} else {
			result.ErrorMessage = err.Error()
		}
		return result, err
	}

	result.Success = true
	result.PromptTokens = int(comp.Usage.PromptTokens)
	result.CompletionTokens = int(comp.Usage.CompletionTokens)
	result.TotalTokens = int(comp.Usage.TotalTokens)
	result.ExecutionTime = result.TotalTime

	if len(comp.Choices) > 0 {
		msg := comp.Choices[0].Message
		result.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			if fn := tc.Function; fn.Name != "" {
				var call ToolCall
				call.ID = tc.ID
				call.Type = "function"
				call.Function.Name = fn.Name
				call.Function.Arguments = fn.Arguments
				result.ToolCalls = append(result.ToolCalls, call)
			}
		}
	}

	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_schema" {
		result.ParsedJSON = json.RawMessage(result.Content)
	}

	return result, nil
}

func adaptMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func adaptTools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if len(t.Function.Parameters) > 0 {
			_ = json.Unmarshal(t.Function.Parameters, &params)
		}
		def := openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  params,
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out
}

// classifyOpenAIError turns an SDK error into an *apperr.LLMError so
// runWithRetry can decide whether it is worth retrying.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	llmErr := apperr.NewLLMError(OpenAIClientName, err)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			llmErr.Kind = apperr.LLMErrAuth
		case http.StatusForbidden:
			llmErr.Kind = apperr.LLMErrPermission
		case http.StatusTooManyRequests:
			llmErr.Kind = apperr.LLMErrRateLimit
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			llmErr.Kind = apperr.LLMErrInvalidReq
		default:
			if apiErr.StatusCode >= 500 {
				llmErr.Kind = apperr.LLMErrServer
			}
		}
	}
	return llmErr
}

// parseRetryAfter parses a Retry-After header value (seconds form only,
// the only form the OpenAI API emits).
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var _ LLMClient = (*OpenAIClient)(nil)
