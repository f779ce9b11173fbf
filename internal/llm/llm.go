package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/pkg/retry"
)

// ErrNotConfigured is returned when no OpenAI API key is set.
var ErrNotConfigured = errors.New("llm: OPENAI_API_KEY is not configured")

const defaultModel = "gpt-4o-mini"

// maxDiffChars bounds how much raw patch text goes into the prompt so large
// submissions stay within the model's context window.
const maxDiffChars = 50000

// Analysis is one generated review of a candidate diff.
type Analysis struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Analyzer produces a written review of a candidate diff.
type Analyzer interface {
	AnalyzeDiff(ctx context.Context, diff *github.Diff) (Analysis, error)
}

// OpenAI implements Analyzer on the OpenAI chat completions API. Rate limits
// and transient server errors are retried with backoff.
type OpenAI struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = defaultModel
	}
	policy := retry.Default
	policy.InitialDelay = time.Second
	policy.MaxDelay = 60 * time.Second
	policy.Classify = classifyOpenAIError
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		policy: policy,
	}, nil
}

func (o *OpenAI) AnalyzeDiff(ctx context.Context, diff *github.Diff) (Analysis, error) {
	prompt := buildPrompt(diff)

	var resp openai.ChatCompletionResponse
	err := o.policy.Do(ctx, func() error {
		var callErr error
		resp, callErr = o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert code reviewer analyzing a candidate's submission for a coding assessment.",
				},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		return callErr
	})
	if err != nil {
		log.Error().Err(err).Str("model", o.model).Msg("openai completion failed")
		return Analysis{}, fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, errors.New("llm: completion returned no choices")
	}
	return Analysis{Text: resp.Choices[0].Message.Content, Model: o.model}, nil
}

func classifyOpenAIError(err error) (time.Duration, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return 0, true
		case apiErr.HTTPStatusCode >= 500:
			return 0, true
		}
		return 0, false
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return 0, reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Transport-level failure; worth another try.
	return 0, true
}
