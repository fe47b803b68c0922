package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kenhuangus/ai-briefing/internal/config"
	"github.com/kenhuangus/ai-briefing/internal/costs"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/perr"
)

// AnthropicClient implements Client against the real Anthropic Messages
// API in both direct and proxy auth modes (§4.3).
type AnthropicClient struct {
	sdk   anthropic.Client
	model string
	mode  config.LLMMode
	acc   *costs.Accumulator
}

// New builds an AnthropicClient from a validated provider config.
// direct mode uses option.WithAPIKey (native x-api-key header) against
// the canonical Anthropic base URL (or cfg.BaseURL if operators pin a
// region/mirror); proxy mode overrides auth with a Bearer header on the
// user-supplied base URL and blanks the SDK's own x-api-key header so
// only one auth scheme is ever sent.
func New(cfg config.LLMSection, httpClient *http.Client, acc *costs.Accumulator) (*AnthropicClient, error) {
	if httpClient == nil {
		httpClient = obs.NewHTTPClient(nil)
	}
	httpClient.Timeout = cfg.Timeout()

	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	switch cfg.Mode {
	case config.LLMModeDirect:
		opts = append(opts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
		}
	case config.LLMModeProxy:
		opts = append(opts,
			option.WithHeader("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey)),
			option.WithHeader("x-api-key", ""),
			option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		)
	default:
		return nil, perr.New(perr.KindConfigInvalid, fmt.Sprintf("unsupported llm mode %q", cfg.Mode))
	}

	if cfg.Model == "" {
		return nil, perr.New(perr.KindConfigInvalid, "llm.model is required")
	}

	return &AnthropicClient{
		sdk:   anthropic.NewClient(opts...),
		model: cfg.Model,
		mode:  cfg.Mode,
		acc:   acc,
	}, nil
}

// CallWithReasoning issues one Messages.New call with extended thinking
// enabled at the budget's token allowance, enforcing the
// reasoning-present invariant before returning.
func (c *AnthropicClient) CallWithReasoning(ctx context.Context, phase, system, user string, budget Budget) (Response, error) {
	thinkingBudget := budget.tokens()
	maxTokens := thinkingBudget + 4096 // Anthropic requires max_tokens > budget_tokens

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Thinking:    anthropic.ThinkingConfigParamOfEnabled(thinkingBudget),
		Temperature: anthropic.Float(1.0), // required when thinking is enabled
	}

	ctx, end := obs.StartSpan(ctx, "llm.call_with_reasoning")
	defer func() { end(nil) }()
	log := obs.LoggerWithTrace(ctx)

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("phase", phase).Str("model", c.model).Dur("duration", dur).Msg("llm_call_error")
		return Response{}, perr.Wrap(perr.KindLLMFailed, fmt.Sprintf("anthropic call failed (phase=%s)", phase), err)
	}

	out := Response{}
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += v.Text
		case anthropic.ThinkingBlock:
			out.ReasoningBlocks = append(out.ReasoningBlocks, v.Thinking)
		}
	}

	if thinkingBudget > 0 && len(out.ReasoningBlocks) == 0 {
		hint := ReasoningUnavailableHint(string(c.mode))
		return Response{}, perr.New(perr.KindReasoningUnavailable, fmt.Sprintf("phase=%s model=%s: %s", phase, c.model, hint))
	}

	reasoningTokens := c.estimateReasoningTokens(ctx, out.ReasoningBlocks)
	out.Usage = Usage{
		InputTokens:     resp.Usage.InputTokens,
		OutputTokens:    resp.Usage.OutputTokens,
		ReasoningTokens: reasoningTokens,
	}
	if c.acc != nil {
		c.acc.Record(phase, out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.ReasoningTokens)
	}
	obs.RecordTokenAttributes(ctx, phase, out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.ReasoningTokens)

	log.Debug().
		Str("phase", phase).
		Str("model", c.model).
		Dur("duration", dur).
		Int64("input_tokens", out.Usage.InputTokens).
		Int64("output_tokens", out.Usage.OutputTokens).
		Int64("reasoning_tokens", out.Usage.ReasoningTokens).
		Msg("llm_call_ok")

	return out, nil
}

// estimateReasoningTokens counts tokens in the concatenated thinking
// text via the /v1/messages/count_tokens endpoint. The real Anthropic
// usage object has no reasoning_tokens field, so this reuses the same
// preflight token-counting endpoint, applied post-hoc to the
// accumulated thinking blocks instead of a prospective prompt.
func (c *AnthropicClient) estimateReasoningTokens(ctx context.Context, blocks []string) int64 {
	if len(blocks) == 0 {
		return 0
	}
	text := strings.Join(blocks, "\n")
	result, err := c.sdk.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("reasoning_token_estimate_failed")
		return 0
	}
	return result.InputTokens
}
