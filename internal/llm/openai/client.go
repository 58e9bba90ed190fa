package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Complete implements llm.Completer over chat/completions.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	if !c.Configured() {
		return "", common.NewAppError(common.CodeLLMUnavailable, "GROQ_API_KEY is not configured", common.ErrLLMUnavailable)
	}

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"system_len", len(req.System),
		"user_len", len(req.User),
		"json_mode", req.JSONMode,
	)

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	messages = append(messages, sdk.UserMessage(req.User))

	params := sdk.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: sdk.Float(float64(c.cfg.Temperature)),
	}
	if req.JSONMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			c.logger.Error("llm.complete.api_error",
				"req_id", rid, "status", apiErr.StatusCode, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return "", fmt.Errorf("llm status %d: %w", apiErr.StatusCode, err)
		}
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("llm request: %w", err)
	}
	if len(completion.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in llm response")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
