// Package openai implements llm.Structurer over the OpenAI chat-completions
// API with JSON-schema-constrained output.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
)

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}, nil
}

// Structure implements llm.Structurer using text-only chat/completions.
// The raw model content and token usage are returned even on failure so the
// caller can attach them to the taxonomy error.
func (c *Client) Structure(ctx context.Context, req llm.StructureRequest) (llm.StructureResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	res := llm.StructureResult{Model: c.cfg.Model}

	c.log.Info("llm.structure.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"filename_hint", req.FilenameHint,
	)

	schema := llm.BuildOrderJSONSchema(constants.Statuses())
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(constants.Statuses())},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.structure.http_error",
			"req_id", rid, "status", status, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		res.Raw = raw
		return res, fmt.Errorf("openai request: %w", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.structure.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		res.Raw = raw
		return res, fmt.Errorf("decode openai response: %w", err)
	}
	if cc.Usage != nil {
		res.Usage = &failure.TokenUsage{
			PromptTokens:     cc.Usage.PromptTokens,
			CompletionTokens: cc.Usage.CompletionTokens,
			TotalTokens:      cc.Usage.TotalTokens,
		}
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.structure.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		res.Raw = raw
		return res, errors.New("no choices in openai response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	res.Raw = []byte(content)
	if content == "" {
		c.log.Error("llm.structure.empty_content", "req_id", rid)
		return res, errors.New("empty model response content")
	}

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, res.Raw); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.structure.schema_validation_failed",
				"req_id", rid, "error", err, "content", content,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res, fmt.Errorf("schema validation failed: %w", err)
		}
		// Try a lenient sanitize: normalize offenders and re-validate.
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(res.Raw, c.log)
		if sErr != nil {
			c.log.Error("llm.structure.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.structure.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.structure.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		res.Raw = cleaned
	}

	if err := json.Unmarshal(res.Raw, &res.Fields); err != nil {
		c.log.Error("llm.structure.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("llm.structure.ok",
		"req_id", rid,
		"po_number", res.Fields.PONumber,
		"date", res.Fields.OrderDate,
		"total", res.Fields.Total,
		"items", len(res.Fields.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
