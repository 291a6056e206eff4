package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Runner wraps one ChatTransport behind the structured/unstructured retry
// contract. The last raw response text is retained for diagnostic logging
// so a failed attempt can be traced after the fact.
type Runner struct {
	transport ChatTransport
	repairer  JSONRepairer
	validator SchemaValidator
	logger    *slog.Logger

	lastRawResponse string
}

// NewRunner constructs a Runner. validator may be nil when a caller has no
// schema to enforce; repair still runs.
func NewRunner(transport ChatTransport, repairer JSONRepairer, validator SchemaValidator, logger *slog.Logger) *Runner {
	return &Runner{
		transport: transport,
		repairer:  repairer,
		validator: validator,
		logger:    logger.With("component", "agent.runner"),
	}
}

// LastRawResponse returns the most recent raw text received from the
// transport, for diagnostic logging by callers.
func (r *Runner) LastRawResponse() string {
	return r.lastRawResponse
}

// RunUnstructured invokes the model and returns its raw text response.
func (r *Runner) RunUnstructured(ctx context.Context, model string, parts []PromptPart, maxRetries int, retryDelay time.Duration) UnstructuredResult {
	var lastErr string
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := r.transport.Complete(ctx, model, parts)
		if err != nil {
			lastErr = err.Error()
		} else if result.Escalated {
			lastErr = fmt.Sprintf("agent escalated: %s", nonEmpty(result.Reason, "no specific message"))
		} else if strings.TrimSpace(result.Text) == "" {
			lastErr = "agent did not give a final response"
		} else {
			r.lastRawResponse = result.Text
			return UnstructuredResult{Status: StatusSuccess, Text: result.Text}
		}

		if attempt < maxRetries {
			r.logger.Warn("transient failure, retrying", "attempt", attempt+1, "err", lastErr)
			sleep(ctx, retryDelay)
		}
	}
	return UnstructuredResult{Status: StatusError, Message: fmt.Sprintf("max retries exceeded: %s", lastErr)}
}

// RunStructured invokes the model and parses its response as JSON, repairing
// and validating as needed.
func (r *Runner) RunStructured(ctx context.Context, model, schemaName string, parts []PromptPart, maxRetries int, retryDelay time.Duration) StructuredResult {
	var lastErr string
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := r.transport.Complete(ctx, model, parts)
		switch {
		case err != nil:
			lastErr = err.Error()
		case result.Escalated:
			lastErr = fmt.Sprintf("agent escalated: %s", nonEmpty(result.Reason, "no specific message"))
		case strings.TrimSpace(result.Text) == "":
			lastErr = "agent did not give a final response"
		default:
			r.lastRawResponse = result.Text
			output, ok := r.parseAndValidate(schemaName, result.Text)
			if ok {
				return StructuredResult{Status: StatusSuccess, Output: output}
			}
			lastErr = "response was not valid JSON after repair"
		}

		if attempt < maxRetries {
			r.logger.Warn("transient failure, retrying", "attempt", attempt+1, "err", lastErr)
			sleep(ctx, retryDelay)
		}
	}
	return StructuredResult{Status: StatusError, Message: fmt.Sprintf("max retries exceeded: %s", lastErr)}
}

// parseAndValidate implements spec step 3-4: fence strip, control-char
// escape, parse (with repair fallback), then schema validation with a
// raw-JSON fallback on validation failure.
func (r *Runner) parseAndValidate(schemaName, rawText string) (map[string]any, bool) {
	cleaned := stripCodeFence(rawText)
	cleaned = escapeUnescapedControlChars(cleaned)

	value, err := parseJSONObject(cleaned)
	if err != nil {
		if r.repairer == nil {
			return nil, false
		}
		repaired, repairErr := r.repairer.Repair(cleaned)
		if repairErr != nil {
			return nil, false
		}
		value, err = parseJSONObject(repaired)
		if err != nil {
			return nil, false
		}
	}

	if r.validator != nil {
		if err := r.validator.Validate(schemaName, value); err != nil {
			r.logger.Warn("schema validation failed, falling back to raw JSON", "schema", schemaName, "err", err)
		}
	}
	return value, true
}

func parseJSONObject(s string) (map[string]any, error) {
	var value map[string]any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// stripCodeFence removes a leading ```json or ``` and a trailing ```,
// trimming surrounding whitespace first and after.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimRight(s, "\n\t "), "```")
	return strings.TrimSpace(s)
}

// escapeUnescapedControlChars scans byte-by-byte, tracking whether the
// cursor is inside a JSON string literal and whether the previous byte was
// an unconsumed backslash, escaping any raw control byte (<0x20) found
// inside a string as its \u00XX form.
func escapeUnescapedControlChars(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case inString && escaped:
			out.WriteByte(b)
			escaped = false
		case inString && b == '\\':
			out.WriteByte(b)
			escaped = true
		case inString && b == '"':
			out.WriteByte(b)
			inString = false
		case inString && b < 0x20:
			fmt.Fprintf(&out, "\\u%04x", b)
		case !inString && b == '"':
			out.WriteByte(b)
			inString = true
		default:
			out.WriteByte(b)
		}
	}
	return out.String()
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
