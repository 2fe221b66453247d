package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/platform/inference"
)

type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
)

// Result is the outcome of a submission. A failure is a value shown to the
// user, not an error.
type Result struct {
	Status ResultStatus `json:"status"`
	Text   string       `json:"text,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

func Success(text string) Result   { return Result{Status: StatusSuccess, Text: text} }
func Failure(reason string) Result { return Result{Status: StatusFailure, Reason: reason} }

const failurePrefix = "Error retrieving instructions: "

// DisplayText is what the results screen shows.
func (r Result) DisplayText() string {
	if r.Status == StatusFailure {
		return failurePrefix + r.Reason
	}
	return r.Text
}

// WorkflowConfig holds the generation parameters for every submission.
type WorkflowConfig struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	Timeout      time.Duration
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxNewTokens: 768,
		Temperature:  0.3,
		TopP:         0.7,
		Timeout:      120 * time.Second,
	}
}

// Workflow sends synthesized prompts to the inference backend.
type Workflow struct {
	backend inference.Backend
	cfg     WorkflowConfig
	log     zerolog.Logger
}

func NewWorkflow(backend inference.Backend, cfg WorkflowConfig, log zerolog.Logger) *Workflow {
	def := DefaultWorkflowConfig()
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = def.MaxNewTokens
	}
	if cfg.TopP <= 0 {
		cfg.TopP = def.TopP
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = def.Temperature
	}
	return &Workflow{backend: backend, cfg: cfg, log: log}
}

// Submit makes exactly one backend call and always returns a Result.
func (w *Workflow) Submit(ctx context.Context, prompt string, profile *inference.Profile) Result {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := w.backend.Generate(ctx, inference.Request{
		Prompt:       prompt,
		Profile:      profile,
		MaxNewTokens: w.cfg.MaxNewTokens,
		Temperature:  w.cfg.Temperature,
		TopP:         w.cfg.TopP,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = inference.ErrEmptyAnswer
	}
	if err != nil {
		reason := FailureReason(err)
		w.log.Warn().Err(err).Str("reason", reason).Dur("elapsed", time.Since(start)).Msg("submission failed")
		return Failure(reason)
	}
	w.log.Info().Dur("elapsed", time.Since(start)).Int("answer_len", len(text)).Msg("submission succeeded")
	return Success(strings.TrimSpace(text))
}

// FailureReason turns a backend error into a human readable reason.
func FailureReason(err error) string {
	var timeout interface{ Timeout() bool }
	var status *inference.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.As(err, &timeout) && timeout.Timeout():
		return "Request timed out"
	case errors.Is(err, context.Canceled):
		return "Request was cancelled"
	case errors.Is(err, inference.ErrEmptyAnswer):
		return "The assistant returned an empty response"
	case errors.As(err, &status):
		return fmt.Sprintf("Assistant service returned status %d", status.Code)
	default:
		return err.Error()
	}
}
