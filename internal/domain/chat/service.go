// Package chat answers general medical questions. Conversations are not
// stored: the client sends the prior turns with every request.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/domain/assessment"
	"github.com/frma/frma/internal/platform/inference"
)

// Request limits.
const (
	MaxHistory   = 50
	MaxNewTokens = 2048
)

var ErrInvalidRequest = errors.New("invalid chat request")

// Request is one chat turn as received from the client. Zero generation
// parameters take the chat defaults.
type Request struct {
	Prompt       string                  `json:"prompt"`
	History      []inference.ChatMessage `json:"history"`
	MaxNewTokens int                     `json:"max_new_tokens"`
	Temperature  *float64                `json:"temperature"`
	TopP         *float64                `json:"top_p"`
}

type Response struct {
	Answer string `json:"answer"`
}

type Service struct {
	backend  inference.ChatBackend
	profiles assessment.ProfileProvider
	timeout  time.Duration
	log      zerolog.Logger
}

func NewService(backend inference.ChatBackend, timeout time.Duration, log zerolog.Logger) *Service {
	return &Service{backend: backend, timeout: timeout, log: log}
}

// SetProfileProvider attaches the user's stored profile as chat context.
func (s *Service) SetProfileProvider(p assessment.ProfileProvider) { s.profiles = p }

// Ask validates req and forwards it with the user's profile.
func (s *Service) Ask(ctx context.Context, userID string, req Request) (*Response, error) {
	cr, err := buildRequest(req)
	if err != nil {
		return nil, err
	}
	cr.Profile = s.profile(ctx, userID)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.log.Info().Str("user_id", userID).Int("history", len(cr.History)).Bool("profile", cr.Profile != nil).Msg("chat requested")

	answer, err := s.backend.Chat(ctx, cr)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("chat failed")
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &Response{Answer: answer}, nil
}

func (s *Service) profile(ctx context.Context, userID string) *inference.Profile {
	if s.profiles == nil {
		return nil
	}
	snap, err := s.profiles.Snapshot(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("profile unavailable, chatting without it")
		return nil
	}
	p := snap.InferenceProfile()
	if p.IsEmpty() {
		return nil
	}
	return p
}

func buildRequest(req Request) (inference.ChatRequest, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return inference.ChatRequest{}, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if len(req.History) > MaxHistory {
		return inference.ChatRequest{}, fmt.Errorf("%w: at most %d history turns", ErrInvalidRequest, MaxHistory)
	}
	history := make([]inference.ChatMessage, 0, len(req.History))
	for i, m := range req.History {
		if m.Role != "user" && m.Role != "assistant" {
			return inference.ChatRequest{}, fmt.Errorf("%w: history[%d] has role %q", ErrInvalidRequest, i, m.Role)
		}
		history = append(history, m)
	}

	cr := inference.ChatRequest{
		Prompt:       prompt,
		History:      history,
		MaxNewTokens: inference.DefaultChatMaxTokens,
		Temperature:  inference.DefaultChatTemperature,
		TopP:         inference.DefaultChatTopP,
	}
	if req.MaxNewTokens < 0 || req.MaxNewTokens > MaxNewTokens {
		return inference.ChatRequest{}, fmt.Errorf("%w: max_new_tokens must be between 1 and %d", ErrInvalidRequest, MaxNewTokens)
	}
	if req.MaxNewTokens > 0 {
		cr.MaxNewTokens = req.MaxNewTokens
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return inference.ChatRequest{}, fmt.Errorf("%w: temperature must be in [0,2]", ErrInvalidRequest)
		}
		cr.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			return inference.ChatRequest{}, fmt.Errorf("%w: top_p must be in [0,1]", ErrInvalidRequest)
		}
		cr.TopP = *req.TopP
	}
	return cr, nil
}
