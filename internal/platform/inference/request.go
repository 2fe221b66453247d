// Package inference talks to the language model that turns a synthesized
// emergency assessment into first-aid instructions.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Profile is the optional subject context forwarded with a request. Empty
// fields are omitted on the wire.
type Profile struct {
	Name        string   `json:"name,omitempty"`
	Age         int      `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Medications []string `json:"medications,omitempty"`
	WeightKg    float64  `json:"weight_kg,omitempty"`
	HeightCm    float64  `json:"height_cm,omitempty"`
	BloodType   string   `json:"blood_type,omitempty"`
}

// IsEmpty reports whether no field would contribute profile context.
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Age == 0 && p.Gender == "" && len(p.Conditions) == 0 &&
		len(p.Allergies) == 0 && len(p.Medications) == 0
}

// Block renders the "User Profile:" preamble placed ahead of the system
// instruction. It returns "" when there is nothing to say.
func (p *Profile) Block() string {
	if p.IsEmpty() {
		return ""
	}
	var parts []string
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("- Age: %d", p.Age))
	}
	if p.Gender != "" {
		parts = append(parts, "- Gender: "+p.Gender)
	}
	if len(p.Conditions) > 0 {
		parts = append(parts, "- Known Conditions: "+strings.Join(p.Conditions, ", "))
	}
	if len(p.Allergies) > 0 {
		parts = append(parts, "- Known Allergies: "+strings.Join(p.Allergies, ", "))
	}
	if len(p.Medications) > 0 {
		parts = append(parts, "- Current Medications: "+strings.Join(p.Medications, ", "))
	}
	return "User Profile:\n" + strings.Join(parts, "\n")
}

// Request is one generation call.
type Request struct {
	Prompt       string
	Profile      *Profile
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// Backend generates an answer for a request.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ChatMessage is one prior turn of a conversation. Role is "user" or
// "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one medical chat turn. History is supplied by the caller
// and never stored.
type ChatRequest struct {
	Prompt       string
	History      []ChatMessage
	Profile      *Profile
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// Chat generation defaults.
const (
	DefaultChatMaxTokens   = 512
	DefaultChatTemperature = 0.7
	DefaultChatTopP        = 0.9
)

// ChatBackend answers general medical questions.
type ChatBackend interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ErrChatUnsupported is returned when the configured backend cannot chat.
var ErrChatUnsupported = errors.New("inference: chat not supported by backend")

// ErrEmptyAnswer is returned when the model responds without any text.
var ErrEmptyAnswer = errors.New("inference: empty answer")

// StatusError reports a non-success HTTP status from a remote backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference: status %d", e.Code)
	}
	return fmt.Sprintf("inference: status %d: %s", e.Code, e.Body)
}
