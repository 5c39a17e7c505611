// Package protocol implements the Protocol Switch: bidirectional dialect
// translation between a client-facing wire shape (Anthropic, OpenAI) and the
// canonical llm.ChatRequest/ChatResponse shape the rest of the pipeline
// operates on.
package protocol

import (
	"context"
	"fmt"

	"github.com/relayforge/relayforge/llm"
)

// Dialect tags a wire protocol a Transformer can read or write.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectOpenAI    Dialect = "openai"
)

// Transformer converts between one non-canonical Dialect and the canonical
// llm.ChatRequest/ChatResponse shape. The OpenAI dialect needs no
// Transformer: it already matches the canonical shape, so the Switch treats
// it as a pass-through identity conversion.
type Transformer interface {
	// Priority ranks this transformer among others that support the same
	// pair; higher wins when more than one is registered.
	Priority() int

	// Supports reports whether this transformer handles the (from, to) pair.
	Supports(from, to Dialect) bool

	// ToCanonical parses a request body in this transformer's dialect into
	// the canonical shape.
	ToCanonical(ctx context.Context, body []byte) (*llm.ChatRequest, error)

	// FromCanonical renders a canonical response into this transformer's
	// dialect.
	FromCanonical(ctx context.Context, resp *llm.ChatResponse) ([]byte, error)

	// ValidateInput checks a request body is well-formed for this
	// transformer before ToCanonical runs. Ingress validation is mandatory.
	ValidateInput(body []byte) error

	// ValidateOutput checks a rendered response body is well-formed.
	// Egress is lenient: a validation failure here does not block the
	// response, only surfaces in logs.
	ValidateOutput(body []byte) error
}

// ErrNoTransformer is returned when no registered Transformer supports the
// requested (from, to) pair and pass-through does not apply.
var ErrNoTransformer = fmt.Errorf("protocol: no transformer for requested conversion")

// Switch owns the set of registered Transformers and performs selection.
type Switch struct {
	transformers []Transformer
}

// NewSwitch creates an empty Switch.
func NewSwitch() *Switch {
	return &Switch{}
}

// Register adds a Transformer. Multiple transformers may claim the same
// pair; the highest-Priority one is preferred.
func (s *Switch) Register(t Transformer) {
	s.transformers = append(s.transformers, t)
}

// best returns the highest-priority transformer supporting (from, to), or
// nil if none does.
func (s *Switch) best(from, to Dialect) Transformer {
	var chosen Transformer
	for _, t := range s.transformers {
		if !t.Supports(from, to) {
			continue
		}
		if chosen == nil || t.Priority() > chosen.Priority() {
			chosen = t
		}
	}
	return chosen
}

// ConvertRequest parses a client request body in the `from` dialect into the
// canonical shape. `to` is accepted for symmetry with ConvertResponse and
// selection purposes, even though every transformer currently targets the
// same canonical shape on ingress.
func (s *Switch) ConvertRequest(ctx context.Context, body []byte, from, to Dialect) (*llm.ChatRequest, error) {
	if from == DialectOpenAI {
		return passthroughRequest(body)
	}

	t := s.best(from, to)
	if t == nil {
		return nil, ErrNoTransformer
	}
	if err := t.ValidateInput(body); err != nil {
		return nil, fmt.Errorf("protocol: ingress validation failed: %w", err)
	}
	return t.ToCanonical(ctx, body)
}

// ConvertResponse renders a canonical response into the `to` dialect. If no
// transformer matches, pass-through is allowed on the response path
// (lenient egress, strict ingress): the canonical OpenAI-shaped JSON is
// returned unchanged.
func (s *Switch) ConvertResponse(ctx context.Context, resp *llm.ChatResponse, from, to Dialect) ([]byte, error) {
	if to == DialectOpenAI {
		return passthroughResponse(resp)
	}

	t := s.best(from, to)
	if t == nil {
		return passthroughResponse(resp)
	}
	out, err := t.FromCanonical(ctx, resp)
	if err != nil {
		return nil, err
	}
	if verr := t.ValidateOutput(out); verr != nil {
		// Egress is lenient: log-worthy but not fatal. Callers that care
		// about this can inspect it; the Switch itself has no logger.
		return out, nil
	}
	return out, nil
}
