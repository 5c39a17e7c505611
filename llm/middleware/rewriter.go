package middleware

import (
	"context"
	"fmt"

	llmpkg "github.com/relayforge/relayforge/llm"
)

// RequestRewriter mutates an outbound chat request before it reaches a
// provider's wire format — used to strip fields a given upstream rejects
// (e.g. a tool_choice on a request with no tools) or to inject
// provider-specific defaults.
type RequestRewriter interface {
	Rewrite(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error)

	// Name identifies the rewriter in logs and in a failed chain's error.
	Name() string
}

// RewriterChain runs a sequence of RequestRewriters over one request,
// short-circuiting on the first failure.
type RewriterChain struct {
	rewriters []RequestRewriter
}

// NewRewriterChain builds a chain from zero or more rewriters, in order.
func NewRewriterChain(rewriters ...RequestRewriter) *RewriterChain {
	return &RewriterChain{rewriters: rewriters}
}

// Execute runs every rewriter in order. A nil chain or an empty chain is a
// no-op that returns req unchanged.
func (c *RewriterChain) Execute(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if c == nil || len(c.rewriters) == 0 {
		return req, nil
	}

	var err error
	for _, rewriter := range c.rewriters {
		req, err = rewriter.Rewrite(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("rewriter %q: %w", rewriter.Name(), err)
		}
	}
	return req, nil
}

// AddRewriter appends a rewriter to the end of the chain.
func (c *RewriterChain) AddRewriter(rewriter RequestRewriter) {
	c.rewriters = append(c.rewriters, rewriter)
}

// Len reports how many rewriters are installed.
func (c *RewriterChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rewriters)
}
