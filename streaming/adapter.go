// Package streaming implements the Streaming Adapter: bridging between a
// channel of llm.StreamChunk and a single materialized llm.ChatResponse in
// both directions, on top of the bounded, watermarked stream primitives in
// llm/streaming.
package streaming

import (
	"context"
	"fmt"
	"time"

	"github.com/relayforge/relayforge/llm"
	llmstream "github.com/relayforge/relayforge/llm/streaming"
)

// BufferLevelRecorder exposes a stream's buffer utilization to metrics.
// internal/metrics.Collector implements this via RecordStreamBufferLevel.
type BufferLevelRecorder interface {
	RecordStreamBufferLevel(streamID string, level float64)
}

// Config configures the Streaming Adapter's bridges.
type Config struct {
	Backpressure llmstream.BackpressureConfig
	ChunkSize    int           // characters per chunk for non-stream -> stream
	InterChunk   time.Duration // simulated pacing delay between emitted chunks, 0 disables
	RateLimit    float64       // tokens/sec shared across concurrent streams, 0 disables
	RateBurst    int
	Recorder     BufferLevelRecorder
}

// DefaultConfig returns sensible defaults grounded on
// llmstream.DefaultBackpressureConfig.
func DefaultConfig() Config {
	return Config{
		Backpressure: llmstream.DefaultBackpressureConfig(),
		ChunkSize:    64,
	}
}

// StreamContext tracks one in-flight bridge invocation for observability.
type StreamContext struct {
	ID        string
	StartedAt time.Time
	stream    *llmstream.BackpressureStream
	recorder  BufferLevelRecorder
}

// BufferLevel reports current buffer utilization and, if a recorder is
// configured, pushes it to the stream_buffer_level gauge.
func (sc *StreamContext) BufferLevel() float64 {
	level := sc.stream.BufferLevel()
	if sc.recorder != nil {
		sc.recorder.RecordStreamBufferLevel(sc.ID, level)
	}
	return level
}

// Adapter bridges between stream and non-stream request handling.
type Adapter struct {
	cfg     Config
	limiter *llmstream.RateLimiter
}

// New creates an Adapter. A shared RateLimiter is created when cfg.RateLimit
// is positive, so concurrent streams against the same instance are
// throttled fairly rather than each getting an independent budget.
func New(cfg Config) *Adapter {
	a := &Adapter{cfg: cfg}
	if cfg.RateLimit > 0 {
		a.limiter = llmstream.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return a
}

// Chunk is the wire shape a non-stream response is partitioned into, or
// emitted while draining a stream->stream pass-through.
type Chunk struct {
	ID          string    `json:"id"`
	Data        string    `json:"data"`
	Index       int       `json:"index"`
	TotalChunks int       `json:"total_chunks"`
	IsLast      bool      `json:"is_last"`
	Metadata    ChunkMeta `json:"metadata"`
}

// ChunkMeta annotates a Chunk for observability and encoding.
type ChunkMeta struct {
	Timestamp time.Time `json:"timestamp"`
	ChunkSize int       `json:"chunk_size"`
	Encoding  string    `json:"encoding,omitempty"` // "raw" when chunk encoding is enabled
}

// CollectToResponse consumes a channel of llm.StreamChunk until it closes,
// combining deltas into a single llm.ChatResponse: content deltas
// concatenate, tool_calls deltas append, everything else takes the last
// non-zero value seen (structural merge). Returns an error immediately if
// an error chunk is observed or ctx is canceled.
func (a *Adapter) CollectToResponse(ctx context.Context, chunks <-chan llm.StreamChunk) (*llm.ChatResponse, error) {
	resp := &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant}}},
	}
	var content string
	var toolCalls []llm.ToolCall
	seen := false

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if !seen {
					return nil, fmt.Errorf("streaming: no chunks received before channel closed")
				}
				resp.Choices[0].Message.Content = content
				resp.Choices[0].Message.ToolCalls = toolCalls
				return resp, nil
			}
			seen = true
			if chunk.Err != nil {
				return nil, fmt.Errorf("streaming: upstream error chunk: %w", chunk.Err)
			}

			content += chunk.Delta.Content
			if len(chunk.Delta.ToolCalls) > 0 {
				toolCalls = append(toolCalls, chunk.Delta.ToolCalls...)
			}
			if chunk.ID != "" {
				resp.ID = chunk.ID
			}
			if chunk.Model != "" {
				resp.Model = chunk.Model
			}
			if chunk.FinishReason != "" {
				resp.Choices[0].FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}

			if a.cfg.InterChunk > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(a.cfg.InterChunk):
				}
			}
		}
	}
}

// ExpandToStream partitions resp's first choice content into fixed-size
// chunks and emits them on the returned channel, annotated per-chunk. The
// channel closes after the final (IsLast) chunk is sent, or immediately on
// ctx cancellation.
func (a *Adapter) ExpandToStream(ctx context.Context, resp *llm.ChatResponse, encode bool) (<-chan Chunk, *StreamContext, error) {
	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("streaming: response has no choices to expand")
	}
	content := resp.Choices[0].Message.Content

	size := a.cfg.ChunkSize
	if size <= 0 {
		size = 64
	}

	total := (len(content) + size - 1) / size
	if total == 0 {
		total = 1
	}

	bpCfg := a.cfg.Backpressure
	bpCfg.StreamID = resp.ID
	bp := llmstream.NewBackpressureStream(bpCfg)
	sc := &StreamContext{ID: resp.ID, StartedAt: time.Now(), stream: bp, recorder: a.cfg.Recorder}

	// Producer: partitions content and writes through the bounded,
	// watermarked pipe so a slow consumer applies real backpressure
	// (DropPolicy) rather than buffering unbounded chunks in Go memory.
	go func() {
		defer bp.Close()

		runes := []rune(content)
		idx := 0
		for i := 0; i < total; i++ {
			if a.limiter != nil {
				if err := a.limiter.Wait(ctx); err != nil {
					return
				}
			}

			end := idx + size
			if end > len(runes) {
				end = len(runes)
			}
			piece := string(runes[idx:end])
			idx = end

			token := llmstream.Token{Content: piece, Index: i, Timestamp: time.Now(), Final: i == total-1}
			if err := bp.Write(ctx, token); err != nil {
				return
			}

			if a.cfg.InterChunk > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(a.cfg.InterChunk):
				}
			}
		}
	}()

	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		for {
			token, err := bp.Read(ctx)
			if err != nil {
				return
			}
			c := Chunk{
				ID:          resp.ID,
				Data:        token.Content,
				Index:       token.Index,
				TotalChunks: total,
				IsLast:      token.Final,
				Metadata:    ChunkMeta{Timestamp: token.Timestamp, ChunkSize: len(token.Content)},
			}
			if encode {
				c.Metadata.Encoding = "raw"
			}
			select {
			case <-ctx.Done():
				return
			case out <- c:
			}
			if token.Final {
				return
			}
		}
	}()

	return out, sc, nil
}
