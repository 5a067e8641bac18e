// Package streampipe implements the streaming crypto pipeline (C3):
// backpressure-aware chunk streams composing compression, encryption, and
// an optional hash fork, propagating per-chunk failures as in-band
// sentinel values instead of dropping the stream.
package streampipe

import (
	"bytes"
	"context"
)

// ChunkSize is the maximum size of a plaintext chunk fed into a stage.
// Stages yield at this boundary so no single chunk holds CPU indefinitely.
const ChunkSize = 64 * 1024

// ChannelCapacity bounds every inter-stage channel, imposing backpressure on
// a producer that outruns its consumer.
const ChannelCapacity = 16

// ErrorSentinel prefixes a chunk that represents a failed stage step rather
// than data. Consumers must check for this prefix; the pipeline never
// drops a chunk outright, successful or not.
var ErrorSentinel = []byte("ERROR: ")

// IsError reports whether chunk is an error sentinel.
func IsError(chunk []byte) bool { return bytes.HasPrefix(chunk, ErrorSentinel) }

// errorChunk formats err as a sentinel-prefixed chunk.
func errorChunk(err error) []byte {
	return append(append([]byte{}, ErrorSentinel...), []byte(err.Error())...)
}

// Stage transforms one chunk into zero-or-more output chunks (a compressor
// stage may emit nothing for a short final flush; typical stages emit
// exactly one).
type Stage func(chunk []byte) ([][]byte, error)

// Run reads chunks from in, applies stage to each with a hard yield at
// every chunk boundary, and writes results to the returned channel. A
// stage error becomes a single sentinel chunk on the output; the loop
// continues to the next input chunk rather than stopping, per the
// "never silently drop chunks" contract. Run respects ctx cancellation at
// every chunk boundary, closing the output channel early.
func Run(ctx context.Context, in <-chan []byte, stage Stage) <-chan []byte {
	out := make(chan []byte, ChannelCapacity)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}
				results, err := stage(chunk)
				if err != nil {
					select {
					case out <- errorChunk(err):
					case <-ctx.Done():
						return
					}
					continue
				}
				for _, r := range results {
					select {
					case out <- r:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// Source splits data into ChunkSize-bounded chunks and feeds them to a
// channel in source order, closing it when exhausted or ctx is done.
func Source(ctx context.Context, data []byte) <-chan []byte {
	out := make(chan []byte, ChannelCapacity)
	go func() {
		defer close(out)
		for len(data) > 0 {
			n := ChunkSize
			if n > len(data) {
				n = len(data)
			}
			chunk := make([]byte, n)
			copy(chunk, data[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
			data = data[n:]
		}
	}()
	return out
}

// Collect drains ch into a single slice of chunks, preserving order. It
// does not interpret sentinels; callers that care about errors should
// check IsError on each chunk as it is consumed, or after Collect returns.
func Collect(ch <-chan []byte) [][]byte {
	var chunks [][]byte
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// FirstError scans chunks for the first sentinel value and returns the
// wrapped message, or "" if none is present.
func FirstError(chunks [][]byte) string {
	for _, c := range chunks {
		if IsError(c) {
			return string(c[len(ErrorSentinel):])
		}
	}
	return ""
}
