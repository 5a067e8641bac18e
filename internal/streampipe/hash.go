package streampipe

import (
	"context"
	"crypto/sha256"
	"hash"
)

// HashFork mirrors every chunk read from in to out unchanged while folding
// it into a running digest, returned via the done channel once in closes.
// This implements the spec's "[hash] is a fork that computes a digest over
// the source and returns it alongside the pipeline result": the hash
// stage never mutates the stream, it only observes it.
func HashFork(ctx context.Context, in <-chan []byte) (out <-chan []byte, done <-chan []byte) {
	outCh := make(chan []byte, ChannelCapacity)
	doneCh := make(chan []byte, 1)
	go func() {
		defer close(outCh)
		defer close(doneCh)
		h := newDigest()
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					doneCh <- h.Sum(nil)
					return
				}
				if !IsError(chunk) {
					h.Write(chunk)
				}
				select {
				case outCh <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return outCh, doneCh
}

func newDigest() hash.Hash { return sha256.New() }
