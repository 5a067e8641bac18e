package streampipe

import (
	"context"

	"github.com/cryptkit/vault/internal/crypterrors"
)

func sealError(msg string) error {
	return crypterrors.New(crypterrors.AuthenticationFailed, msg)
}

// Options configures a full compress -> encrypt -> (optional hash) pipeline.
type Options struct {
	Compression Algorithm
	Cipher      Cipher
	Key         []byte
	BaseNonce   []byte
	AAD         []byte
	WithHash    bool
}

// Result carries a completed pipeline's output chunks and, if requested, the
// source digest computed by the hash fork.
type Result struct {
	Chunks [][]byte
	Digest []byte
}

// Seal runs plaintext through compress -> hash(optional, over plaintext) ->
// encrypt, returning the encrypted chunk stream. This is the pipeline
// internal/vault uses to encrypt each stored value.
func Seal(ctx context.Context, plaintext []byte, opts Options) (Result, error) {
	src := Source(ctx, plaintext)

	var hashed <-chan []byte
	var digestCh <-chan []byte
	if opts.WithHash {
		hashed, digestCh = HashFork(ctx, src)
	} else {
		hashed = src
	}

	compressed := Run(ctx, hashed, CompressStage(opts.Compression))
	encrypted := Run(ctx, compressed, EncryptStage(opts.Cipher, opts.Key, opts.BaseNonce, opts.AAD))

	chunks := Collect(encrypted)

	result := Result{Chunks: chunks}
	if opts.WithHash {
		result.Digest = <-digestCh
	}
	return result, nil
}

// Open reverses Seal: decrypt -> decompress, reassembling the plaintext.
// Returns the first in-band error encountered, if any, alongside the
// partial output collected before it.
func Open(ctx context.Context, chunks [][]byte, opts Options) ([]byte, error) {
	in := make(chan []byte, len(chunks))
	for _, c := range chunks {
		in <- c
	}
	close(in)

	decrypted := Run(ctx, in, DecryptStage(opts.Cipher, opts.Key, opts.BaseNonce, opts.AAD))
	decompressed := Run(ctx, decrypted, DecompressStage(opts.Compression))

	out := Collect(decompressed)
	if msg := FirstError(out); msg != "" {
		return nil, sealError(msg)
	}

	var plaintext []byte
	for _, chunk := range out {
		plaintext = append(plaintext, chunk...)
	}
	return plaintext, nil
}
