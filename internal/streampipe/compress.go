package streampipe

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects a compression codec for a pipeline's compress stage.
type Algorithm int

const (
	AlgorithmZstd Algorithm = iota
	AlgorithmGzip
)

// lengthPrefixSize is the width of the little-endian chunk length prefix
// written ahead of every compressed chunk, letting a decompressor walk the
// stream without an external framer.
const lengthPrefixSize = 4

// CompressStage returns a Stage that compresses each input chunk
// independently under algo and prefixes it with its encoded length.
func CompressStage(algo Algorithm) Stage {
	return func(chunk []byte) ([][]byte, error) {
		compressed, err := compressChunk(algo, chunk)
		if err != nil {
			return nil, crypterrors.Wrap(crypterrors.Internal, "compress chunk", err)
		}
		framed := make([]byte, lengthPrefixSize+len(compressed))
		binary.LittleEndian.PutUint32(framed[:lengthPrefixSize], uint32(len(compressed)))
		copy(framed[lengthPrefixSize:], compressed)
		return [][]byte{framed}, nil
	}
}

// DecompressStage returns a Stage that reverses CompressStage, expecting
// each input chunk to already be one length-prefixed compressed frame (the
// caller is responsible for re-framing a byte stream into discrete frames
// before feeding this stage; Source does that when fed already-chunked
// compressed data).
func DecompressStage(algo Algorithm) Stage {
	return func(chunk []byte) ([][]byte, error) {
		if len(chunk) < lengthPrefixSize {
			return nil, crypterrors.New(crypterrors.InvalidInput, "compressed chunk too short for length prefix")
		}
		n := binary.LittleEndian.Uint32(chunk[:lengthPrefixSize])
		body := chunk[lengthPrefixSize:]
		if uint32(len(body)) != n {
			return nil, crypterrors.New(crypterrors.InvalidInput, "compressed chunk length prefix mismatch")
		}
		plain, err := decompressChunk(algo, body)
		if err != nil {
			return nil, crypterrors.Wrap(crypterrors.Internal, "decompress chunk", err)
		}
		return [][]byte{plain}, nil
	}
}

func compressChunk(algo Algorithm, chunk []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch algo {
	case AlgorithmZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(chunk); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case AlgorithmGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(chunk); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unknown compression algorithm")
	}
	return buf.Bytes(), nil
}

func decompressChunk(algo Algorithm, chunk []byte) ([]byte, error) {
	switch algo {
	case AlgorithmZstd:
		r, err := zstd.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case AlgorithmGzip:
		r, err := gzip.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unknown compression algorithm")
	}
}
