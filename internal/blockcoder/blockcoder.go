// Package blockcoder wraps the archive's generic byte-block compressor
// behind a tiny two-method interface, so every column stream (sizes,
// data, dictionaries) goes through the same opaque coder regardless of
// which concrete algorithm backs it.
//
// Grounded on ha1tch/unz's pkg/compress "try the cheap stdlib coder"
// texture (compressDEFLATE/decompressDEFLATE in compress.go): this
// package keeps that stdlib fallback path but promotes zstd, the way
// arloliu/mebo's compress/zstd_pure.go wires klauspost/compress/zstd
// with pooled encoders/decoders, to the primary backend.
package blockcoder

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Level selects a compression/speed tradeoff, standing in for the
// source's block_size/LZP/QLFC tunables: rather than exposing those
// algorithm-specific knobs, gvz exposes the zstd encoder level they
// roughly correspond to (faster block turnaround vs. smaller output).
type Level int

const (
	LevelFast Level = iota + 1
	LevelDefault
	LevelBest
)

func (l Level) zstdLevel() zstd.EncoderLevel {
	switch l {
	case LevelFast:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Backend selects the underlying algorithm.
type Backend int

const (
	BackendZstd Backend = iota
	BackendFlate
)

// Params configures one BlockCoder instance. Every archive stream
// class (sizes vector, data vector, dictionary) carries its own Params
// so tuning stays per-stream.
type Params struct {
	Backend Backend
	Level   Level
}

// DefaultParams is zstd at the default speed/ratio tradeoff.
var DefaultParams = Params{Backend: BackendZstd, Level: LevelDefault}

// Coder compresses and decompresses opaque byte blocks. It holds no
// per-call state beyond pooled encoders/decoders, so one Coder may be
// shared across concurrent pipeline stages.
type Coder struct {
	params Params

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

// New creates a Coder with the given Params.
func New(p Params) *Coder {
	return &Coder{params: p}
}

func (c *Coder) encoder() (*zstd.Encoder, error) {
	c.encOnce.Do(func() {
		c.enc, c.encErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(c.params.Level.zstdLevel()),
			zstd.WithEncoderCRC(false),
		)
	})
	return c.enc, c.encErr
}

func (c *Coder) decoder() (*zstd.Decoder, error) {
	c.decOnce.Do(func() {
		c.dec, c.decErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
		)
	})
	return c.dec, c.decErr
}

// Encode compresses data using the configured backend.
func (c *Coder) Encode(data []byte) ([]byte, error) {
	switch c.params.Backend {
	case BackendFlate:
		return encodeFlate(data)
	default:
		enc, err := c.encoder()
		if err != nil {
			return nil, fmt.Errorf("blockcoder: open zstd encoder: %w", err)
		}
		return enc.EncodeAll(data, nil), nil
	}
}

// Decode decompresses data produced by Encode. rawSize is the known
// uncompressed length (carried by the archive's part metadata word)
// and is used only as an allocation hint.
func (c *Coder) Decode(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch c.params.Backend {
	case BackendFlate:
		return decodeFlate(data)
	default:
		dec, err := c.decoder()
		if err != nil {
			return nil, fmt.Errorf("blockcoder: open zstd decoder: %w", err)
		}
		out := make([]byte, 0, rawSize)
		return dec.DecodeAll(data, out)
	}
}

func encodeFlate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFlate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
