// Package compression provides streaming codecs for NAR blobs.
//
// The codec set matches what Nix binary caches actually serve: none, xz,
// zstd, and bzip2. bzip2 is decode-only (the Go ecosystem has no
// maintained bzip2 encoder), so it is accepted as a source codec and
// rejected as a recompression target.
package compression

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec identifies a NAR compression scheme as it appears in the
// narinfo Compression field.
type Codec string

const (
	None  Codec = "none"
	XZ    Codec = "xz"
	Zstd  Codec = "zstd"
	Bzip2 Codec = "bzip2"
)

// ErrUnsupported is returned for codecs this package cannot encode or decode.
var ErrUnsupported = errors.New("unsupported compression")

// Parse validates a Compression field value.
func Parse(s string) (Codec, error) {
	switch Codec(s) {
	case None, XZ, Zstd, Bzip2:
		return Codec(s), nil
	case "":
		// Nix treats a missing Compression field as bzip2.
		return Bzip2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
}

// Ext returns the file extension appended to ".nar" for this codec.
func (c Codec) Ext() string {
	switch c {
	case XZ:
		return ".xz"
	case Zstd:
		return ".zstd"
	case Bzip2:
		return ".bz2"
	default:
		return ""
	}
}

func (c Codec) String() string { return string(c) }

// NewReader wraps r with a decompressor for this codec.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case None:
		return io.NopCloser(r), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, c)
	}
}

// NewWriter wraps w with a compressor for this codec. Closing the
// returned writer flushes the stream; it does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		return xw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("%w: %q has no encoder", ErrUnsupported, c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
