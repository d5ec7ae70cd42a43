package narcache

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/aweris/narcache/internal/compression"
)

// NarInfo is one parsed narinfo record. The exported fields are a
// typed view of the record; the underlying lines are retained in
// parse order (including unknown keys) so that serializing an
// unmodified record reproduces the original text byte for byte.
//
// Mutation happens through package operations (the recompressor), not
// by assigning to fields: field writes alone do not reach the
// serialized form.
type NarInfo struct {
	StorePath   string
	URL         string
	Compression Compression
	FileHash    string // "sha256:<nixbase32>", hash of the compressed blob
	FileSize    int64
	NarHash     string // "sha256:<nixbase32>", hash of the decompressed archive
	NarSize     int64
	References  []string // store-path basenames, may include self
	Deriver     string
	System      string
	CA          string
	Sig         []string

	lines []narinfoLine
}

type narinfoLine struct {
	key, value string

	// bare marks a "Key:" line with no separator space; it serializes
	// back without one.
	bare bool
}

// Hash returns the store-path hash from the record's StorePath.
func (n *NarInfo) Hash() (string, error) {
	return HashFromName(n.StorePath)
}

// ParseNarInfo parses the textual narinfo format: one "Key: value" per
// line, References space-delimited, Sig repeatable. Unknown keys are
// preserved opaquely. A missing required field or a malformed
// hash/size value yields an error wrapping ErrMalformedRecord.
func ParseNarInfo(data []byte) (*NarInfo, error) {
	info := &NarInfo{}

	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		bare := false
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			// Tolerate a bare "Key:" with empty value.
			key, ok = strings.CutSuffix(line, ":")
			if !ok {
				return nil, fmt.Errorf("%w: line %q", ErrMalformedRecord, line)
			}
			value = ""
			bare = true
		}

		switch key {
		case "StorePath":
			info.StorePath = value
		case "URL":
			info.URL = value
		case "Compression":
			codec, err := compression.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
			}
			info.Compression = codec
		case "FileHash":
			if !validHashField(value) {
				return nil, fmt.Errorf("%w: bad FileHash %q", ErrMalformedRecord, value)
			}
			info.FileHash = value
		case "FileSize":
			size, err := parseSize(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad FileSize %q", ErrMalformedRecord, value)
			}
			info.FileSize = size
		case "NarHash":
			if !validHashField(value) {
				return nil, fmt.Errorf("%w: bad NarHash %q", ErrMalformedRecord, value)
			}
			info.NarHash = value
		case "NarSize":
			size, err := parseSize(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad NarSize %q", ErrMalformedRecord, value)
			}
			info.NarSize = size
		case "References":
			if value != "" {
				info.References = strings.Fields(value)
			}
		case "Deriver":
			info.Deriver = value
		case "System":
			info.System = value
		case "CA":
			info.CA = value
		case "Sig":
			info.Sig = append(info.Sig, value)
		}
		info.lines = append(info.lines, narinfoLine{key: key, value: value, bare: bare})
	}

	if info.Compression == "" {
		// Nix's documented default when the field is absent.
		info.Compression = CompressionBzip2
	}

	for _, req := range []struct {
		key string
		ok  bool
	}{
		{"StorePath", info.StorePath != ""},
		{"URL", info.URL != ""},
		{"FileHash", info.FileHash != ""},
		{"FileSize", info.FileSize != 0},
		{"NarHash", info.NarHash != ""},
		{"NarSize", info.NarSize != 0},
	} {
		if !req.ok {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedRecord, req.key)
		}
	}
	if _, err := HashFromName(info.StorePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	return info, nil
}

// NewNarInfo builds a fresh record in canonical field order.
func NewNarInfo(storePath, url string, codec Compression, fileHash string, fileSize int64, narHash string, narSize int64, references []string) *NarInfo {
	info := &NarInfo{
		StorePath:   storePath,
		URL:         url,
		Compression: codec,
		FileHash:    fileHash,
		FileSize:    fileSize,
		NarHash:     narHash,
		NarSize:     narSize,
		References:  references,
	}
	info.lines = []narinfoLine{
		{key: "StorePath", value: storePath},
		{key: "URL", value: url},
		{key: "Compression", value: codec.String()},
		{key: "FileHash", value: fileHash},
		{key: "FileSize", value: strconv.FormatInt(fileSize, 10)},
		{key: "NarHash", value: narHash},
		{key: "NarSize", value: strconv.FormatInt(narSize, 10)},
		{key: "References", value: strings.Join(references, " ")},
	}
	return info
}

// MarshalText serializes the record. For a record that was parsed and
// not mutated, the output is byte-identical to the input.
func (n *NarInfo) MarshalText() ([]byte, error) {
	if len(n.lines) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	var b bytes.Buffer
	for _, l := range n.lines {
		b.WriteString(l.key)
		if l.bare {
			b.WriteString(":")
		} else {
			b.WriteString(": ")
			b.WriteString(l.value)
		}
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// set updates a typed field and the corresponding line together.
func (n *NarInfo) set(key, value string) {
	switch key {
	case "URL":
		n.URL = value
	case "Compression":
		n.Compression = Compression(value)
	case "FileHash":
		n.FileHash = value
	case "FileSize":
		n.FileSize, _ = strconv.ParseInt(value, 10, 64)
	}

	for i := range n.lines {
		if n.lines[i].key == key {
			n.lines[i].value = value
			n.lines[i].bare = false
			return
		}
	}
	n.lines = append(n.lines, narinfoLine{key: key, value: value})
}

// dropSignatures removes all Sig fields from the record.
func (n *NarInfo) dropSignatures() {
	n.Sig = nil
	kept := n.lines[:0]
	for _, l := range n.lines {
		if l.key != "Sig" {
			kept = append(kept, l)
		}
	}
	n.lines = kept
}

func parseSize(s string) (int64, error) {
	size, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, fmt.Errorf("negative size %d", size)
	}
	return size, nil
}
