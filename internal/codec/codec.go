// Package codec encodes grid state into a compact URL-safe string so a
// layout can travel inside a link without touching the share store.
// Format: version byte prefix, then base64url(deflate(json)).
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/flate"
)

// version tags the wire format; bump on incompatible changes.
const version = "1"

var (
	// ErrInvalid reports a corrupt or truncated payload.
	ErrInvalid = errors.New("invalid state payload")
	// ErrVersion reports a payload from an unknown format version.
	ErrVersion = errors.New("unsupported state payload version")
)

// Encode compresses state into a URL-safe token.
func Encode(state map[string]interface{}) (string, error) {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	var buf bytes.Buffer
	writer, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := writer.Write(raw); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	return version + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. Unknown versions and corrupt payloads come
// back as typed errors, never panics.
func Decode(token string) (map[string]interface{}, error) {
	if len(token) < 2 {
		return nil, ErrInvalid
	}
	if !strings.HasPrefix(token, version) {
		return nil, fmt.Errorf("%w: %q", ErrVersion, token[:1])
	}

	compressed, err := base64.RawURLEncoding.DecodeString(token[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()
	raw, err := io.ReadAll(io.LimitReader(reader, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var state map[string]interface{}
	if err := sonic.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return state, nil
}
