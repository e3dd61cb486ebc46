package fetch

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DecodeBody converts an upstream body to UTF-8 and returns it together
// with a usable content type. The declared Content-Type charset wins;
// otherwise the charset is sniffed. Bodies that already look like valid
// UTF-8 pass through untouched. When transcoding changes the bytes the
// returned content type carries charset=utf-8 in place of the original
// declaration.
func DecodeBody(raw []byte, contentType string) (string, string) {
	detectedType := contentType
	if detectedType == "" {
		detectedType = mimetype.Detect(raw).String()
	}

	if name := charsetFromContentType(contentType); name != "" {
		if decoded, ok := decodeAs(raw, name); ok {
			return decoded, utf8Type(detectedType, decoded != string(raw))
		}
	}

	if utf8.Valid(raw) {
		return string(raw), detectedType
	}

	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(raw); err == nil && result != nil {
		if decoded, ok := decodeAs(raw, result.Charset); ok {
			return decoded, utf8Type(detectedType, decoded != string(raw))
		}
	}

	// Last resort: lossy passthrough keeps the transformer total.
	return string(raw), detectedType
}

// utf8Type rewrites the charset parameter after transcoding, so the
// declared encoding matches the bytes actually served.
func utf8Type(contentType string, changed bool) string {
	if !changed {
		return contentType
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if params == nil {
		params = map[string]string{}
	}
	params["charset"] = "utf-8"
	return mime.FormatMediaType(mediaType, params)
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func decodeAs(raw []byte, charset string) (string, bool) {
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return string(raw), true
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", false
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", false
	}
	if !bytes.Contains(decoded, []byte{0}) {
		return string(decoded), true
	}
	return "", false
}
