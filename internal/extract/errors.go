package extract

import "errors"

var (
	// ErrUnsupportedSource reports a URL outside every family's host allowlist.
	ErrUnsupportedSource = errors.New("source url does not belong to a supported family")

	// ErrNoCandidate reports a page that yielded no usable stream candidate.
	ErrNoCandidate = errors.New("no stream candidate found on source page")

	// ErrParse reports malformed page structure the strategies could not work around.
	ErrParse = errors.New("source page could not be parsed")
)
