// Package extract resolves source pages into playable embed targets.
// A source page belongs to a family (a class of sites sharing one
// extraction strategy); the extractor scans it with layered heuristics
// and returns either a single top-ranked target or a list of mirrored
// server options.
package extract

// StreamKind classifies a resolved embed target.
type StreamKind int

const (
	KindIframe StreamKind = iota
	KindHLS
)

func (k StreamKind) String() string {
	switch k {
	case KindIframe:
		return "iframe"
	case KindHLS:
		return "hls"
	default:
		return "unknown"
	}
}

// Candidate is a potential playable-stream URL discovered during a scan.
// URL is always absolute and scheme-qualified before scoring or sorting.
type Candidate struct {
	URL       string
	Kind      StreamKind
	Score     int
	OriginTag string // which strategy produced it
}

// ServerOption is one of several mirrored playback endpoints a source
// page offers for the same content.
type ServerOption struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	IsDefault bool   `json:"isDefault"`
}

// Resolution is the extraction result surfaced to the client. Either
// URL/Kind are set (single target) or Servers is non-empty (mirror
// list), never both empty.
type Resolution struct {
	URL     string
	Kind    StreamKind
	Score   int
	Servers []ServerOption
}

// DefaultServer returns the option flagged as default, or the first one.
// Resolution with a non-empty server list always has a default.
func (r *Resolution) DefaultServer() *ServerOption {
	if len(r.Servers) == 0 {
		return nil
	}
	for i := range r.Servers {
		if r.Servers[i].IsDefault {
			return &r.Servers[i]
		}
	}
	return &r.Servers[0]
}
