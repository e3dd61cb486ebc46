// Package delivery implements the per-slot state machine that decides
// how an embed target is rendered: straight into the embedding element,
// through the transforming proxy, through a fallback proxy, or handed
// to an out-of-process viewer. One machine per video slot; machines
// never share state.
package delivery

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/extract"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
)

// Mode is the slot's delivery strategy.
type Mode int

const (
	ModeUnresolved Mode = iota
	ModeDirect
	ModeProxied
	ModeFallbackProxied
	ModeServerSelected
	ModeBlocked
	ModeExternal
)

func (m Mode) String() string {
	switch m {
	case ModeUnresolved:
		return "unresolved"
	case ModeDirect:
		return "direct"
	case ModeProxied:
		return "proxied"
	case ModeFallbackProxied:
		return "proxied-fallback"
	case ModeServerSelected:
		return "server-selected"
	case ModeBlocked:
		return "blocked"
	case ModeExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Resolver asks the extractor for an embed resolution. Implementations
// must honor context cancellation.
type Resolver interface {
	// FamilyFor returns the extraction family for sourceURL, or "" when
	// the URL is not extraction-eligible.
	FamilyFor(sourceURL string) string
	Resolve(ctx context.Context, family, sourceURL string) (*extract.Resolution, error)
}

// Opener hands a URL to the operating environment's out-of-process
// viewer. It must not initiate any embedding.
type Opener interface {
	OpenExternal(rawURL string)
}

// Probe reports what the embedding element can observe about a loaded
// document. Cross-origin documents are opaque: Accessible is false and
// only dimensions are meaningful.
type Probe struct {
	Width      int
	Height     int
	Accessible bool
	BodyEmpty  bool
	// BlockText is true when an accessible document shows known
	// "cannot embed" phrasing with no player element present.
	BlockText bool
}

// Config tunes the machine. Grace windows default to the production
// values; tests shrink them.
type Config struct {
	ProxyBase    string // e.g. "https://host/proxy"
	FallbackBase string // optional second proxy; empty disables fallback
	InitialGrace time.Duration
	FinalGrace   time.Duration
	ContentDelay time.Duration // wait before the post-load content check
	AutoFallback bool
}

// DefaultConfig returns production grace windows.
func DefaultConfig(proxyBase string) Config {
	return Config{
		ProxyBase:    proxyBase,
		InitialGrace: 3 * time.Second,
		FinalGrace:   5 * time.Second,
		ContentDelay: 1500 * time.Millisecond,
		AutoFallback: true,
	}
}

// State is a snapshot of the slot.
type State struct {
	Mode          Mode
	SourceURL     string
	EmbedURL      string
	Servers       []extract.ServerOption
	HasUserChosen bool
	// RemountToken changes whenever the embedding element must be
	// recreated rather than just re-pointed.
	RemountToken int
	Resolving    bool
}

// Slot is one video slot's delivery machine.
type Slot struct {
	cfg      Config
	resolver Resolver
	opener   Opener
	log      *logging.Logger

	mu         sync.Mutex
	state      State
	generation int
	sched      *Scheduler
	parent     context.Context
	loaded     bool

	// OnChange, when set, observes every state snapshot. Called without
	// the lock held.
	OnChange func(State)

	// ProbeSource, when set, re-inspects the embedded document on
	// demand, so delayed checks see the document as it is then rather
	// than as it was at load time. Called without the lock held.
	ProbeSource func() Probe
}

// NewSlot creates an idle slot machine. ctx bounds the slot's lifetime.
func NewSlot(ctx context.Context, cfg Config, resolver Resolver, opener Opener, log *logging.Logger) *Slot {
	return &Slot{
		cfg:      cfg,
		resolver: resolver,
		opener:   opener,
		log:      log.Named("delivery"),
		parent:   ctx,
		state:    State{Mode: ModeUnresolved},
	}
}

// State returns a snapshot.
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Slot) snapshotLocked() State {
	snap := s.state
	snap.Servers = append([]extract.ServerOption(nil), s.state.Servers...)
	return snap
}

// SetURL points the slot at a new source. Any in-flight resolution or
// pending timer belongs to the old URL and is cancelled; a stale
// resolution can never land on the new state.
func (s *Slot) SetURL(sourceURL string) {
	s.mu.Lock()
	s.cancelWorkLocked()
	s.generation++
	generation := s.generation
	s.loaded = false
	s.state = State{
		Mode:         ModeUnresolved,
		SourceURL:    sourceURL,
		RemountToken: s.state.RemountToken + 1,
	}

	family := ""
	if s.resolver != nil {
		family = s.resolver.FamilyFor(sourceURL)
	}

	if family == "" {
		// Not extraction-eligible: embed the raw target directly. Direct
		// is the default because the upstream request then originates
		// from the viewer's own network address.
		s.enterModeLocked(ModeDirect, sourceURL)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	s.state.Resolving = true
	sched := s.ensureSchedulerLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		resolution, err := s.resolver.Resolve(ctx, family, sourceURL)
		s.applyResolution(generation, sourceURL, resolution, err)
	}()

	// Tie the resolve to slot teardown via the scheduler context.
	go func() {
		select {
		case <-sched.ctx.Done():
			cancel()
		case <-done:
		}
	}()
}

// applyResolution installs a finished resolution unless the slot moved on.
func (s *Slot) applyResolution(generation int, sourceURL string, resolution *extract.Resolution, err error) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.state.Resolving = false

	if err != nil || resolution == nil {
		s.log.Debug("resolution failed, falling back to direct embed",
			zap.String("source", sourceURL),
			zap.Error(err),
		)
		s.enterModeLocked(ModeDirect, sourceURL)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	if len(resolution.Servers) > 0 {
		s.state.Servers = resolution.Servers
		def := resolution.DefaultServer()
		s.enterModeLocked(ModeServerSelected, def.URL)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	s.enterModeLocked(ModeDirect, resolution.URL)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// enterModeLocked switches strategy and arms the blocked-detection
// window for modes that embed.
func (s *Slot) enterModeLocked(mode Mode, target string) {
	s.state.Mode = mode
	s.loaded = false

	switch mode {
	case ModeDirect, ModeServerSelected:
		s.state.EmbedURL = target
	case ModeProxied:
		s.state.EmbedURL = proxied(s.cfg.ProxyBase, target)
	case ModeFallbackProxied:
		s.state.EmbedURL = proxied(s.cfg.FallbackBase, target)
	case ModeExternal:
		s.state.EmbedURL = ""
		if s.opener != nil {
			s.opener.OpenExternal(target)
		}
		return
	default:
		s.state.EmbedURL = ""
		return
	}

	s.armBlockedCheckLocked(target)
}

// armBlockedCheckLocked schedules the two-phase load verdict: an
// initial grace window, extended once before the final call.
func (s *Slot) armBlockedCheckLocked(target string) {
	sched := s.ensureSchedulerLocked()
	generation := s.generation

	sched.After(s.cfg.InitialGrace, func() {
		s.mu.Lock()
		if generation != s.generation || s.loaded || !s.embedding() {
			s.mu.Unlock()
			return
		}
		extend := s.cfg.FinalGrace - s.cfg.InitialGrace
		if extend <= 0 {
			s.blockLocked(target)
			return
		}
		s.mu.Unlock()

		sched.After(extend, func() {
			s.mu.Lock()
			if generation != s.generation || s.loaded || !s.embedding() {
				s.mu.Unlock()
				return
			}
			s.blockLocked(target)
		})
	})
}

// blockLocked moves to Blocked and releases the lock.
func (s *Slot) blockLocked(target string) {
	s.log.Debug("embed judged blocked",
		zap.String("target", target),
		zap.String("mode", s.state.Mode.String()),
	)

	fromProxy := s.state.Mode == ModeProxied
	s.state.Mode = ModeBlocked
	s.state.EmbedURL = ""
	snap := s.snapshotLocked()

	// The only automatic continuation: a configured fallback proxy
	// after the primary proxy itself failed. Everything else waits for
	// the user.
	if fromProxy && s.cfg.AutoFallback && s.cfg.FallbackBase != "" {
		s.enterModeLocked(ModeFallbackProxied, target)
		snap = s.snapshotLocked()
	}

	s.mu.Unlock()
	s.notify(snap)
}

// embedding reports whether the current mode renders into an element.
func (s *Slot) embedding() bool {
	switch s.state.Mode {
	case ModeDirect, ModeProxied, ModeFallbackProxied, ModeServerSelected:
		return true
	}
	return false
}

// ReportLoad feeds a load-completion signal from the embedding element.
// A load with zero rendered dimensions at the deadline still counts as
// blocked; an accessible empty body does too.
func (s *Slot) ReportLoad(probe Probe) {
	s.mu.Lock()
	if !s.embedding() {
		s.mu.Unlock()
		return
	}
	target := s.state.EmbedURL
	generation := s.generation

	if probe.Width == 0 && probe.Height == 0 {
		// Completion signal with nothing rendered: leave the grace
		// timers running, they will deliver the verdict.
		s.mu.Unlock()
		return
	}
	if probe.Accessible && probe.BodyEmpty {
		s.blockLocked(target)
		return
	}

	s.loaded = true

	// Proxied loads get a delayed content check: a successful network
	// load can still be an in-document "cannot embed" message, and one
	// can also appear after scripts run. The check re-probes when a
	// source is available so it judges the document as it is after the
	// delay, not as it was at load time.
	recheck := probe.Accessible && (probe.BlockText || s.ProbeSource != nil)
	if (s.state.Mode == ModeProxied || s.state.Mode == ModeFallbackProxied) && recheck {
		sched := s.ensureSchedulerLocked()
		sched.After(s.cfg.ContentDelay, func() {
			current := probe
			if s.ProbeSource != nil {
				current = s.ProbeSource()
			}
			s.mu.Lock()
			if generation != s.generation || !s.embedding() {
				s.mu.Unlock()
				return
			}
			if !current.Accessible || !current.BlockText {
				s.mu.Unlock()
				return
			}
			s.blockLocked(target)
		})
	}
	s.mu.Unlock()
}

// SelectServer swaps the embed target to another mirror. Pure state
// transition: no network, extraction state untouched, element remounted
// to avoid a stale-session warning.
func (s *Slot) SelectServer(serverURL string) {
	s.mu.Lock()
	found := false
	for _, option := range s.state.Servers {
		if option.URL == serverURL {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return
	}

	s.cancelWorkLocked()
	s.generation++
	s.state.HasUserChosen = true
	s.state.RemountToken++
	s.enterModeLocked(ModeServerSelected, serverURL)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Choose applies a user decision: retry direct, try the proxy, try the
// fallback proxy, or give up and open externally. External is reachable
// from any state.
func (s *Slot) Choose(mode Mode) {
	s.mu.Lock()
	target := s.state.SourceURL
	if target == "" {
		s.mu.Unlock()
		return
	}

	switch mode {
	case ModeDirect, ModeProxied, ModeExternal:
	case ModeFallbackProxied:
		if s.cfg.FallbackBase == "" {
			s.mu.Unlock()
			return
		}
	default:
		s.mu.Unlock()
		return
	}

	s.cancelWorkLocked()
	s.generation++
	s.state.HasUserChosen = true
	s.state.RemountToken++
	s.enterModeLocked(mode, target)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Close tears the slot down, cancelling all timers and in-flight work.
func (s *Slot) Close() {
	s.mu.Lock()
	s.cancelWorkLocked()
	s.generation++
	s.mu.Unlock()
}

func (s *Slot) ensureSchedulerLocked() *Scheduler {
	if s.sched == nil {
		s.sched = NewScheduler(s.parent)
	}
	return s.sched
}

func (s *Slot) cancelWorkLocked() {
	if s.sched != nil {
		s.sched.cancel()
		s.sched = nil
	}
}

func (s *Slot) notify(snap State) {
	if s.OnChange != nil {
		s.OnChange(snap)
	}
}

// proxied builds the proxy URL for a target.
func proxied(base, target string) string {
	return base + "?url=" + url.QueryEscape(target)
}
