package extract

import (
	"net/url"
	"strings"

	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
)

// FamilyKind selects the strategy set a family runs.
type FamilyKind int

const (
	// FamilyResolve runs authoritative-script, iframe, and manifest scans
	// and returns a single top-ranked target.
	FamilyResolve FamilyKind = iota
	// FamilyServers scans server-button markup and returns mirror options.
	FamilyServers
)

// Family is a recognized class of source sites sharing one extraction
// strategy, gated by a hostname allowlist.
type Family struct {
	Name  string
	Kind  FamilyKind
	Hosts []string
}

// Matches reports whether sourceURL's hostname belongs to this family.
// Subdomains of an allowlisted host match too.
func (f *Family) Matches(sourceURL string) bool {
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range f.Hosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Registry holds the known families plus the shared scan filters.
type Registry struct {
	families        []*Family
	iframeBlocklist []string
	providerHosts   []string
}

// defaultIframeBlocklist rejects ad, social, and tracking iframes that
// would otherwise outrank real players on keyword-poor pages.
var defaultIframeBlocklist = []string{
	"doubleclick",
	"googlesyndication",
	"googletagmanager",
	"google-analytics",
	"adservice",
	"amazon-adsystem",
	"facebook.com",
	"twitter.com",
	"platform.x.com",
	"taboola",
	"outbrain",
	"disqus",
}

// NewRegistry builds the registry with built-in family definitions.
func NewRegistry() *Registry {
	return &Registry{
		families: []*Family{
			{
				Name: "stream",
				Kind: FamilyResolve,
				Hosts: []string{
					"streambtw.com",
					"livetv.sx",
					"daddylive.mp",
				},
			},
			{
				Name: "servers",
				Kind: FamilyServers,
				Hosts: []string{
					"topembed.pw",
					"sportsurge.net",
				},
			},
		},
		iframeBlocklist: defaultIframeBlocklist,
	}
}

// ApplyOverrides replaces host lists and filters from the operator's
// TOML file. Unknown family names are ignored; empty lists keep defaults.
func (r *Registry) ApplyOverrides(overrides *config.FamilyOverrides) {
	if overrides == nil {
		return
	}
	for _, override := range overrides.Families {
		for _, family := range r.families {
			if family.Name == override.Name && len(override.Hosts) > 0 {
				family.Hosts = override.Hosts
			}
		}
	}
	if len(overrides.IframeBlocklist) > 0 {
		r.iframeBlocklist = overrides.IframeBlocklist
	}
	if len(overrides.ProviderHosts) > 0 {
		r.providerHosts = overrides.ProviderHosts
	}
}

// Lookup returns the named family, or nil.
func (r *Registry) Lookup(name string) *Family {
	for _, family := range r.families {
		if family.Name == name {
			return family
		}
	}
	return nil
}

// Names returns the registered family names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for _, family := range r.families {
		names = append(names, family.Name)
	}
	return names
}

// Blocked reports whether candidateURL matches the iframe blocklist.
func (r *Registry) Blocked(candidateURL string) bool {
	lower := strings.ToLower(candidateURL)
	for _, blocked := range r.iframeBlocklist {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}
