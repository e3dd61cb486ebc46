package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// serverURLAttrs are checked in order on each server button.
var serverURLAttrs = []string{"data-url", "data-stream-url", "data-embed", "href"}

// scanServers walks server-button markup and builds the mirror option
// list. Buttons are anchors or buttons carrying a stream URL attribute,
// or anything with a server-ish class doing the same.
func scanServers(root *html.Node, base *url.URL) []ServerOption {
	nodes := htmlquery.Find(root,
		`//*[self::a or self::button or self::div][@data-url or @data-stream-url or @data-embed or contains(@class,'server')]`)

	var options []ServerOption
	seen := make(map[string]bool)
	haveDefault := false

	for _, node := range nodes {
		optionURL := serverURL(node, base)
		if optionURL == "" || seen[optionURL] {
			continue
		}
		seen[optionURL] = true

		name := serverName(node, len(options)+1)
		active := serverActive(node)

		// First-one-wins when the page marks none or several as active.
		isDefault := active && !haveDefault
		if isDefault {
			haveDefault = true
		}

		options = append(options, ServerOption{
			Name:      name,
			URL:       optionURL,
			IsDefault: isDefault,
		})
	}

	if len(options) > 0 && !haveDefault {
		options[0].IsDefault = true
	}

	return options
}

func serverURL(node *html.Node, base *url.URL) string {
	for _, attr := range serverURLAttrs {
		raw := htmlquery.SelectAttr(node, attr)
		if raw == "" || raw == "#" || strings.HasPrefix(raw, "javascript:") {
			continue
		}
		if resolved := absolutize(raw, base); resolved != "" {
			return resolved
		}
	}
	return ""
}

func serverName(node *html.Node, ordinal int) string {
	if name := strings.TrimSpace(htmlquery.SelectAttr(node, "data-name")); name != "" {
		return name
	}
	if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
		return collapseSpaces(text)
	}
	return "Server " + strconv.Itoa(ordinal)
}

func serverActive(node *html.Node) bool {
	class := strings.ToLower(htmlquery.SelectAttr(node, "class"))
	for _, field := range strings.Fields(class) {
		if field == "active" || field == "selected" || field == "current" {
			return true
		}
	}
	active := strings.ToLower(htmlquery.SelectAttr(node, "data-active"))
	return active == "true" || active == "1"
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
