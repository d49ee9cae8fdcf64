package mention

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// <https://example.com|label>, <https://example.com>, <#C123|general>, <mailto:a@b.c|a>
var linkPattern = regexp.MustCompile(`<(#?)([^<>|@!][^<>|]*)(?:\|([^<>]*))?>`)

var slackFileHosts = []string{"files.slack.com", "slack-files.com"}

const slackEdgeDomain = "slack-edge.com"

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".svg":  {},
	".heic": {},
}

var htmlUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// unescape decodes the three entities Slack escapes in message text
func unescape(s string) string {
	return htmlUnescaper.Replace(s)
}

// rewriteLinks converts Slack link markup in a text segment. markdown selects the
// markdown form; otherwise links collapse to their label or bare URL.
func rewriteLinks(text string, markdown bool) string {
	if !strings.Contains(text, "<") {
		return unescape(text)
	}

	out := linkPattern.ReplaceAllStringFunc(text, func(token string) string {
		sub := linkPattern.FindStringSubmatch(token)
		isChannel, target, label := sub[1] == "#", sub[2], sub[3]

		if isChannel {
			if label != "" {
				return "#" + label
			}
			return "#" + target
		}

		if label == "" {
			return target
		}
		if !markdown {
			return label
		}
		if isSlackImage(target, label) {
			return "![" + label + "](" + target + ")"
		}
		return "[" + label + "](" + target + ")"
	})

	return unescape(out)
}

// isSlackImage reports whether target is hosted on a Slack file domain and either the label or
// the URL path carries an image extension
func isSlackImage(target, label string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	if !isSlackFileHost(strings.ToLower(u.Hostname())) {
		return false
	}

	return hasImageExtension(label) || hasImageExtension(u.Path)
}

func isSlackFileHost(host string) bool {
	for _, h := range slackFileHosts {
		if host == h {
			return true
		}
	}
	return host == slackEdgeDomain || strings.HasSuffix(host, "."+slackEdgeDomain)
}

func hasImageExtension(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}
