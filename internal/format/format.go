// Package format renders text for Slack's mrkdwn markup.
//
// Slack reserves three characters in message text: '&', '<' and '>'.
// See https://api.slack.com/reference/surfaces/formatting#escaping.
package format

import (
	"fmt"
	"regexp"
	"strings"
)

// bareAmp matches an '&' that does not already start one of the three
// entities Slack understands.
var bareAmp = regexp.MustCompile(`&(amp;|lt;|gt;)?`)

// Text escapes the Slack control characters in s. Existing &amp;, &lt; and
// &gt; entities are left alone so already-escaped input is not escaped twice.
func Text(s string) string {
	// '&' goes first: the other two replacements produce entities of their own.
	s = bareAmp.ReplaceAllStringFunc(s, func(m string) string {
		if m == "&" {
			return "&amp;"
		}
		return m
	})
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// Link builds a clickable link showing name. The URL itself is not escaped.
func Link(url, name string) string {
	return fmt.Sprintf("<%s|%s>", url, Text(name))
}

// Mention prefixes name with the chat handle when one is known.
func Mention(handle, name string) string {
	name = Text(name)
	if handle == "" {
		return name
	}
	return fmt.Sprintf("<%s> (%s)", Text(handle), name)
}
