package report

import (
	"fmt"
	"strings"
)

// Format is the markup dialect of a messaging surface.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkdownV2
	FormatSlack
)

func (f Format) String() string {
	switch f {
	case FormatMarkdownV2:
		return "markdownv2"
	case FormatSlack:
		return "slack"
	default:
		return "plain"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "text":
		return FormatPlain, nil
	case "markdownv2", "markdown", "telegram":
		return FormatMarkdownV2, nil
	case "slack", "mrkdwn":
		return FormatSlack, nil
	}
	return FormatPlain, fmt.Errorf("unknown format %q", s)
}

// markdownV2Special lists the characters MarkdownV2 requires to be escaped
// in literal text.
const markdownV2Special = "_*[]()~`>#+-=|{}.!"

var markdownV2Replacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(markdownV2Special))
	for _, r := range markdownV2Special {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdownV2 prefixes every MarkdownV2 special character with a single
// backslash. Other characters pass through unchanged.
func EscapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}

// UnescapeMarkdownV2 drops the backslash in front of escaped characters so a
// MarkdownV2 chunk can be sent as plain text. Markup such as link brackets is
// left in place.
func UnescapeMarkdownV2(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(markdownV2Special+`\`, s[i+1]) >= 0 {
			i++
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}

var slackReplacer =strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeSlack encodes the three characters Slack mrkdwn reserves for
// control sequences.
func EscapeSlack(s string) string {
	return slackReplacer.Replace(s)
}

// markup renders literal text, links and emphasis for one Format.
type markup struct {
	text func(string) string
	link func(text, url string) string
	bold func(string) string
}

func markupFor(f Format) markup {
	switch f {
	case FormatMarkdownV2:
		return markup{
			text: EscapeMarkdownV2,
			link: func(text, url string) string {
				return "[" + EscapeMarkdownV2(text) + "](" + EscapeMarkdownV2(url) + ")"
			},
			bold: func(s string) string { return "*" + s + "*" },
		}
	case FormatSlack:
		return markup{
			text: EscapeSlack,
			link: func(text, url string) string {
				return "<" + EscapeSlack(url) + "|" + EscapeSlack(text) + ">"
			},
			bold: func(s string) string { return "*" + s + "*" },
		}
	default:
		return markup{
			text: func(s string) string { return s },
			link: func(text, url string) string { return text + " (" + url + ")" },
			bold: func(s string) string { return s },
		}
	}
}
