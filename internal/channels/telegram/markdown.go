package telegram

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	mdFence          = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*\n)?(.*?)```")
	mdInlineCode     = regexp.MustCompile("`([^`\n]+)`")
	mdBold           = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	mdItalic         = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	mdStrike         = regexp.MustCompile(`~~([^~]+)~~`)
	mdLink           = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	mdHeader         = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
	mdQuote          = regexp.MustCompile(`(?m)^>\s?(.*)$`)
	collapseNewlines = regexp.MustCompile(`\n{3,}`)
)

// renderMarkdownHTML performs a deliberately small Markdown-to-HTML
// conversion covering the subset Telegram's formatting allows. Anything it
// doesn't recognise (including raw HTML already present in the source)
// passes through untouched, to be caught by sanitizeHTMLSubset afterward.
func renderMarkdownHTML(src string) string {
	s := mdFence.ReplaceAllString(src, "<pre><code>$1</code></pre>")
	s = mdInlineCode.ReplaceAllString(s, "<code>$1</code>")
	s = mdHeader.ReplaceAllString(s, "<h3>$2</h3>")
	s = mdQuote.ReplaceAllString(s, "<blockquote>$1</blockquote>")
	s = mdLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = mdBold.ReplaceAllStringFunc(s, func(m string) string {
		g := mdBold.FindStringSubmatch(m)
		text := g[1]
		if text == "" {
			text = g[2]
		}
		return "<b>" + text + "</b>"
	})
	s = mdItalic.ReplaceAllStringFunc(s, func(m string) string {
		g := mdItalic.FindStringSubmatch(m)
		text := g[1]
		if text == "" {
			text = g[2]
		}
		return "<i>" + text + "</i>"
	})
	s = mdStrike.ReplaceAllString(s, "<s>$1</s>")
	return s
}

var (
	allowedTag = map[string]bool{
		"b": true, "strong": true, "i": true, "em": true, "u": true,
		"s": true, "strike": true, "del": true, "code": true, "pre": true,
		"a": true, "blockquote": true,
	}
	unwrapTag = map[string]bool{
		"p": true, "div": true, "span": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"ul": true, "ol": true, "li": true,
	}
	voidDropTag = map[string]bool{"img": true, "hr": true, "br": true}
)

// sanitizeHTMLSubset walks the token stream with an x/net/html tokenizer
// and re-emits only the allowed tag subset: allowedTag is kept verbatim (an
// <a> keeps only its href attribute, every other tag sheds its attributes),
// unwrapTag is replaced with spacing or a bullet, anything else is dropped
// together with its entire subtree.
func sanitizeHTMLSubset(input string) string {
	z := html.NewTokenizer(strings.NewReader(input))
	var b strings.Builder

	dropDepth := 0
	dropTag := ""

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		name := strings.ToLower(tok.Data)

		if dropDepth > 0 {
			switch tt {
			case html.StartTagToken:
				if name == dropTag {
					dropDepth++
				}
			case html.EndTagToken:
				if name == dropTag {
					dropDepth--
				}
			}
			continue
		}

		switch tt {
		case html.TextToken:
			b.WriteString(html.EscapeString(tok.Data))

		case html.StartTagToken, html.SelfClosingTagToken:
			switch {
			case allowedTag[name]:
				b.WriteString(openTagHTML(name, tok))
				if tt == html.SelfClosingTagToken {
					b.WriteString("</" + name + ">")
				}
			case unwrapTag[name]:
				writeUnwrapOpen(&b, name)
			case voidDropTag[name]:
				// no content to preserve
			default:
				if tt == html.StartTagToken {
					dropTag = name
					dropDepth = 1
				}
			}

		case html.EndTagToken:
			switch {
			case allowedTag[name]:
				b.WriteString("</" + name + ">")
			case unwrapTag[name]:
				writeUnwrapClose(&b, name)
			}
		}
	}

	return strings.TrimSpace(collapseNewlines.ReplaceAllString(b.String(), "\n\n"))
}

func openTagHTML(name string, tok html.Token) string {
	if name != "a" {
		return "<" + name + ">"
	}
	href := ""
	for _, attr := range tok.Attr {
		if attr.Key == "href" {
			href = attr.Val
		}
	}
	return `<a href="` + html.EscapeString(href) + `">`
}

func writeUnwrapOpen(b *strings.Builder, name string) {
	switch name {
	case "li":
		b.WriteString("\n• ")
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6":
		b.WriteString("\n")
	}
}

func writeUnwrapClose(b *strings.Builder, name string) {
	switch name {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol":
		b.WriteString("\n")
	}
}

// markdownToTelegramHTML converts Markdown source into the HTML subset
// Telegram's HTML parse mode accepts.
func markdownToTelegramHTML(src string) string {
	return sanitizeHTMLSubset(renderMarkdownHTML(src))
}
