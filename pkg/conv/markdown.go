// Package conv converts model Markdown into the HTML subset Telegram
// accepts, used as the delivery fallback when MarkdownV2 is rejected.
package conv

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags | html.HrefTargetBlank
	tgPolicy   = bluemonday.NewPolicy()
	textPolicy = bluemonday.StrictPolicy()
)

func init() {
	// Allowed tags https://core.telegram.org/bots/api#html-style
	tgPolicy.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	tgPolicy.AllowAttrs("href").OnElements("a")
	tgPolicy.AllowAttrs("class").OnElements("code")
}

// unescapeRe matches a backslash followed by any MarkdownV2 special
// character. Undoing the escapes restores the renderable Markdown.
var unescapeRe = regexp.MustCompile("\\\\([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")

// MarkdownToTelegramHTML renders Markdown and strips everything outside
// Telegram's HTML whitelist.
func MarkdownToTelegramHTML(md string) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse([]byte(md)), renderer)

	return string(tgPolicy.SanitizeBytes(unsafeHTML))
}

// EscapedMarkdownToTelegramHTML converts text that already carries
// MarkdownV2 backslash escapes. The escapes are removed first so the
// renderer sees the original Markdown.
func EscapedMarkdownToTelegramHTML(text string) string {
	return MarkdownToTelegramHTML(unescapeRe.ReplaceAllString(text, "$1"))
}

// PlainText drops all markup, the last resort when both MarkdownV2 and
// HTML delivery fail.
func PlainText(text string) string {
	unescaped := unescapeRe.ReplaceAllString(text, "$1")
	stripped := textPolicy.Sanitize(MarkdownToTelegramHTML(unescaped))
	return strings.TrimSpace(stdhtml.UnescapeString(stripped))
}
