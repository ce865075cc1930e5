package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// ToWidgetHTML converts a model reply from markdown to the restricted HTML
// the embed widget renders
func ToWidgetHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	return cleanHTMLForWidget(html)
}

// cleanHTMLForWidget strips HTML down to the tags the widget supports
func cleanHTMLForWidget(html string) string {
	// Normalize code blocks before the tag filter
	html = regexp.MustCompile(`<pre><code(?: class="[^"]*")?>`).ReplaceAllString(html, "<pre>")
	html = strings.ReplaceAll(html, "</code></pre>", "</pre>")

	supportedTags := []string{"p", "b", "strong", "i", "em", "u", "s", "code", "pre", "a", "br", "ul", "ol", "li", "blockquote"}
	tagPattern := `</?([a-zA-Z]+)(?:\s[^>]*)?>`

	html = regexp.MustCompile(tagPattern).ReplaceAllStringFunc(html, func(match string) string {
		tagMatch := regexp.MustCompile(`</?([a-zA-Z]+)`).FindStringSubmatch(match)
		if len(tagMatch) > 1 {
			tagName := strings.ToLower(tagMatch[1])
			for _, supported := range supportedTags {
				if tagName == supported {
					// Drop attributes except the href of links
					if tagName == "a" && !strings.HasPrefix(match, "</") {
						if href := regexp.MustCompile(`href="[^"]*"`).FindString(match); href != "" {
							return "<a " + href + ">"
						}
						return "<a>"
					}
					return match
				}
			}
		}
		return ""
	})

	// Collapse runs of blank lines left by removed tags
	html = regexp.MustCompile(`\n{3,}`).ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
