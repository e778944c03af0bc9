// Package richtext renders CMS structured text as HTML or plain text.
//
// Structured text is a flat list of blocks (paragraphs, headings, list items,
// images, embeds). Inline formatting is carried as spans whose offsets count
// UTF-16 code units, as emitted by the CMS.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Block types.
const (
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// Span types.
const (
	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// Blocks is a structured text field.
type Blocks []Block

// Block is one structured text node.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
	Label      string      `json:"label,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Copyright  string      `json:"copyright,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	LinkTo     *Link       `json:"linkTo,omitempty"`
	Oembed     *Oembed     `json:"oembed,omitempty"`
}

// Span marks [Start, End) of a block's text with inline formatting.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
	Data  *Link  `json:"data,omitempty"`
}

// Link is the data of a hyperlink span or an image link. Label spans reuse
// it for their label name.
type Link struct {
	LinkType string `json:"link_type,omitempty"` // Web, Document, Media
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	ID       string `json:"id,omitempty"`
	UID      string `json:"uid,omitempty"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Oembed is the payload of an embed block.
type Oembed struct {
	Type         string `json:"type,omitempty"`
	EmbedURL     string `json:"embed_url,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	HTML         string `json:"html,omitempty"`
	Title        string `json:"title,omitempty"`
}

// LinkResolver maps a link to an href. It is only consulted for links to
// CMS documents; web and media links use their URL.
type LinkResolver func(l Link) string

// AsText returns the plain text of blocks, one line per text block.
func AsText(blocks Blocks) string {
	var lines []string
	for _, b := range blocks {
		if b.Text != "" {
			lines = append(lines, b.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// AsHTML renders blocks as an HTML fragment. resolve may be nil.
func AsHTML(blocks Blocks, resolve LinkResolver) string {
	var buf bytes.Buffer
	Render(&buf, blocks, resolve)
	return buf.String()
}

// Component returns a templ.Component that renders blocks as HTML.
func Component(blocks Blocks, resolve LinkResolver) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, blocks, resolve)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Render writes the HTML representation of blocks to buf.
func Render(buf *bytes.Buffer, blocks Blocks, resolve LinkResolver) {
	list := ""
	flushList := func() {
		switch list {
		case ListItem:
			buf.WriteString("</ul>")
		case OListItem:
			buf.WriteString("</ol>")
		}
		list = ""
	}

	for _, b := range blocks {
		if b.Type != list {
			flushList()
		}
		switch b.Type {
		case ListItem, OListItem:
			if list == "" {
				if b.Type == ListItem {
					buf.WriteString("<ul>")
				} else {
					buf.WriteString("<ol>")
				}
				list = b.Type
			}
			buf.WriteString("<li" + labelAttr(b.Label) + ">")
			renderInline(buf, b.Text, b.Spans, resolve)
			buf.WriteString("</li>")
		case Heading1, Heading2, Heading3, Heading4, Heading5, Heading6:
			tag := "h" + b.Type[len(b.Type)-1:]
			buf.WriteString("<" + tag + labelAttr(b.Label) + ">")
			renderInline(buf, b.Text, b.Spans, resolve)
			buf.WriteString("</" + tag + ">")
		case Preformatted:
			buf.WriteString("<pre" + labelAttr(b.Label) + ">")
			renderInline(buf, b.Text, b.Spans, resolve)
			buf.WriteString("</pre>")
		case Image:
			renderImage(buf, b, resolve)
		case Embed:
			renderEmbed(buf, b)
		default:
			buf.WriteString("<p" + labelAttr(b.Label) + ">")
			renderInline(buf, b.Text, b.Spans, resolve)
			buf.WriteString("</p>")
		}
	}
	flushList()
}

func labelAttr(label string) string {
	if label == "" {
		return ""
	}
	return ` class="` + html.EscapeString(label) + `"`
}

func renderImage(buf *bytes.Buffer, b Block, resolve LinkResolver) {
	src := SafeURL(b.URL)
	if src == "" {
		return
	}
	img := `<img src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"`
	if b.Copyright != "" {
		img += ` title="` + html.EscapeString(b.Copyright) + `"`
	}
	if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
		img += ` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`
	}
	img += ` loading="lazy" decoding="async" />`

	buf.WriteString(`<p class="block-img">`)
	if b.LinkTo != nil {
		if href := linkHref(*b.LinkTo, resolve); href != "" {
			buf.WriteString(`<a href="` + href + `"` + targetAttrs(*b.LinkTo) + `>` + img + `</a>`)
			buf.WriteString("</p>")
			return
		}
	}
	buf.WriteString(img)
	buf.WriteString("</p>")
}

// renderEmbed writes the provider's oEmbed markup as-is; it comes from the
// CMS, not from visitors.
func renderEmbed(buf *bytes.Buffer, b Block) {
	if b.Oembed == nil || b.Oembed.HTML == "" {
		return
	}
	buf.WriteString(`<div data-oembed="` + html.EscapeString(b.Oembed.EmbedURL) +
		`" data-oembed-type="` + html.EscapeString(b.Oembed.Type) +
		`" data-oembed-provider="` + html.EscapeString(strings.ToLower(b.Oembed.ProviderName)) + `">`)
	buf.WriteString(b.Oembed.HTML)
	buf.WriteString("</div>")
}

type indexedSpan struct {
	Span
	idx   int
	close string
}

// renderInline writes text with its spans applied. Overlapping spans are
// closed and reopened so the output is always well nested.
func renderInline(buf *bytes.Buffer, text string, spans []Span, resolve LinkResolver) {
	units := utf16.Encode([]rune(text))
	n := len(units)

	var valid []indexedSpan
	points := map[int]struct{}{0: {}, n: {}}
	for i, s := range spans {
		start, end := clamp(s.Start, 0, n), clamp(s.End, 0, n)
		if start >= end {
			continue
		}
		s.Start, s.End = start, end
		valid = append(valid, indexedSpan{Span: s, idx: i})
		points[start] = struct{}{}
		points[end] = struct{}{}
	}
	bounds := make([]int, 0, len(points))
	for p := range points {
		bounds = append(bounds, p)
	}
	sort.Ints(bounds)

	var open []indexedSpan
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]

		var active []indexedSpan
		for _, s := range valid {
			if s.Start <= lo && s.End >= hi {
				active = append(active, s)
			}
		}
		sort.SliceStable(active, func(a, b int) bool {
			if active[a].Start != active[b].Start {
				return active[a].Start < active[b].Start
			}
			if active[a].End != active[b].End {
				return active[a].End > active[b].End
			}
			return active[a].idx < active[b].idx
		})

		keep := 0
		for keep < len(open) && keep < len(active) && open[keep].idx == active[keep].idx {
			keep++
		}
		for j := len(open) - 1; j >= keep; j-- {
			buf.WriteString(open[j].close)
		}
		open = open[:keep]
		for _, s := range active[keep:] {
			var start string
			start, s.close = spanTags(s.Span, resolve)
			buf.WriteString(start)
			open = append(open, s)
		}

		segment := string(utf16.Decode(units[lo:hi]))
		buf.WriteString(strings.ReplaceAll(html.EscapeString(segment), "\n", "<br />"))
	}
	for j := len(open) - 1; j >= 0; j-- {
		buf.WriteString(open[j].close)
	}
}

// spanTags returns the opening and closing markup for s.
func spanTags(s Span, resolve LinkResolver) (string, string) {
	switch s.Type {
	case Strong:
		return "<strong>", "</strong>"
	case Em:
		return "<em>", "</em>"
	case Hyperlink:
		if s.Data != nil {
			if href := linkHref(*s.Data, resolve); href != "" {
				return `<a href="` + href + `"` + targetAttrs(*s.Data) + `>`, "</a>"
			}
		}
	case Label:
		if s.Data != nil && s.Data.Label != "" {
			return `<span class="` + html.EscapeString(s.Data.Label) + `">`, "</span>"
		}
	}
	return "<span>", "</span>"
}

func linkHref(l Link, resolve LinkResolver) string {
	if l.LinkType == "Document" {
		if resolve == nil {
			return ""
		}
		return SafeURL(resolve(l))
	}
	return SafeURL(l.URL)
}

func targetAttrs(l Link) string {
	if l.Target == "" {
		return ""
	}
	return ` target="` + html.EscapeString(l.Target) + `" rel="noopener noreferrer"`
}

// SafeURL returns raw HTML-escaped if it is a relative path, a fragment or an
// http(s)/mailto/tel URL, and "" otherwise.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
