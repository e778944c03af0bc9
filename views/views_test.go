package views

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/richtext"
)

var testConfig = spacetraveling.SiteConfig{
	Name: "spacetraveling",
	URL:  "https://blog.example",
}

func renderDoc(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func published() *time.Time {
	t := time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC)
	return &t
}

func TestHome(t *testing.T) {
	v := Default(testConfig)
	posts := []content.PostSummary{
		{UID: "como-utilizar-hooks", Title: "Como utilizar Hooks", Subtitle: "Pensando em sincronização", Author: "Joseph Oliveira", FirstPublicationDate: published()},
		{Title: "Sem uid", Author: "Danilo Vieira"},
	}
	meta := spacetraveling.PageMeta{Title: "spacetraveling", URL: "https://blog.example", JSONLD: `{"@type":"WebSite"}`}

	doc := renderDoc(t, v.Home(posts, "/posts/more/?listing=abc", meta))

	if got := doc.Find("title").Text(); got != "spacetraveling" {
		t.Errorf("title = %q", got)
	}
	cards := doc.Find(".post-card")
	if cards.Length() != 2 {
		t.Fatalf("cards = %d, want 2", cards.Length())
	}
	first := cards.First()
	if href, _ := first.Attr("href"); href != "/post/como-utilizar-hooks/" {
		t.Errorf("href = %q", href)
	}
	if got := first.Find("h2").Text(); got != "Como utilizar Hooks" {
		t.Errorf("card title = %q", got)
	}
	if got := first.Find("time").Text(); got != "15 mar 2021" {
		t.Errorf("card date = %q", got)
	}
	if goquery.NodeName(cards.Last()) != "div" {
		t.Errorf("post without uid must not be a link")
	}

	more := doc.Find("[data-more-url]")
	if more.Length() != 1 {
		t.Fatalf("load-more buttons = %d, want 1", more.Length())
	}
	if url, _ := more.Attr("data-more-url"); url != "/posts/more/?listing=abc" {
		t.Errorf("data-more-url = %q", url)
	}
	if got := strings.TrimSpace(more.Text()); got != "Carregar mais posts" {
		t.Errorf("button text = %q", got)
	}
	if got := doc.Find(`script[type="application/ld+json"]`).Text(); got != `{"@type":"WebSite"}` {
		t.Errorf("json-ld = %q", got)
	}
}

func TestHomeExhausted(t *testing.T) {
	v := Default(testConfig)
	doc := renderDoc(t, v.Home([]content.PostSummary{{UID: "a", Title: "A"}}, "", spacetraveling.PageMeta{}))
	if n := doc.Find("[data-more-url]").Length(); n != 0 {
		t.Fatalf("load-more button rendered for an exhausted listing")
	}
}

func TestPostList(t *testing.T) {
	v := Default(testConfig)
	posts := []content.PostSummary{{UID: "b", Title: "B"}, {UID: "c", Title: "C"}}

	var b strings.Builder
	if err := v.PostList(posts, "/posts/more/?listing=abc").Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if strings.Contains(out, "<html") {
		t.Fatalf("fragment must not contain the layout")
	}
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(out))
	if n := doc.Find(".post-card").Length(); n != 2 {
		t.Fatalf("cards = %d, want 2", n)
	}
	if n := doc.Find("[data-more-container]").Length(); n != 1 {
		t.Fatalf("more containers = %d, want 1", n)
	}
}

func TestPost(t *testing.T) {
	v := Default(testConfig)
	post := content.PostDetail{
		PostSummary: content.PostSummary{
			UID:                  "como-utilizar-hooks",
			Title:                "Como utilizar Hooks",
			Author:               "Joseph Oliveira",
			FirstPublicationDate: published(),
		},
		BannerURL: "https://images.example/banner.png",
		Content: []content.Section{
			{Heading: "Proin et varius", Body: richtext.Blocks{
				{Type: richtext.Paragraph, Text: "Nullam dolor sapien", Spans: []richtext.Span{{Start: 0, End: 6, Type: "strong"}}},
			}},
			{Heading: "<script>", Body: richtext.Blocks{{Type: richtext.Paragraph, Text: "<b>x</b>"}}},
		},
	}

	doc := renderDoc(t, v.Post(post, spacetraveling.PageMeta{Title: "Como utilizar Hooks | spacetraveling", OGType: "article"}))

	if got := doc.Find("article h1").Text(); got != "Como utilizar Hooks" {
		t.Errorf("h1 = %q", got)
	}
	if src, _ := doc.Find(".banner img").Attr("src"); src != "/banner/como-utilizar-hooks/" {
		t.Errorf("banner src = %q", src)
	}
	if got := doc.Find(".reading-time").Text(); got != "1 min" {
		t.Errorf("reading time = %q", got)
	}
	if got := doc.Find("article time").Text(); got != "15 mar 2021" {
		t.Errorf("date = %q", got)
	}
	sections := doc.Find("article section")
	if sections.Length() != 2 {
		t.Fatalf("sections = %d, want 2", sections.Length())
	}
	if got := sections.First().Find(".body strong").Text(); got != "Nullam" {
		t.Errorf("strong span = %q", got)
	}
	if got := sections.Last().Find("h2").Text(); got != "<script>" {
		t.Errorf("heading not escaped: %q", got)
	}
	if n := sections.Last().Find(".body b").Length(); n != 0 {
		t.Errorf("rich text was not escaped")
	}
	if got, _ := doc.Find(`meta[property="og:type"]`).Attr("content"); got != "article" {
		t.Errorf("og:type = %q", got)
	}
}

func TestPostWithoutBanner(t *testing.T) {
	v := Default(testConfig)
	doc := renderDoc(t, v.Post(content.PostDetail{PostSummary: content.PostSummary{UID: "x", Title: "X"}}, spacetraveling.PageMeta{}))
	if n := doc.Find(".banner").Length(); n != 0 {
		t.Fatalf("banner rendered without a banner url")
	}
	if got := doc.Find(".reading-time").Text(); got != "0 min" {
		t.Errorf("reading time = %q", got)
	}
}

func TestErrorPages(t *testing.T) {
	v := Default(testConfig)
	tests := []struct {
		name  string
		cmp   templ.Component
		title string
	}{
		{"not found", v.NotFound(), "Não encontrado | spacetraveling"},
		{"server error", v.ServerError(), "Erro | spacetraveling"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := renderDoc(t, tt.cmp)
			if got := doc.Find("title").Text(); got != tt.title {
				t.Errorf("title = %q, want %q", got, tt.title)
			}
			if n := doc.Find(".error-page").Length(); n != 1 {
				t.Errorf("error page body missing")
			}
		})
	}
}
