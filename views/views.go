// Package views provides the default templates of a spacetraveling site.
package views

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/readtime"
	"github.com/eringen/spacetraveling/richtext"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date":     spacetraveling.FormatDate,
	"iso":      isoDate,
	"readtime": readtime.Format,
	"banner":   spacetraveling.BannerPath,
	"richtext": renderRichText,
	"jsonld":   func(s string) template.JS { return template.JS(s) },
}

var (
	base      = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	homePage  = page("home.html")
	postPage  = page("post.html")
	notFound  = page("notfound.html")
	errorPage = page("servererror.html")
)

func page(file string) *template.Template {
	return template.Must(template.Must(base.Clone()).ParseFS(templateFS, "templates/"+file))
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func renderRichText(body richtext.Blocks) (template.HTML, error) {
	var buf bytes.Buffer
	if err := richtext.Component(body, content.ResolveLink).Render(context.Background(), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

type data struct {
	Site    spacetraveling.SiteConfig
	Meta    spacetraveling.PageMeta
	Posts   []content.PostSummary
	MoreURL string
	Post    content.PostDetail
}

func render(t *template.Template, name string, d data) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, name, d)
	})
}

// Default returns the default views for cfg.
func Default(cfg spacetraveling.SiteConfig) spacetraveling.ViewFuncs {
	return spacetraveling.ViewFuncs{
		Home: func(posts []content.PostSummary, moreURL string, meta spacetraveling.PageMeta) templ.Component {
			return render(homePage, "layout", data{Site: cfg, Meta: meta, Posts: posts, MoreURL: moreURL})
		},
		PostList: func(posts []content.PostSummary, moreURL string) templ.Component {
			return render(homePage, "cards", data{Site: cfg, Posts: posts, MoreURL: moreURL})
		},
		Post: func(post content.PostDetail, meta spacetraveling.PageMeta) templ.Component {
			return render(postPage, "layout", data{Site: cfg, Meta: meta, Post: post})
		},
		NotFound: func() templ.Component {
			meta := spacetraveling.PageMeta{Title: "Não encontrado | " + cfg.Name}
			return render(notFound, "layout", data{Site: cfg, Meta: meta})
		},
		ServerError: func() templ.Component {
			meta := spacetraveling.PageMeta{Title: "Erro | " + cfg.Name}
			return render(errorPage, "layout", data{Site: cfg, Meta: meta})
		},
	}
}
