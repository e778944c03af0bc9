package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
	"github.com/eringen/spacetraveling/prismic"
)

func (a *App) homeMeta() PageMeta {
	return PageMeta{
		Title:       a.Config.Name,
		Description: a.Config.Description,
		URL:         BuildURL(a.Config.URL),
		OGType:      "website",
		JSONLD:      WebsiteJsonLD(a.Config),
	}
}

func moreURL(id string, l *Listing) string {
	if !l.HasMore() {
		return ""
	}
	return MorePath(id)
}

// newListing seeds a listing with page and registers it when more pages
// remain. The returned id is empty for a single-page listing.
func (a *App) newListing(page paginate.Page[content.PostSummary]) (string, *Listing) {
	l := paginate.New[content.PostSummary](a.Content, page.Results, page.NextCursor)
	if !l.HasMore() {
		return "", l
	}
	return a.Listings.Create(l), l
}

func (a *App) handleHome(c echo.Context) error {
	// Without JavaScript the load-more link redirects here with the listing
	// id, and the whole accumulated listing is rendered.
	if id := c.QueryParam("listing"); id != "" {
		if l, err := a.Listings.Get(id); err == nil {
			return Render(c, a.Views.Home(l.Posts(), moreURL(id, l), a.homeMeta()))
		}
	}

	page, err := a.Cache.FirstPage(c.Request().Context())
	if err != nil {
		return fmt.Errorf("load first page: %w", err)
	}
	id, l := a.newListing(page)
	return Render(c, a.Views.Home(l.Posts(), moreURL(id, l), a.homeMeta()))
}

func (a *App) handleMore(c echo.Context) error {
	if !a.moreLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	}

	id := c.QueryParam("listing")
	l, err := a.Listings.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusGone, "listing expired, reload the page").SetInternal(err)
	}

	added, err := l.LoadMore(c.Request().Context())
	switch {
	case errors.Is(err, paginate.ErrInFlight):
		return echo.NewHTTPError(http.StatusConflict, "already loading").SetInternal(err)
	case err != nil:
		a.logger.Warn("load more failed", "listing", id, "loaded", l.Len(), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "could not load more posts").SetInternal(err)
	}

	a.logger.Debug("listing extended", "listing", id, "added", len(added), "total", l.Len(), "has_more", l.HasMore())

	if !isHTMX(c) {
		return c.Redirect(http.StatusSeeOther, "/?listing="+url.QueryEscape(id))
	}
	return Render(c, a.Views.PostList(added, moreURL(id, l)))
}

func (a *App) handlePost(c echo.Context) error {
	uid := c.Param("uid")
	post, err := a.Cache.Post(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return fmt.Errorf("load post %q: %w", uid, err)
	}

	meta := PageMeta{
		Title:       post.Title + " | " + a.Config.Name,
		Description: post.Subtitle,
		URL:         PostURL(a.Config.URL, post.UID),
		OGType:      "article",
		JSONLD:      BlogPostingJsonLD(post, a.Config),
	}
	if post.BannerURL != "" {
		meta.Image = BuildURL(a.Config.URL, "banner", post.UID)
	}
	return Render(c, a.Views.Post(post, meta))
}

// allPosts follows the listing from the first page, up to FeedMaxPages
// further pages.
func (a *App) allPosts(ctx context.Context) ([]content.PostSummary, error) {
	page, err := a.Cache.FirstPage(ctx)
	if err != nil {
		return nil, err
	}
	l := paginate.New[content.PostSummary](a.Content, page.Results, page.NextCursor)
	pages, err := paginate.Drain(ctx, l, a.Config.FeedMaxPages)
	if err != nil {
		return nil, err
	}
	if l.HasMore() {
		a.logger.Warn("listing truncated", "pages", pages+1, "posts", l.Len())
	}
	return l.Posts(), nil
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nAllow: /\n\nSitemap: " + strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	} else if errors.Is(err, prismic.ErrFetchFailed) {
		code = http.StatusBadGateway
	}

	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	if code >= 500 {
		a.logger.Error("server error",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", code,
			"error", err,
		)
		if isHTMX(c) {
			_ = c.String(code, http.StatusText(code))
			return
		}
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
