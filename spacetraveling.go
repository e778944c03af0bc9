// Package spacetraveling serves a blog whose posts live in a headless CMS.
//
// The home page lists the newest posts and grows one CMS page at a time
// through a "load more" button. Each visitor's listing is kept on the server
// under a random id, so the CMS pagination cursor never reaches the browser.
// Post pages, banners, the sitemap and the RSS feed are rendered from the same
// content source behind a TTL cache.
//
// Users provide templ components through ViewFuncs; the views package ships a
// default set.
package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/prismic"
)

// ViewFuncs holds the templ components the App calls when rendering pages.
type ViewFuncs struct {
	// Home is the full listing page. moreURL is empty when the listing is
	// exhausted.
	Home func(posts []content.PostSummary, moreURL string, meta PageMeta) templ.Component
	// PostList is the fragment returned to the load-more script: the new
	// post cards followed by a fresh button, or none when exhausted.
	PostList    func(posts []content.PostSummary, moreURL string) templ.Component
	Post        func(post content.PostDetail, meta PageMeta) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App is the central spacetraveling application. It wires together the
// content source, cache, listing registry, handlers and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Content  ContentSource
	Cache    *PostCache
	Listings *ListingRegistry
	Views    ViewFuncs

	logger       *slog.Logger
	httpClient   *http.Client
	moreLimiter  *RequestLimiter
	banners      bannerCache
	customRoutes []func(*App)
	staticDir    string

	setupOnce sync.Once
	setupErr  error
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
		Views:  views,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.CMS.Timeout}
	}
	return a
}

// NewContentSource builds the CMS-backed content source described by cfg.
func NewContentSource(cfg SiteConfig, logger *slog.Logger) *content.Repository {
	cfg.setDefaults()
	client := prismic.New(prismic.Config{
		Endpoint:          cfg.CMS.Endpoint,
		AccessToken:       cfg.CMS.AccessToken,
		Timeout:           cfg.CMS.Timeout,
		RequestsPerSecond: cfg.CMS.RequestsPerSecond,
		MaxAttempts:       cfg.CMS.Retry.MaxAttempts,
		InitialBackoff:    cfg.CMS.Retry.InitialBackoff,
		MaxBackoff:        cfg.CMS.Retry.MaxBackoff,
	}, logger)
	return content.NewRepository(client, content.Options{
		DocumentType: cfg.CMS.DocumentType,
		PageSize:     cfg.CMS.PageSize,
		Orderings:    cfg.CMS.Orderings,
	}, logger)
}

// Setup builds the cache, listing registry, middleware and routes. Start
// calls it; tests call it directly and drive a.Echo with httptest. It runs
// only once.
func (a *App) Setup() error {
	a.setupOnce.Do(func() {
		a.setupErr = a.setup()
	})
	return a.setupErr
}

func (a *App) setup() error {
	if err := a.Views.validate(); err != nil {
		return err
	}
	if a.Content == nil {
		if err := a.Config.Validate(); err != nil {
			return err
		}
		a.Content = NewContentSource(a.Config, a.logger)
	}

	a.Cache = NewPostCache(a.Content, a.Config.PostCacheTTL)
	a.Listings = NewListingRegistry(a.Config.ListingTTL, a.Config.MaxListings)
	a.moreLimiter = NewRequestLimiter(a.Config.LoadMoreLimit, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (v ViewFuncs) validate() error {
	switch {
	case v.Home == nil:
		return errors.New("spacetraveling: ViewFuncs.Home is required")
	case v.PostList == nil:
		return errors.New("spacetraveling: ViewFuncs.PostList is required")
	case v.Post == nil:
		return errors.New("spacetraveling: ViewFuncs.Post is required")
	case v.NotFound == nil:
		return errors.New("spacetraveling: ViewFuncs.NotFound is required")
	case v.ServerError == nil:
		return errors.New("spacetraveling: ViewFuncs.ServerError is required")
	}
	return nil
}

// Start sets the App up and serves until ctx is canceled, then shuts the
// server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.Config.Addr, "url", a.Config.URL)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("spacetraveling: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("spacetraveling: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets (styles.css, loadmore.js) take precedence over the
	// user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS))))
	e.GET("/public/styles.css", embeddedHandler)
	e.GET("/public/loadmore.js", embeddedHandler)
	if a.staticDir != "" {
		e.Static("/public", a.staticDir)
	}
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleMore)
	e.GET("/post/:uid/", a.handlePost)
	e.GET("/banner/:uid/", a.handleBanner)
}

// Close stops the background goroutines. Call this when the app is shutting
// down.
func (a *App) Close() error {
	if a.Listings != nil {
		a.Listings.Stop()
	}
	if a.moreLimiter != nil {
		a.moreLimiter.Stop()
	}
	return nil
}
