// Package prismictest provides an in-memory CMS server for tests.
package prismictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/richtext"
)

// MasterRef is the ref advertised by the server.
const MasterRef = "master-ref"

var (
	reUID  = regexp.MustCompile(`at\(my\.([\w-]+)\.uid,"((?:[^"\\]|\\.)*)"\)`)
	reType = regexp.MustCompile(`at\(document\.type,"([^"]*)"\)`)
)

// Section is a post section.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// PostDocument builds a post document as the CMS would return it.
func PostDocument(uid, title, subtitle, author string, published time.Time, sections ...Section) prismic.Document {
	data := map[string]any{
		"title":    title,
		"subtitle": subtitle,
		"author":   author,
		"banner":   map[string]string{"url": "https://images.example/" + uid + ".png"},
		"content":  sections,
	}
	raw, _ := json.Marshal(data)
	var first *prismic.Time
	if !published.IsZero() {
		first = &prismic.Time{Time: published}
	}
	return prismic.Document{
		ID:                   "id-" + uid,
		UID:                  uid,
		Type:                 "posts",
		FirstPublicationDate: first,
		Data:                 raw,
	}
}

// Paragraph returns a body with a single paragraph.
func Paragraph(text string) richtext.Blocks {
	return richtext.Blocks{{Type: richtext.Paragraph, Text: text}}
}

// Server serves documents with cursor pagination.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     []prismic.Document
	failNext int
	searches int
	cursors  []string
}

// NewServer starts a server holding docs. Close it when done.
func NewServer(docs ...prismic.Document) *Server {
	s := &Server{docs: docs}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", s.handleRoot)
	mux.HandleFunc("/api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	return s
}

// Endpoint is the API root to configure clients with.
func (s *Server) Endpoint() string {
	return s.URL + "/api/v2"
}

// SetDocuments replaces the served documents.
func (s *Server) SetDocuments(docs ...prismic.Document) {
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
}

// FailNext makes the next n search requests answer 500.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// Searches returns the number of search requests received.
func (s *Server) Searches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// Cursors returns the page numbers requested through next_page cursors, in
// order.
func (s *Server) Cursors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cursors...)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, prismic.API{Refs: []prismic.Ref{
		{ID: "master", Ref: MasterRef, Label: "Master", IsMasterRef: true},
	}})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.searches++
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	docs := append([]prismic.Document(nil), s.docs...)
	q := r.URL.Query()
	if q.Get("page") != "" {
		s.cursors = append(s.cursors, q.Get("page"))
	}
	s.mu.Unlock()

	if q.Get("ref") != MasterRef {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	pred := q.Get("q")
	var matched []prismic.Document
	if m := reUID.FindStringSubmatch(pred); m != nil {
		uid, _ := strconv.Unquote(`"` + m[2] + `"`)
		for _, d := range docs {
			if d.Type == m[1] && d.UID == uid {
				matched = append(matched, d)
			}
		}
	} else if m := reType.FindStringSubmatch(pred); m != nil {
		for _, d := range docs {
			if d.Type == m[1] {
				matched = append(matched, d)
			}
		}
	} else {
		matched = docs
	}

	pageSize := atoiDefault(q.Get("pageSize"), 20)
	page := atoiDefault(q.Get("page"), 1)
	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	resp := prismic.SearchResponse{
		Page:             page,
		ResultsPerPage:   pageSize,
		ResultsSize:      end - start,
		TotalResultsSize: total,
		TotalPages:       totalPages,
		Results:          matched[start:end],
	}
	if end < total {
		next := url.Values{}
		for k, v := range q {
			next[k] = v
		}
		next.Set("page", strconv.Itoa(page+1))
		cursor := s.URL + "/api/v2/documents/search?" + next.Encode()
		resp.NextPage = &cursor
	}
	writeJSON(w, resp)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// WithBanner returns doc with its banner url replaced.
func WithBanner(doc prismic.Document, bannerURL string) prismic.Document {
	var data map[string]any
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return doc
	}
	data["banner"] = map[string]string{"url": bannerURL}
	raw, err := json.Marshal(data)
	if err != nil {
		return doc
	}
	doc.Data = raw
	return doc
}
