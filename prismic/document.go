package prismic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used by the CMS, e.g.
// "2021-03-15T19:25:28+0000".
const TimeLayout = "2006-01-02T15:04:05-0700"

// Time is a CMS timestamp.
type Time struct {
	time.Time
}

// UnmarshalJSON accepts the CMS layout and RFC 3339.
func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{TimeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("prismic: invalid timestamp %q", s)
}

// MarshalJSON writes t in the CMS layout.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimeLayout))
}

// Document is a single CMS document. Data holds the custom type fields and is
// decoded by the caller.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid,omitempty"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate *Time           `json:"first_publication_date"`
	LastPublicationDate  *Time           `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// DecodeData unmarshals the document's data into v.
func (d Document) DecodeData(v any) error {
	if len(d.Data) == 0 {
		return fmt.Errorf("prismic: document %s has no data", d.ID)
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("prismic: decode data of %s: %w", d.ID, err)
	}
	return nil
}

// SearchResponse is one page of a documents search. NextPage is nil on the
// last page; its value is an opaque cursor for FetchPage.
type SearchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Cursor returns the next page cursor, or "" when there is none.
func (r *SearchResponse) Cursor() string {
	if r == nil || r.NextPage == nil {
		return ""
	}
	return *r.NextPage
}

// Ref is a content release reference.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

// API is the repository description returned by the endpoint root.
type API struct {
	Refs []Ref `json:"refs"`
}

// MasterRef returns the master ref, or "" if none is listed.
func (a API) MasterRef() string {
	for _, r := range a.Refs {
		if r.IsMasterRef {
			return r.Ref
		}
	}
	return ""
}
