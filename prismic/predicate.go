package prismic

import (
	"net/url"
	"strconv"
	"strings"
)

// Predicate is a single query condition such as at(document.type,"posts").
type Predicate struct {
	name   string
	path   string
	values []string
	list   bool
}

// At matches documents whose path equals value.
func At(path, value string) Predicate {
	return Predicate{name: "at", path: path, values: []string{value}}
}

// Any matches documents whose path equals any of values.
func Any(path string, values ...string) Predicate {
	return Predicate{name: "any", path: path, values: values, list: true}
}

// Fulltext matches documents whose path contains the given terms.
func Fulltext(path, terms string) Predicate {
	return Predicate{name: "fulltext", path: path, values: []string{terms}}
}

// String renders p in the CMS query syntax.
func (p Predicate) String() string {
	quoted := make([]string, len(p.values))
	for i, v := range p.values {
		quoted[i] = strconv.Quote(v)
	}
	arg := strings.Join(quoted, ",")
	if p.list {
		arg = "[" + arg + "]"
	}
	return "[" + p.name + "(" + p.path + "," + arg + ")]"
}

func encodeQuery(preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, "") + "]"
}

// QueryOption customises a search request.
type QueryOption func(url.Values)

// PageSize sets the number of results per page.
func PageSize(n int) QueryOption {
	return func(v url.Values) {
		if n > 0 {
			v.Set("pageSize", strconv.Itoa(n))
		}
	}
}

// Page requests a specific page number.
func Page(n int) QueryOption {
	return func(v url.Values) {
		if n > 0 {
			v.Set("page", strconv.Itoa(n))
		}
	}
}

// Orderings sets the sort order, e.g. "document.first_publication_date desc".
func Orderings(fields ...string) QueryOption {
	return func(v url.Values) {
		if len(fields) > 0 {
			v.Set("orderings", "["+strings.Join(fields, ",")+"]")
		}
	}
}

// Fetch restricts the returned data fields, e.g. "posts.title".
func Fetch(fields ...string) QueryOption {
	return func(v url.Values) {
		if len(fields) > 0 {
			v.Set("fetch", strings.Join(fields, ","))
		}
	}
}
