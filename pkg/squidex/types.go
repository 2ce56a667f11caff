// pkg/squidex/types.go
package squidex

import (
	"net/url"
	"strconv"
)

// Credentials is the immutable per-app configuration a Client is built
// from. BaseURL is the Squidex installation root without trailing slash.
type Credentials struct {
	AppName      string
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Content is one item as the content API returns it. Data is opaque:
// schemas are tenant-defined and unknown at compile time.
type Content struct {
	ID             string         `json:"id"`
	Created        string         `json:"created"`
	CreatedBy      string         `json:"createdBy"`
	LastModified   string         `json:"lastModified"`
	LastModifiedBy string         `json:"lastModifiedBy"`
	Status         string         `json:"status,omitempty"`
	Data           map[string]any `json:"data"`
	Version        int64          `json:"version"`
}

type ContentList struct {
	Total int64     `json:"total"`
	Items []Content `json:"items"`
}

// ListQuery carries the OData-style pagination/filter parameters, passed
// through to the API verbatim. Zero values are omitted.
type ListQuery struct {
	Top     int
	Skip    int
	Filter  string
	OrderBy string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Top > 0 {
		v.Set("$top", strconv.Itoa(q.Top))
	}
	if q.Skip > 0 {
		v.Set("$skip", strconv.Itoa(q.Skip))
	}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		v.Set("$orderby", q.OrderBy)
	}
	return v
}

type CreateOptions struct {
	Publish bool   // publish immediately instead of creating a draft
	ID      string // client-supplied content id
}

type UpdateOptions struct {
	Patch           bool   // PATCH (partial) instead of PUT (full replace)
	ExpectedVersion *int64 // optimistic-concurrency precondition
}

type DeleteOptions struct {
	Permanent bool // bypass soft-delete
}
