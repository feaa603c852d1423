package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Paginated fetches every page of a link-header-paginated REST
// endpoint, decoding each page into T and handing it to accumulate.
// Only one page is held in memory at a time; accumulate owns keeping
// what it needs. The loop follows the rel="next" link until a response
// stops advertising one.
func Paginated[T any](c *Client, method, url string, accumulate func(page T) error) error {
	next := url
	for next != "" {
		resp, err := c.request(method, next, nil, "")
		if err != nil {
			return err
		}
		if err := checkStatus(resp, method, next); err != nil {
			resp.Body.Close()
			return err
		}

		var page T
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		link := nextLink(resp.Header)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("%s %s: decode page: %w", method, next, decodeErr)
		}
		if err := accumulate(page); err != nil {
			return err
		}
		next = link
	}
	return nil
}

// nextLink extracts the rel="next" target from a Link header, or ""
// when the response is the last page.
func nextLink(h http.Header) string {
	for _, header := range h.Values("Link") {
		for _, part := range strings.Split(header, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range segments[1:] {
				param = strings.TrimSpace(param)
				if param == `rel="next"` || param == "rel=next" {
					return strings.Trim(target, "<>")
				}
			}
		}
	}
	return ""
}

// PageInfo mirrors the GraphQL pageInfo object used for cursor
// pagination.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// StartPage returns the PageInfo priming a cursor loop: has a next
// page, no cursor yet.
func StartPage() PageInfo {
	return PageInfo{HasNextPage: true}
}

// Cursor returns the cursor variable for the next request, nil on the
// first iteration.
func (p PageInfo) Cursor() *string { return p.EndCursor }
