package supabase

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// Item is a single decoded JSON row.
type Item = any

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %s", e.Status)
	}
	return fmt.Sprintf("bad status: %s: %s", e.Status, e.Body)
}

// GetItems makes GET requests to the table endpoint and returns rows from all pages.
func (c *Client) GetItems(ctx context.Context, table string, q url.Values) ([]Item, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var items []Item
	for offset := 0; ; offset += pageSize {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table), nil)
		if err != nil {
			return nil, err
		}

		req = c.setHeaders(req)
		// Additional headers. For GET requests only
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Prefer", "count=exact")
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+pageSize-1))
		req.URL.RawQuery = q.Encode()

		resp, err := c.request(req)
		if err != nil {
			return nil, err
		}

		var page []Item
		if err := decodeBody(resp, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)

		total, known := parseTotal(resp.Header.Get("Content-Range"))
		c.logger.Debug("got page from profile backend",
			zap.String("table", table),
			zap.Int("offset", offset),
			zap.Int("rows", len(page)),
			zap.Int("total", total),
		)

		if len(page) == 0 {
			break
		}
		if known && offset+len(page) >= total {
			break
		}
		if !known && len(page) < pageSize {
			break
		}
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"fetched %d rows so far", offset+len(page)),
		))
	}

	return items, nil
}

// decodeBody checks the status, transparently un-gzips and decodes JSON into target.
func decodeBody(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if target == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}

// parseTotal reads the total from a "0-99/250" Content-Range value.
func parseTotal(header string) (int, bool) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
