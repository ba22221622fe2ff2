package casestarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/casestar/casestar-client/internal/core/domain"
)

const maxErrorBody = 64 << 10

type endpoint struct {
	name    string
	method  string
	path    string
	kind    error
	generic string
	// useDetail is false for calls whose failures always show the generic message.
	useDetail bool
}

var (
	uploadEndpoint  = endpoint{"upload", http.MethodPost, "/api/upload", domain.ErrUpload, domain.UploadFailedMessage, true}
	analyzeEndpoint = endpoint{"analyze", http.MethodPost, "/api/analyze", domain.ErrAnalysis, domain.AnalysisFailedMessage, true}
	searchEndpoint  = endpoint{"search", http.MethodPost, "/api/search", domain.ErrSearch, domain.SearchFailedMessage, true}
	healthEndpoint  = endpoint{"health", http.MethodGet, "/health", domain.ErrHealthCheck, domain.HealthCheckFailedMessage, false}
	casesEndpoint   = endpoint{"cases", http.MethodGet, "/api/cases", domain.ErrCases, domain.CasesFailedMessage, true}
)

func (c *Client) roundTrip(ctx context.Context, ep endpoint, body func() (io.Reader, string, error), out any) error {
	call := func(ctx context.Context) error {
		var reader io.Reader
		var contentType string
		if body != nil {
			var err error
			reader, contentType, err = body()
			if err != nil {
				return fmt.Errorf("encode %s request: %w", ep.name, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+ep.path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", ep.name, err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("casestar %s request: %w", ep.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newHTTPStatusError(ep.name, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", ep.name, err)
		}
		return nil
	}

	start := time.Now()
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "backend."+ep.name, call, classifyBackendError)
	} else {
		err = call(ctx)
	}
	c.observe(ep.name, err, time.Since(start))
	if err != nil {
		return toRemoteError(ep, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendRequest(endpoint, outcome(err), d)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if statusErr, ok := asHTTPStatusError(err); ok {
		if statusErr.StatusCode >= 500 {
			return "server_error"
		}
		return "rejected"
	}
	return "transport_error"
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     parseDetail(raw),
		Body:       strings.TrimSpace(string(raw)),
	}
}

// parseDetail reads the backend's {"detail": ...} failure body. Validation
// failures carry a list of {"msg": ...} objects instead of a string.
func parseDetail(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	detail := gjson.GetBytes(raw, "detail")
	switch {
	case detail.Type == gjson.String:
		return detail.Str
	case detail.IsArray():
		var msgs []string
		detail.ForEach(func(_, item gjson.Result) bool {
			switch {
			case item.Type == gjson.String && strings.TrimSpace(item.Str) != "":
				msgs = append(msgs, strings.TrimSpace(item.Str))
			case item.Get("msg").Type == gjson.String:
				msgs = append(msgs, item.Get("msg").Str)
			}
			return true
		})
		return strings.Join(msgs, "; ")
	default:
		return ""
	}
}

// toRemoteError turns any call failure into the single display-string form
// the presentation layer consumes, keeping the cause in the chain.
func toRemoteError(ep endpoint, err error) error {
	remote := &domain.RemoteError{
		Kind:   ep.kind,
		Detail: ep.generic,
		Err:    wrapTemporaryIfNeeded(ep.name, err),
	}
	if statusErr, ok := asHTTPStatusError(err); ok {
		remote.StatusCode = statusErr.StatusCode
		if ep.useDetail && statusErr.Detail != "" {
			remote.Detail = statusErr.Detail
		}
	}
	return remote
}
