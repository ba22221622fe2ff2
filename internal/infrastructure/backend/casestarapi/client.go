package casestarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/infrastructure/resilience"
)

const DefaultBaseURL = "http://localhost:8000"

// RequestObserver is told about every finished backend call.
type RequestObserver interface {
	ObserveBackendRequest(endpoint string, outcome string, duration time.Duration)
}

type Options struct {
	// Timeout bounds a single call. Zero leaves it to the transport.
	Timeout    time.Duration
	HTTPClient *http.Client
	Executor   *resilience.Executor
	Observer   RequestObserver
}

// Client talks to the CaseStar backend over plain HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	observer   RequestObserver
}

func New(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		executor:   opts.Executor,
		observer:   opts.Observer,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Upload(ctx context.Context, file domain.DocumentFile) (*domain.UploadResult, error) {
	var out domain.UploadResult
	err := c.roundTrip(ctx, uploadEndpoint, func() (io.Reader, string, error) {
		return multipartBody(file)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analyze(ctx context.Context, text, caseID string) (*domain.AnalysisResult, error) {
	payload := struct {
		Text   string `json:"text"`
		CaseID string `json:"case_id,omitempty"`
	}{Text: text, CaseID: caseID}

	var out domain.AnalysisResult
	if err := c.roundTrip(ctx, analyzeEndpoint, jsonBody(payload), &out); err != nil {
		return nil, err
	}
	if out.KeyPoints == nil {
		out.KeyPoints = []string{}
	}
	if out.Entities == nil {
		out.Entities = []domain.Entity{}
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	payload := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{Query: query, Limit: limit}

	var out struct {
		Results []domain.SearchResult `json:"results"`
	}
	if err := c.roundTrip(ctx, searchEndpoint, jsonBody(payload), &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []domain.SearchResult{}
	}
	return out.Results, nil
}

func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	var out domain.HealthStatus
	if err := c.roundTrip(ctx, healthEndpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.Services == nil {
		out.Services = map[string]bool{}
	}
	return &out, nil
}

func (c *Client) ListCases(ctx context.Context) (*domain.CaseList, error) {
	var out domain.CaseList
	if err := c.roundTrip(ctx, casesEndpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.Cases == nil {
		out.Cases = []domain.Case{}
	}
	return &out, nil
}

func jsonBody(payload any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(file domain.DocumentFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
