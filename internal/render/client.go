// Package render implements the HTTP client for the remote document-rendering
// service. Each document type posts its field set to a fixed endpoint; the
// service is tolerated in two dialects (form-encoded and JSON) and its
// responses are validated by signature, not trusted by header alone.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

const (
	userAgent    = "Mozilla/5.0"
	acceptHeader = "application/pdf,application/octet-stream,*/*"
	// secretHeader authenticates this caller to the renderer when a shared
	// secret is configured.
	secretHeader = "X-Api-Key"

	// maxDiagnosticBody caps how much of a rejected body is kept for logs.
	maxDiagnosticBody = 300
)

var pdfMagic = []byte("%PDF")

// AttemptError records one rejected submission attempt with enough context
// for operator logs: encoding dialect, HTTP status, the content type the
// server claimed, and a truncated body.
type AttemptError struct {
	Encoding    string
	Status      int
	ContentType string
	Body        string
	Err         error
}

// Error implements error.
func (e *AttemptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] request failed: %v", e.Encoding, e.Err)
	}
	return fmt.Sprintf("[%s] unvalidated response: status=%d ct=%q body=%q",
		e.Encoding, e.Status, e.ContentType, e.Body)
}

// Unwrap exposes the transport error, if any.
func (e *AttemptError) Unwrap() error { return e.Err }

// Failure is the hard error returned when both encoding attempts fail
// validation. It is terminal at this layer; whole-pipeline retries belong to
// the delivery side, not here.
type Failure struct {
	Form *AttemptError
	JSON *AttemptError
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("document not produced: %v; %v", f.Form, f.JSON)
}

// Client submits field sets to rendering endpoints and returns validated
// document bytes.
type Client struct {
	// HTTPClient is the transport used for submissions. Its timeout bounds
	// each attempt.
	HTTPClient *http.Client
	// Secret, when non-empty, is sent on every request in the shared-secret
	// header.
	Secret string
}

// NewClient constructs a Client with the given per-attempt timeout.
func NewClient(timeout time.Duration, secret string) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Secret:     secret,
	}
}

// Render submits fields to dt's endpoint and returns the rendered document.
// The first attempt is form-encoded; if it does not yield a validated
// document, a JSON submission is tried against the same endpoint, since some
// deployments of the renderer honor only one dialect. Both attempts failing
// is a *Failure; it carries the diagnostics of both and is not retried here.
func (c *Client) Render(ctx context.Context, dt domain.DocumentType, fields map[string]string) ([]byte, error) {
	tr := otel.Tracer("render/Client")
	ctx, span := tr.Start(ctx, "Render",
		trace.WithAttributes(attribute.String("doc.type", dt.Code)),
	)
	defer span.End()

	body, formErr := c.attemptForm(ctx, dt.EndpointURL, fields)
	if formErr == nil {
		return body, nil
	}

	body, jsonErr := c.attemptJSON(ctx, dt.EndpointURL, fields)
	if jsonErr == nil {
		return body, nil
	}

	return nil, &Failure{Form: formErr, JSON: jsonErr}
}

func (c *Client) attemptForm(ctx context.Context, endpoint string, fields map[string]string) ([]byte, *AttemptError) {
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, &AttemptError{Encoding: "form", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, "form")
}

func (c *Client) attemptJSON(ctx context.Context, endpoint string, fields map[string]string) ([]byte, *AttemptError) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, &AttemptError{Encoding: "json", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &AttemptError{Encoding: "json", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "json")
}

func (c *Client) do(req *http.Request, encoding string) ([]byte, *AttemptError) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	if c.Secret != "" {
		req.Header.Set(secretHeader, c.Secret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &AttemptError{Encoding: encoding, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AttemptError{Encoding: encoding, Status: resp.StatusCode, Err: err}
	}

	if validDocument(resp, body) {
		return body, nil
	}
	return nil, &AttemptError{
		Encoding:    encoding,
		Status:      resp.StatusCode,
		ContentType: strings.ToLower(resp.Header.Get("Content-Type")),
		Body:        truncate(body, maxDiagnosticBody),
	}
}

// validDocument applies the acceptance rule: HTTP success, a non-empty body,
// and at least one of a binary content type, the PDF magic signature, or a
// content-disposition naming a file. The content-type header alone is not
// trusted; the renderer has been observed to mislabel or omit it.
func validDocument(resp *http.Response, body []byte) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(body) == 0 {
		return false
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/pdf") || strings.Contains(ct, "application/octet-stream") {
		return true
	}
	if bytes.HasPrefix(body, pdfMagic) {
		return true
	}
	cd := strings.ToLower(resp.Header.Get("Content-Disposition"))
	return strings.Contains(cd, "filename")
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max])
}
