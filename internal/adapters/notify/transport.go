// Package notify delivers sync run summaries to an external messaging API.
//
// The Dispatcher formats a run, optionally renders an XLSX report and hands
// both to a Transport. Delivery is best effort: every failure ends up in the
// returned NotificationResult, never as an error of the run.
package notify

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

	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxErrorBody       = 512
)

// Message is one outgoing notification.
type Message struct {
	To         []string
	Text       string
	Attachment *Attachment
}

// Attachment is a file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Transport sends a message and returns the provider's message id.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// HTTPTransport posts messages to a messaging gateway. Plain messages are
// sent as JSON; messages with an attachment as multipart/form-data.
type HTTPTransport struct {
	endpoint string
	token    string
	client   *http.Client
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) TransportOption {
	return func(t *HTTPTransport) {
		t.token = token
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// NewHTTPTransport creates a transport for endpoint.
func NewHTTPTransport(endpoint string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendRequest struct {
	To      []string `json:"to"`
	Message string   `json:"message"`
}

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
}

// Send implements Transport. 4xx answers are permanent failures; 5xx and
// network errors may be retried.
func (t *HTTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	if t.endpoint == "" {
		return "", retry.Permanent(ErrNoEndpoint)
	}
	body, contentType, err := encode(msg)
	if err != nil {
		return "", retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet(resp.Body))
	case resp.StatusCode >= http.StatusBadRequest:
		return "", retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet(resp.Body)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return "", retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	id := out.ID
	if id == "" {
		id = out.MessageID
	}
	if id == "" {
		return "", retry.Permanent(ErrEmptyResponse)
	}
	return id, nil
}

func encode(msg Message) (io.Reader, string, error) {
	if msg.Attachment == nil {
		b, err := json.Marshal(sendRequest{To: msg.To, Message: msg.Text})
		if err != nil {
			return nil, "", fmt.Errorf("encode message: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("to", strings.Join(msg.To, ",")); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("message", msg.Text); err != nil {
		return nil, "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, msg.Attachment.Name))
	h.Set("Content-Type", msg.Attachment.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(msg.Attachment.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
