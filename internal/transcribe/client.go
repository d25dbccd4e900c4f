// Package transcribe submits recordings to a speech-to-text HTTP service.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rbright/shadow/internal/artifact"
)

const (
	DefaultEndpoint         = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel            = "whisper-1"
	DefaultResponseFormat   = "json"
	DefaultPlaceholderDelay = 1500 * time.Millisecond

	// DummyCredential is the value shipped in example env files.
	DummyCredential = "YOUR_DUMMY_API_KEY_HERE"

	PlaceholderText = "Placeholder transcript: no transcription API key is configured, so this text stands in for the real result."
)

// Messages shown to end users in production.
const (
	MessageUnavailable  = "Transcription service is unavailable. Contact your administrator."
	MessageRetry        = "Transcription failed. Please try again later."
	MessageConnectivity = "Could not reach the transcription service. Check your connection and try again."
	MessageTimeout      = "The transcription request timed out. Please try again."
	MessageCancelled    = "Transcription was cancelled."
)

type Kind string

const (
	KindUnavailable  Kind = "unavailable"
	KindService      Kind = "service"
	KindConnectivity Kind = "connectivity"
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
)

// Error is a classified transcription failure. Message is safe to display.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is either text (Valid) or a classified failure. In development an
// invalid credential yields placeholder text together with an Err.
type Result struct {
	Text        string
	Valid       bool
	Placeholder bool
	Err         *Error
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Credential       string
	Development      bool
	Endpoint         string
	Model            string
	ResponseFormat   string
	Timeout          time.Duration
	PlaceholderDelay time.Duration
	HTTPClient       Doer
	Logger           *slog.Logger
}

// Client is safe for concurrent use. Each call yields exactly one Result.
type Client struct {
	opts Options

	mu      sync.Mutex
	lastErr *Error
}

func New(opts Options) *Client {
	if strings.TrimSpace(opts.Endpoint) == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if strings.TrimSpace(opts.ResponseFormat) == "" {
		opts.ResponseFormat = DefaultResponseFormat
	}
	if opts.PlaceholderDelay < 0 {
		opts.PlaceholderDelay = 0
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{opts: opts}
}

// ValidCredential applies the minimal key shape policy.
func ValidCredential(credential string) bool {
	return credential != "" &&
		credential != DummyCredential &&
		strings.HasPrefix(credential, "sk-") &&
		len(credential) > 20
}

// LastError returns the error from the most recent call, or nil after a success.
func (c *Client) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Transcribe uploads a and returns its text. It never returns a Go error.
func (c *Client) Transcribe(ctx context.Context, a *artifact.Artifact, filename string) Result {
	c.setLastError(nil)

	if !ValidCredential(c.opts.Credential) {
		return c.invalidCredential(ctx)
	}
	if a == nil || a.Size() == 0 {
		return c.fail(&Error{Kind: KindService, Message: "No recording to transcribe."})
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	body, contentType, err := c.buildForm(a, filename)
	if err != nil {
		return c.fail(&Error{Kind: KindService, Message: MessageRetry, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, body)
	if err != nil {
		return c.fail(&Error{Kind: KindService, Message: MessageRetry, Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Credential)
	req.Header.Set("Content-Type", contentType)

	started := time.Now()
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return c.fail(c.transportError(ctx, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(c.transportError(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(c.serviceError(resp.StatusCode, payload))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return c.fail(&Error{Kind: KindService, Message: c.pick("Malformed transcription response: "+err.Error(), MessageRetry), Status: resp.StatusCode, Err: err})
	}

	c.logInfo("transcription finished",
		"status", resp.StatusCode,
		"bytes", a.Size(),
		"chars", len(decoded.Text),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return Result{Text: decoded.Text, Valid: true}
}

func (c *Client) invalidCredential(ctx context.Context) Result {
	c.logWarn("transcription API key not configured or invalid", "development", c.opts.Development)

	if !c.opts.Development {
		return c.fail(&Error{Kind: KindUnavailable, Message: MessageUnavailable})
	}

	notice := &Error{Kind: KindUnavailable, Message: "Transcription API key is not configured (check your .env file)."}
	c.setLastError(notice)

	timer := time.NewTimer(c.opts.PlaceholderDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return c.fail(c.contextError(ctx.Err()))
	}
	return Result{Text: PlaceholderText, Valid: true, Placeholder: true, Err: notice}
}

func (c *Client) buildForm(a *artifact.Artifact, filename string) (*bytes.Buffer, string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "recording" + a.Extension()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, a.Reader()); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("model", c.opts.Model); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("response_format", c.opts.ResponseFormat); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

func (c *Client) serviceError(status int, payload []byte) *Error {
	var decoded struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(payload, &decoded)

	detail := strings.TrimSpace(decoded.Error.Message)
	if detail == "" {
		detail = fmt.Sprintf("unknown error from transcription service (HTTP %d)", status)
	}
	return &Error{
		Kind:    KindService,
		Message: c.pick("Transcription request failed: "+detail, MessageRetry),
		Status:  status,
		Err:     fmt.Errorf("transcription http %d: %s", status, detail),
	}
}

func (c *Client) transportError(ctx context.Context, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.contextError(ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: c.pick("Transcription request timed out: "+err.Error(), MessageTimeout), Err: err}
	}
	return &Error{Kind: KindConnectivity, Message: c.pick("Could not reach the transcription service: "+err.Error(), MessageConnectivity), Err: err}
}

func (c *Client) contextError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: MessageTimeout, Err: err}
	}
	return &Error{Kind: KindCancelled, Message: MessageCancelled, Err: err}
}

// pick returns detail in development and the generic message in production.
func (c *Client) pick(detail string, generic string) string {
	if c.opts.Development {
		return detail
	}
	return generic
}

func (c *Client) fail(err *Error) Result {
	c.setLastError(err)
	c.logWarn("transcription failed", "kind", string(err.Kind), "status", err.Status)
	return Result{Err: err}
}

func (c *Client) setLastError(err *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Warn(msg, args...)
	}
}
