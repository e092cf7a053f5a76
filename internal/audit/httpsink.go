package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/retry"
)

const defHTTPTimeout = 30 * time.Second

// ErrorHTTPRequest is returned when the http server responded with a
// non-2xx status code.
type ErrorHTTPRequest struct {
	Body   []byte
	Status int
}

func (e *ErrorHTTPRequest) Error() string {
	return fmt.Sprintf("http request failed with StatusCode: %d, response: %q", e.Status, string(e.Body))
}

// HTTPSink posts records JSON encoded to an URL.
type HTTPSink struct {
	url      string
	user     string
	password string
	clt      *http.Client
	logger   *zap.Logger
}

// WithAuth defines user and password that is used for Basic Auth.
func WithAuth(user, password string) func(*HTTPSink) {
	return func(h *HTTPSink) {
		h.user = user
		h.password = password
	}
}

// WithHTTPClient sets the http client that is used to send requests.
func WithHTTPClient(clt *http.Client) func(*HTTPSink) {
	return func(h *HTTPSink) {
		h.clt = clt
	}
}

func NewHTTPSink(url string, opts ...func(*HTTPSink)) *HTTPSink {
	h := HTTPSink{
		url:    url,
		clt:    &http.Client{Timeout: defHTTPTimeout},
		logger: zap.L().Named(loggerName).Named("http"),
	}

	for _, opt := range opts {
		opt(&h)
	}

	return &h
}

// Write sends the record.
// It returns an ErrorHTTPRequest if the server responded with an error, when
// the status code is 429 or 5xx it is wrapped in a retry.RetryableError.
func (h *HTTPSink) Write(ctx context.Context, rec *Record) error {
	logger := h.logger.With(h.LogFields()...)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if h.user != "" || h.password != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	resp, err := h.clt.Do(req)
	if err != nil {
		return retry.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("http_post_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &ErrorHTTPRequest{
			Body:   body,
			Status: resp.StatusCode,
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.NewRetryableAnytimeError(reqErr)
		}

		return reqErr
	}

	logger.Debug(
		"audit record sent",
		logfields.Event("http_post_request_sent"),
		zap.Int("http_response_code", resp.StatusCode),
	)

	return nil
}

func (h *HTTPSink) String() string {
	return fmt.Sprintf("http: POST to %s", h.url)
}

// LogFields returns fields that should be used when logging messages related
// to the sink.
func (h *HTTPSink) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("audit_sink", "http"),
		zap.String("http_url", h.url),
	}
}
