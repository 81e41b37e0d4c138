// Package reviewapi talks to the remote code analysis service.
package reviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CodeReviewPath analyses pasted source text.
	CodeReviewPath = "/api/v1/code-review"
	// UploadCodePath analyses an uploaded source file.
	UploadCodePath = "/api/v1/upload-code"

	maxResponseBytes = 4 << 20
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "reviewapi",
		Name:      "request_duration_seconds",
		Help:      "Duration of requests to the code review service",
	}, []string{"endpoint"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "reviewapi",
		Name:      "request_failures_total",
		Help:      "Number of failed requests to the code review service",
	}, []string{"endpoint", "kind"})
)

// Config defines configuration options for the review service client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// CorrelationID extracts a request identifier to forward as X-Correlation-ID.
	CorrelationID func(context.Context) string
}

// Client performs analysis requests against the review service.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	schema        *jsonschema.Schema
	tracer        trace.Tracer
	logger        zerolog.Logger
	correlationID func(context.Context) string
}

// NewClient builds a client for the review service at cfg.BaseURL.
// No request timeout is applied here; callers bound requests through the context.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("review service base url is required")
	}

	schema, err := compileResultSchema()
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		schema:        schema,
		tracer:        otel.Tracer("github.com/noah-isme/gema-code-review/pkg/reviewapi"),
		logger:        cfg.Logger.With().Str("component", "reviewapi_client").Logger(),
		correlationID: cfg.CorrelationID,
	}, nil
}

// AnalyzeCode submits pasted source text for analysis.
func (c *Client) AnalyzeCode(ctx context.Context, req CodeReviewRequest) (AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("encode code review request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "reviewapi.analyze_code", trace.WithAttributes(
		attribute.String("review.language", req.Language),
		attribute.Int("review.code_bytes", len(req.Code)),
	))
	defer span.End()

	return c.post(ctx, span, CodeReviewPath, "application/json", bytes.NewReader(body))
}

// UploadCode submits a source file for analysis as multipart form field "file".
func (c *Client) UploadCode(ctx context.Context, file UploadFile) (AnalysisResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := createFilePart(writer, file)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return AnalysisResult{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return AnalysisResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "reviewapi.upload_code", trace.WithAttributes(
		attribute.String("review.file_name", file.Name),
		attribute.Int("review.file_bytes", len(file.Content)),
	))
	defer span.End()

	return c.post(ctx, span, UploadCodePath, writer.FormDataContentType(), body)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func createFilePart(writer *multipart.Writer, file UploadFile) (io.Writer, error) {
	if file.ContentType == "" {
		return writer.CreateFormFile("file", file.Name)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", file.ContentType)
	return writer.CreatePart(header)
}

func (c *Client) post(ctx context.Context, span trace.Span, endpoint, contentType string, body io.Reader) (AnalysisResult, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return AnalysisResult{}, c.fail(span, endpoint, "request", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.correlationID != nil {
		if id := c.correlationID(ctx); id != "" {
			req.Header.Set("X-Correlation-ID", id)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AnalysisResult{}, c.fail(span, endpoint, "transport", &TransportError{Endpoint: endpoint, Err: err})
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AnalysisResult{}, c.fail(span, endpoint, "transport", &TransportError{Endpoint: endpoint, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AnalysisResult{}, c.fail(span, endpoint, "service", &ServiceError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(payload),
		})
	}

	result, err := c.decodeResult(payload)
	if err != nil {
		return AnalysisResult{}, c.fail(span, endpoint, "malformed", err)
	}

	span.SetAttributes(attribute.Float64("review.overall_score", result.OverallScore))
	span.SetStatus(codes.Ok, "analysed")
	return result, nil
}

func (c *Client) decodeResult(payload []byte) (AnalysisResult, error) {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := c.schema.Validate(document); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var result AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return result, nil
}

func (c *Client) fail(span trace.Span, endpoint, kind string, err error) error {
	requestFailures.WithLabelValues(endpoint, kind).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)

	event := c.logger.Debug().Str("endpoint", endpoint).Str("kind", kind)
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		event = event.Int("status", svcErr.StatusCode)
	}
	event.Err(err).Msg("review request failed")

	return err
}

// extractDetail returns the service's "detail" message unchanged when it is a plain string.
func extractDetail(payload []byte) string {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}

	return detail
}
