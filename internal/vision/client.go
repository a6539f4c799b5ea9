// Package vision is the client for the remote delineation service: the
// collected point set and scale factor go out, physical metrics and an
// overlay artifact come back. The service is opaque and can take tens of
// seconds; the client never retries on its own — a failure is surfaced as
// recoverable and the session keeps the point set for one operator-triggered
// resubmission.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// ErrRecoverable wraps every delineation failure the operator can retry.
// Transport faults, timeouts and 5xx responses all land here; the point set
// is still valid and a single resubmission is allowed.
var ErrRecoverable = errors.New("delineation failed, point set retained")

// Request carries everything the service needs to segment one tree.
type Request struct {
	SubjectID   string              `json:"subject_id,omitempty"`
	Points      []model.TaggedPoint `json:"points"`
	ScaleMMPx   float64             `json:"scale_mm_px"`
	ImageWidth  int                 `json:"image_width"`
	ImageHeight int                 `json:"image_height"`
	Protocol    string              `json:"protocol"`
}

// Response is the service's delineation result. The overlay is a PNG mask
// in image coordinates; it is presentation-only and may be empty.
type Response struct {
	HeightM    float64 `json:"height_m"`
	CanopyM    float64 `json:"canopy_m"`
	GirthM     float64 `json:"girth_m"`
	GuideRowPx float64 `json:"guide_row_px,omitempty"` // suggested breast-height row for girth taps
	OverlayPNG []byte  `json:"overlay_png,omitempty"`
}

// Client talks to one delineation endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBytes   int64
	log        *zap.Logger
}

// NewClient builds a client from the vision tunables. The timeout default is
// generous because segmentation latency is routinely tens of seconds.
func NewClient(cfg model.VisionConfig, log *zap.Logger) *Client {
	def := model.DefaultConfig().Vision
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxBytes: cfg.MaxBodyBytes,
		log:      log,
	}
}

// newProxyFunc prefers the configured proxies and falls back to the
// environment when neither is set.
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// IsAvailable checks whether the service answers at all. It is a cheap
// preflight for the CLI, not a guarantee the delineation will succeed.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("vision health check failed", zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Delineate submits one point set. It performs exactly one attempt; every
// failure mode wraps ErrRecoverable so the caller can offer resubmission.
func (c *Client) Delineate(ctx context.Context, r *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoverable, err)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal delineation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/delineate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create delineation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoverable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRecoverable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRecoverable, resp.StatusCode, firstLine(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrRecoverable, err)
	}
	c.log.Debug("delineation complete",
		zap.Duration("latency", time.Since(start)),
		zap.Float64("height_m", out.HeightM),
		zap.Float64("canopy_m", out.CanopyM),
		zap.Float64("girth_m", out.GirthM))
	return &out, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
