package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IntrinsicsProber asks the active camera stream for its horizontal field of
// view in degrees. Probing is strictly best effort: any error or timeout
// just advances calibration to the next tier.
type IntrinsicsProber interface {
	Probe(ctx context.Context) (float64, error)
}

// HTTPProber queries the companion capture endpoint.
type HTTPProber struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProber builds a prober against baseURL, defaulting to the local
// companion port when empty.
func NewHTTPProber(baseURL string, timeout time.Duration) *HTTPProber {
	if baseURL == "" {
		baseURL = "http://localhost:8765"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProber{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type intrinsicsResponse struct {
	HFOVDeg float64 `json:"hfov_deg"`
}

// Probe fetches the camera's horizontal field of view.
func (p *HTTPProber) Probe(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/intrinsics", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe intrinsics: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return 0, fmt.Errorf("%w: HTTP %d", ErrPermissionDenied, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("probe intrinsics: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("read probe response: %w", err)
	}
	var ir intrinsicsResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return 0, fmt.Errorf("unmarshal probe response: %w", err)
	}
	if ir.HFOVDeg <= 0 || ir.HFOVDeg >= 180 {
		return 0, fmt.Errorf("probe intrinsics: implausible field of view %.1f", ir.HFOVDeg)
	}
	return ir.HFOVDeg, nil
}

// StaticProber returns a configured field of view; it backs devices whose
// optics are known ahead of time, and tests.
type StaticProber struct {
	HFOVDeg float64
}

func (p StaticProber) Probe(context.Context) (float64, error) {
	if p.HFOVDeg <= 0 {
		return 0, errors.New("no field of view configured")
	}
	return p.HFOVDeg, nil
}
