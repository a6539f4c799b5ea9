package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

func testConfig(url string) model.VisionConfig {
	return model.VisionConfig{
		BaseURL:           url,
		Timeout:           5 * time.Second,
		MaxBodyBytes:      1 << 20,
		RequestsPerSecond: 1000, // don't throttle tests
	}
}

func samplePoints() []model.TaggedPoint {
	return []model.TaggedPoint{
		{Category: model.PointTrunk, Point: model.Point{X: 500, Y: 900}},
		{Category: model.PointCanopy, Point: model.Point{X: 200, Y: 300}},
		{Category: model.PointCanopy, Point: model.Point{X: 800, Y: 310}},
	}
}

func TestDelineateSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/delineate" {
			t.Errorf("path = %s, want /delineate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Response{HeightM: 15.2, CanopyM: 7.8, GirthM: 0.55})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	resp, err := c.Delineate(context.Background(), &Request{
		SubjectID:   "oak-12",
		Points:      samplePoints(),
		ScaleMMPx:   4.2,
		ImageWidth:  3000,
		ImageHeight: 4000,
		Protocol:    "assisted",
	})
	if err != nil {
		t.Fatalf("Delineate: %v", err)
	}
	if resp.HeightM != 15.2 || resp.CanopyM != 7.8 || resp.GirthM != 0.55 {
		t.Errorf("response = %+v", resp)
	}
	if len(got.Points) != 3 || got.ScaleMMPx != 4.2 {
		t.Errorf("service saw %d points scale %v", len(got.Points), got.ScaleMMPx)
	}
}

func TestDelineateFailureIsRecoverable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "segmentation backend overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Delineate(context.Background(), &Request{Points: samplePoints()})
	if !errors.Is(err, ErrRecoverable) {
		t.Fatalf("err = %v, want ErrRecoverable", err)
	}
	// One attempt only: retrying is the operator's call, never the client's.
	if n := calls.Load(); n != 1 {
		t.Errorf("service called %d times, want 1", n)
	}
}

func TestDelineateTransportFaultIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Delineate(context.Background(), &Request{Points: samplePoints()})
	if !errors.Is(err, ErrRecoverable) {
		t.Fatalf("err = %v, want ErrRecoverable", err)
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if !NewClient(testConfig(srv.URL), nil).IsAvailable(context.Background()) {
		t.Error("IsAvailable = false against a healthy server")
	}

	srv.Close()
	if NewClient(testConfig(srv.URL), nil).IsAvailable(context.Background()) {
		t.Error("IsAvailable = true against a dead server")
	}
}
