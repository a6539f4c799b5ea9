package store

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(model.StoreConfig{Dir: t.TempDir(), MemoryTTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConstantRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, found, err := s.Constant("pixel-7"); err != nil || found {
		t.Fatalf("cold read: found=%v err=%v, want absent", found, err)
	}
	if err := s.PutConstant("pixel-7", 1.21, model.SourceMetadata); err != nil {
		t.Fatalf("PutConstant: %v", err)
	}
	v, found, err := s.Constant("pixel-7")
	if err != nil || !found {
		t.Fatalf("read after put: found=%v err=%v", found, err)
	}
	if v != 1.21 {
		t.Errorf("constant = %v, want 1.21", v)
	}

	// Overwrite, then read through the memory tier bypass by using a fresh
	// cache entry key.
	if err := s.PutConstant("pixel-7", 1.30, model.SourceFOVRatio); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Constant("pixel-7"); v != 1.30 {
		t.Errorf("constant after overwrite = %v, want 1.30", v)
	}
}

func TestConstantRequiresDevice(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.Constant(""); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Constant(\"\") err = %v, want ErrNoDevice", err)
	}
	if err := s.PutConstant("", 1.2, model.SourceStored); !errors.Is(err, ErrNoDevice) {
		t.Errorf("PutConstant(\"\") err = %v, want ErrNoDevice", err)
	}
}

func TestFOVRatioIndependentOfConstant(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutFOVRatio("dev", 0.62, model.SourceFOVRatio); err != nil {
		t.Fatalf("PutFOVRatio: %v", err)
	}
	if _, found, _ := s.Constant("dev"); found {
		t.Error("storing a FOV ratio must not create a constant")
	}
	r, found, err := s.FOVRatio("dev")
	if err != nil || !found || r != 0.62 {
		t.Errorf("FOVRatio = %v found=%v err=%v, want 0.62", r, found, err)
	}
}

func TestResetCalibration(t *testing.T) {
	s := openTestStore(t)
	_ = s.PutConstant("dev", 1.2, model.SourceStored)
	_ = s.PutFOVRatio("dev", 0.6, model.SourceFOVRatio)
	_ = s.PutConstant("other", 1.4, model.SourceStored)

	if err := s.ResetCalibration("dev"); err != nil {
		t.Fatalf("ResetCalibration: %v", err)
	}
	if _, found, _ := s.Constant("dev"); found {
		t.Error("constant survived reset")
	}
	if _, found, _ := s.FOVRatio("dev"); found {
		t.Error("FOV ratio survived reset")
	}
	if _, found, _ := s.Constant("other"); !found {
		t.Error("reset clobbered another device's calibration")
	}
}

func TestMeasurementHistory(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.LatestMeasurement("oak-12"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty latest err = %v, want ErrNotFound", err)
	}

	older := &model.Measurement{
		ID: "m-1", SubjectID: "oak-12",
		HeightM: 14.2, CanopyM: 8.1, GirthM: 0.62, CO2eKg: 410,
		ScaleMMPx: 4.2, DistanceM: 12, MaxDimPx: 4000,
		Source:    model.SourceMetadata,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := &model.Measurement{
		ID: "m-2", SubjectID: "oak-12",
		HeightM: 14.6, CanopyM: 8.3, GirthM: 0.63, CO2eKg: 428,
		ScaleMMPx: 3.9, DistanceM: 11, MaxDimPx: 4000,
		Source:    model.SourceStored,
		CreatedAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, m := range []*model.Measurement{older, newer} {
		if err := s.SaveMeasurement(m); err != nil {
			t.Fatalf("SaveMeasurement(%s): %v", m.ID, err)
		}
	}

	latest, err := s.LatestMeasurement("oak-12")
	if err != nil {
		t.Fatalf("LatestMeasurement: %v", err)
	}
	if latest.ID != "m-2" {
		t.Errorf("latest = %s, want m-2", latest.ID)
	}

	all, err := s.Measurements("oak-12", 10)
	if err != nil {
		t.Fatalf("Measurements: %v", err)
	}
	if len(all) != 2 || all[0].ID != "m-2" || all[1].ID != "m-1" {
		t.Errorf("history order wrong: %+v", all)
	}

	// The prior-evidence view must carry what reverse derivation needs.
	prior := latest.PriorEvidence()
	if prior.ScaleMMPx != 3.9 || prior.DistanceM != 11 || prior.MaxDimPx != 4000 {
		t.Errorf("PriorEvidence = %+v", prior)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := model.StoreConfig{Dir: dir, MemoryTTL: time.Minute}

	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.PutConstant("dev", 1.17, model.SourceFOVRatio); err != nil {
		t.Fatalf("PutConstant: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, found, err := s2.Constant("dev")
	if err != nil || !found || v != 1.17 {
		t.Errorf("after reopen: v=%v found=%v err=%v, want 1.17", v, found, err)
	}
}
