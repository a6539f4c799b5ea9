// Package store persists device calibration and measurement history. It is
// layered: a short-lived in-memory tier answers repeated reads within a
// session, backed by a device-scoped sqlite file that survives restarts.
//
// Calibration keys carry a version segment. Bumping KeyVersion orphans
// every previously stored value by construction: old rows are simply never
// addressed again, which is exactly what a camera-constant formula change
// requires.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// KeyVersion is the current calibration key version. v2 marks the switch of
// the constant formula to the 4:3 sensor-geometry model; v1 rows are dead.
const KeyVersion = "v2"

var (
	// ErrNotFound reports a lookup that matched nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrNoDevice reports a calibration access without a device ID.
	ErrNoDevice = errors.New("store: device ID required")
)

// Store is the layered persistence used by calibration and history.
type Store struct {
	db     *sql.DB
	memory *gocache.Cache
	log    *zap.Logger
}

// Open creates or opens the device store under cfg.Dir, running any pending
// schema migrations. An empty Dir resolves to <user config dir>/dendro.
func Open(cfg model.StoreConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "dendro")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := openDB(filepath.Join(dir, "dendro.db"))
	if err != nil {
		return nil, err
	}
	ttl := cfg.MemoryTTL
	if ttl <= 0 {
		ttl = model.DefaultConfig().Store.MemoryTTL
	}
	return &Store{
		db:     db,
		memory: gocache.New(ttl, 10*time.Minute),
		log:    log,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func constantKey(deviceID string) string {
	return fmt.Sprintf("calib:%s:%s", KeyVersion, deviceID)
}

func fovKey(deviceID string) string {
	return fmt.Sprintf("fov:%s:%s", KeyVersion, deviceID)
}

// Constant returns the persisted per-device camera constant under the
// current key version.
func (s *Store) Constant(deviceID string) (float64, bool, error) {
	if deviceID == "" {
		return 0, false, ErrNoDevice
	}
	return s.scalar(constantKey(deviceID))
}

// PutConstant persists the camera constant for the device. The caller is
// the one deciding persistence; resolution itself never writes.
func (s *Store) PutConstant(deviceID string, value float64, source model.CalibrationSource) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	return s.putScalar(constantKey(deviceID), value, string(source))
}

// FOVRatio returns the persisted half-angle tangent ratio for the device.
func (s *Store) FOVRatio(deviceID string) (float64, bool, error) {
	if deviceID == "" {
		return 0, false, ErrNoDevice
	}
	return s.scalar(fovKey(deviceID))
}

// PutFOVRatio persists a measured field-of-view ratio for the device.
func (s *Store) PutFOVRatio(deviceID string, ratio float64, source model.CalibrationSource) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	return s.putScalar(fovKey(deviceID), ratio, string(source))
}

// ResetCalibration removes every calibration row for the device, current
// key version included.
func (s *Store) ResetCalibration(deviceID string) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	s.memory.Delete(constantKey(deviceID))
	s.memory.Delete(fovKey(deviceID))
	_, err := s.db.Exec(`DELETE FROM calibrations WHERE key LIKE 'calib:%:' || ? OR key LIKE 'fov:%:' || ?`, deviceID, deviceID)
	if err != nil {
		return fmt.Errorf("reset calibration: %w", err)
	}
	return nil
}

func (s *Store) scalar(key string) (float64, bool, error) {
	if v, found := s.memory.Get(key); found {
		return v.(float64), true, nil
	}
	var value float64
	err := s.db.QueryRow(`SELECT value FROM calibrations WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", key, err)
	}
	s.memory.SetDefault(key, value)
	return value, true, nil
}

func (s *Store) putScalar(key string, value float64, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO calibrations (key, value, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, source = excluded.source, updated_at = excluded.updated_at`,
		key, value, source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.memory.SetDefault(key, value)
	s.log.Debug("calibration persisted", zap.String("key", key), zap.Float64("value", value), zap.String("source", source))
	return nil
}

// SaveMeasurement records a completed measurement. The record feeds the
// reverse-derivation calibration tier and the history command.
func (s *Store) SaveMeasurement(m *model.Measurement) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO measurements
			(id, subject_id, height_m, canopy_m, girth_m, co2e_kg, scale_mm_px, distance_m, max_dim_px, calibration_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SubjectID, m.HeightM, m.CanopyM, m.GirthM, m.CO2eKg,
		m.ScaleMMPx, m.DistanceM, m.MaxDimPx, string(m.Source), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save measurement %s: %w", m.ID, err)
	}
	s.memory.Delete(latestKey(m.SubjectID))
	return nil
}

func latestKey(subjectID string) string {
	return "latest:" + subjectID
}

// LatestMeasurement returns the most recent measurement of the subject, or
// ErrNotFound when the subject has none.
func (s *Store) LatestMeasurement(subjectID string) (*model.Measurement, error) {
	if v, found := s.memory.Get(latestKey(subjectID)); found {
		var m model.Measurement
		if err := json.Unmarshal(v.([]byte), &m); err == nil {
			return &m, nil
		}
	}
	row := s.db.QueryRow(`
		SELECT id, subject_id, height_m, canopy_m, girth_m, co2e_kg, scale_mm_px, distance_m, max_dim_px, calibration_source, created_at
		FROM measurements WHERE subject_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, subjectID)
	m, err := scanMeasurement(row)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(m); err == nil {
		s.memory.SetDefault(latestKey(subjectID), raw)
	}
	return m, nil
}

// Measurements returns the subject's history, newest first.
func (s *Store) Measurements(subjectID string, limit int) ([]*model.Measurement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, subject_id, height_m, canopy_m, girth_m, co2e_kg, scale_mm_px, distance_m, max_dim_px, calibration_source, created_at
		FROM measurements WHERE subject_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []*model.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(r rowScanner) (*model.Measurement, error) {
	var m model.Measurement
	var source string
	err := r.Scan(&m.ID, &m.SubjectID, &m.HeightM, &m.CanopyM, &m.GirthM, &m.CO2eKg,
		&m.ScaleMMPx, &m.DistanceM, &m.MaxDimPx, &source, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan measurement: %w", err)
	}
	m.Source = model.CalibrationSource(source)
	return &m, nil
}
