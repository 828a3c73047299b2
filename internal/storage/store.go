// Package storage persists runs as a directory per run holding
// metadata.json and samples.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID          string             `json:"id"`
	Robot       string             `json:"robot"`
	Preset      string             `json:"preset,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Integrator  string             `json:"integrator"`
	Controller  string             `json:"controller"`
	Backend     string             `json:"backend"`
	Joints      []string           `json:"joints"`
	Sensors     []string           `json:"sensors"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its id. ID and Timestamp of meta are filled
// in; Joints must name the columns of every sample's Q.
func (s *Store) Save(meta RunMetadata, samples []dynamo.Sample) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Robot, now.UnixNano())
	meta.Timestamp = now
	meta.Steps = len(samples)
	if len(samples) > 0 && meta.Sensors == nil {
		for _, r := range samples[0].Readings {
			meta.Sensors = append(meta.Sensors, r.Sensor)
		}
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), meta, samples); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header returns the CSV columns for a run with the given joints and sensors.
func Header(joints, sensors []string) []string {
	header := []string{"time"}
	for _, prefix := range []string{"q", "dq", "tau"} {
		for _, j := range joints {
			header = append(header, prefix+"_"+j)
		}
	}
	for _, s := range sensors {
		for _, c := range []string{"fx", "fy", "fz", "mx", "my", "mz"} {
			header = append(header, s+"_"+c)
		}
	}
	return append(header, "kinetic", "potential")
}

func writeSamples(path string, meta RunMetadata, samples []dynamo.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header(meta.Joints, meta.Sensors)); err != nil {
		return err
	}
	n := len(meta.Joints)
	for _, s := range samples {
		if len(s.Q) != n || len(s.Dq) != n || len(s.Tau) != n || len(s.Readings) != len(meta.Sensors) {
			return errors.Wrapf(dynamo.ErrDimensionMismatch, "storage: sample %d does not match %d joints and %d sensors",
				s.Step, n, len(meta.Sensors))
		}
		row := []string{format(s.Time)}
		for _, vec := range [][]float64{s.Q, s.Dq, s.Tau} {
			for _, v := range vec {
				row = append(row, format(v))
			}
		}
		for _, r := range s.Readings {
			for _, v := range r.Force {
				row = append(row, format(v))
			}
			for _, v := range r.Moment {
				row = append(row, format(v))
			}
		}
		row = append(row, format(s.Kinetic), format(s.Potential))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s: metadata", runID)
	}
	return &meta, nil
}

// Table is a run's samples.csv as columns of floats.
type Table struct {
	Header []string
	Rows   [][]float64
	index  map[string]int
}

// Column returns one named column.
func (t *Table) Column(name string) ([]float64, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, errors.Errorf("storage: no column %q (have %v)", name, t.Header)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, nil
}

func (s *Store) LoadTable(runID string) (*Table, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: samples", runID)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("run %s: empty samples file", runID)
	}

	t := &Table{Header: records[0], index: make(map[string]int, len(records[0]))}
	for j, name := range t.Header {
		t.index[name] = j
	}
	for i, rec := range records[1:] {
		row := make([]float64, len(rec))
		for j, field := range rec {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, errors.Wrapf(err, "run %s: row %d column %s", runID, i+1, t.Header[j])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// LoadSamples reads a run back into samples, using the joint and sensor
// names from its metadata to split the columns.
func (s *Store) LoadSamples(runID string) (*RunMetadata, []dynamo.Sample, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.LoadTable(runID)
	if err != nil {
		return nil, nil, err
	}
	want := len(Header(meta.Joints, meta.Sensors))
	if len(t.Header) != want {
		return nil, nil, errors.Errorf("run %s: %d columns, metadata implies %d", runID, len(t.Header), want)
	}

	n := len(meta.Joints)
	samples := make([]dynamo.Sample, len(t.Rows))
	for i, row := range t.Rows {
		s := dynamo.Sample{
			Step: i,
			Time: row[0],
			Q:    dynamo.State(append([]float64(nil), row[1:1+n]...)),
			Dq:   dynamo.State(append([]float64(nil), row[1+n:1+2*n]...)),
			Tau:  dynamo.Control(append([]float64(nil), row[1+2*n:1+3*n]...)),
		}
		off := 1 + 3*n
		for _, name := range meta.Sensors {
			r := dynamo.Reading{Sensor: name}
			copy(r.Force[:], row[off:off+3])
			copy(r.Moment[:], row[off+3:off+6])
			s.Readings = append(s.Readings, r)
			off += 6
		}
		s.Kinetic, s.Potential = row[off], row[off+1]
		samples[i] = s
	}
	return meta, samples, nil
}
