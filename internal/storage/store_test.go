package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

func testSamples() []dynamo.Sample {
	return []dynamo.Sample{
		{
			Step:      0,
			Time:      0,
			Q:         dynamo.State{0.1, 0.2},
			Dq:        dynamo.State{0, 0},
			Tau:       dynamo.Control{0, 0},
			Kinetic:   0,
			Potential: -9.8,
			Readings:  []dynamo.Reading{{Sensor: "tip_ft", Force: [3]float64{1, 0, 0}, Moment: [3]float64{0, -1, 0}}},
		},
		{
			Step:      1,
			Time:      0.01,
			Q:         dynamo.State{0.1001, 0.1999},
			Dq:        dynamo.State{0.01, -0.01},
			Tau:       dynamo.Control{0.5, -0.25},
			Kinetic:   0.0001,
			Potential: -9.7999,
			Readings:  []dynamo.Reading{{Sensor: "tip_ft", Force: [3]float64{0.5, 0, 1e-17}, Moment: [3]float64{0, -0.5, 0}}},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Robot:      "pbot",
		Dt:         0.01,
		Duration:   0.01,
		Integrator: "rk4",
		Controller: "none",
		Backend:    "composite",
		Joints:     []string{"j1", "j2"},
		Metrics:    map[string]float64{"energy": -9.8},
	}
	runID, err := st.Save(meta, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Robot != "pbot" || loaded.Steps != 2 {
		t.Errorf("unexpected metadata %+v", loaded)
	}
	if len(loaded.Sensors) != 1 || loaded.Sensors[0] != "tip_ft" {
		t.Errorf("expected sensors taken from the samples, got %v", loaded.Sensors)
	}

	_, samples, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	want := testSamples()
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		got, exp := samples[i], want[i]
		if got.Time != exp.Time || got.Q[1] != exp.Q[1] || got.Tau[0] != exp.Tau[0] || got.Potential != exp.Potential {
			t.Errorf("sample %d: expected %+v, got %+v", i, exp, got)
		}
		if got.Readings[0] != exp.Readings[0] {
			t.Errorf("sample %d: expected reading %+v, got %+v", i, exp.Readings[0], got.Readings[0])
		}
	}

	table, err := st.LoadTable(runID)
	if err != nil {
		t.Fatalf("load table failed: %v", err)
	}
	fx, err := table.Column("tip_ft_fx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx[0] != 1 || fx[1] != 0.5 {
		t.Errorf("unexpected fx column %v", fx)
	}
	if _, err := table.Column("nope"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	meta := RunMetadata{Robot: "pbot", Joints: []string{"j1", "j2"}}
	first, _ := st.Save(meta, testSamples())
	second, _ := st.Save(meta, testSamples())
	if err := os.MkdirAll(filepath.Join(dir, "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreSaveMismatch(t *testing.T) {
	st := New(t.TempDir())
	meta := RunMetadata{Robot: "pbot", Joints: []string{"j1"}}
	if _, err := st.Save(meta, testSamples()); err == nil {
		t.Error("expected error for samples wider than the joint list")
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Robot: "pbot", Joints: []string{"j1", "j2"}}, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var out Export
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.ID != runID || len(out.Samples) != 2 {
		t.Errorf("unexpected export %+v", out)
	}
}
