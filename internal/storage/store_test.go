package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/db"
	"github.com/dokzlo13/huemotion/internal/light"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func TestStore_SaveBumpsRevision(t *testing.T) {
	s := openStore(t)

	body, revision, err := s.Load("animation", "active")
	if err != nil || body != nil || revision != 0 {
		t.Fatalf("Load(missing) = %s, %d, %v", body, revision, err)
	}

	for i, payload := range []string{`{"a":1}`, `{"a":2}`} {
		revision, err := s.Save("animation", "active", []byte(payload))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if revision != int64(i+1) {
			t.Errorf("Save() #%d revision = %d, want %d", i+1, revision, i+1)
		}
	}

	body, revision, err = s.Load("animation", "active")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(body) != `{"a":2}` || revision != 2 {
		t.Errorf("Load() = %s, %d", body, revision)
	}

	if err := s.Delete("animation", "active"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if body, _, _ := s.Load("animation", "active"); body != nil {
		t.Error("Load() after Delete returned data")
	}
}

func TestStore_Clear(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		wantKeptA bool
		wantKeptB bool
	}{
		{"one kind", "a", false, true},
		{"everything", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t)
			for _, kind := range []string{"a", "b"} {
				if _, err := s.Save(kind, "1", []byte(`1`)); err != nil {
					t.Fatalf("Save(%s) error = %v", kind, err)
				}
			}

			if err := s.Clear(tt.kind); err != nil {
				t.Fatalf("Clear(%q) error = %v", tt.kind, err)
			}
			if body, _, _ := s.Load("a", "1"); (body != nil) != tt.wantKeptA {
				t.Errorf("kind a kept = %v, want %v", body != nil, tt.wantKeptA)
			}
			if body, _, _ := s.Load("b", "1"); (body != nil) != tt.wantKeptB {
				t.Errorf("kind b kept = %v, want %v", body != nil, tt.wantKeptB)
			}
		})
	}
}

func TestDocs_RoundTripsSpec(t *testing.T) {
	d := NewDocs[animation.Spec](openStore(t), "animation")

	if _, ok, err := d.Load("active"); ok || err != nil {
		t.Fatalf("Load(missing) = %v, %v", ok, err)
	}

	spec := animation.Spec{
		Kind:       animation.KindRotate,
		Transition: 2 * time.Second,
		Hold:       time.Second,
		Devices:    []light.DeviceID{1, 3},
		Hues:       []uint16{0, 30000},
	}
	if err := d.Save("active", spec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := d.Load("active")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if got.Kind != spec.Kind || got.Transition != spec.Transition || len(got.Devices) != 2 || got.Hues[1] != 30000 {
		t.Errorf("Load() = %+v, want %+v", got, spec)
	}
}

func TestDocs_LoadRejectsCorruptBody(t *testing.T) {
	s := openStore(t)
	if _, err := s.Save("animation", "active", []byte(`not json`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok, err := NewDocs[animation.Spec](s, "animation").Load("active"); ok || err == nil {
		t.Errorf("Load() = %v, %v; want a decode error", ok, err)
	}
}
