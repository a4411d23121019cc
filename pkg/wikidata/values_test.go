package wikidata

import (
	"errors"
	"testing"
)

func TestEntityValue(t *testing.T) {
	v, err := EntityValue("https://www.wikidata.org/entity/Q1757")
	if err != nil {
		t.Fatalf("EntityValue failed: %v", err)
	}
	if v["entity-type"] != "item" || v["numeric-id"] != 1757 {
		t.Errorf("EntityValue = %v", v)
	}

	if _, err := EntityValue("not an item"); !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", err)
	}
}

func TestTimeValue(t *testing.T) {
	tests := []struct {
		date      string
		timestamp string
		precision int
		wantErr   bool
	}{
		{"1898", "+1898-00-00T00:00:00Z", 9, false},
		{"1898-05", "+1898-05-00T00:00:00Z", 10, false},
		{"1898-05-17", "+1898-05-17T00:00:00Z", 11, false},
		{"1898-5-17", "", 0, true},
		{"yesterday", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			v, err := TimeValue(tt.date)
			if tt.wantErr {
				if !errors.Is(err, ErrWrite) {
					t.Errorf("TimeValue(%q) error = %v, want ErrWrite", tt.date, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TimeValue(%q) failed: %v", tt.date, err)
			}
			if v["time"] != tt.timestamp {
				t.Errorf("time = %v, want %v", v["time"], tt.timestamp)
			}
			if v["precision"] != tt.precision {
				t.Errorf("precision = %v, want %d", v["precision"], tt.precision)
			}
			if v["calendarmodel"] != calendarGregorian {
				t.Errorf("calendarmodel = %v", v["calendarmodel"])
			}
		})
	}
}

func TestCoordinateValue(t *testing.T) {
	v, err := CoordinateValue(60.1699, 24.9384)
	if err != nil {
		t.Fatalf("CoordinateValue failed: %v", err)
	}
	if v["precision"] != 0.0001 || v["globe"] != globeEarth {
		t.Errorf("CoordinateValue = %v", v)
	}

	for _, bad := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}} {
		if _, err := CoordinateValue(bad[0], bad[1]); !errors.Is(err, ErrWrite) {
			t.Errorf("CoordinateValue(%v) expected ErrWrite, got %v", bad, err)
		}
	}
}

func TestMonolingualValue(t *testing.T) {
	v, err := MonolingualValue("Aleksanterinkatu 1", "fi")
	if err != nil {
		t.Fatalf("MonolingualValue failed: %v", err)
	}
	if v["text"] != "Aleksanterinkatu 1" || v["language"] != "fi" {
		t.Errorf("MonolingualValue = %v", v)
	}

	if _, err := MonolingualValue("", "fi"); !errors.Is(err, ErrWrite) {
		t.Errorf("empty text: expected ErrWrite, got %v", err)
	}
	if _, err := MonolingualValue("x", "Finnish!"); !errors.Is(err, ErrWrite) {
		t.Errorf("bad language: expected ErrWrite, got %v", err)
	}
}
