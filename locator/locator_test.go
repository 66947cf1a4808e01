package locator

import (
	"testing"

	"github.com/pkg/errors"
)

func list(entries ...entry) Enumerator {
	return func() ([]Process, error) {
		procs := make([]Process, len(entries))
		for n, e := range entries {
			procs[n] = e
		}
		return procs, nil
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		name    string
		enum    Enumerator
		want    uint32
		wantErr error
	}{
		{"empty", list(), NotFound, ErrNotFound},
		{"no match", list(entry{4, "System"}, entry{812, "explorer.exe"}), NotFound, ErrNotFound},
		{"single", list(entry{4, "System"}, entry{9120, "RocketLeague.exe"}, entry{812, "explorer.exe"}), 9120, nil},
		{"first duplicate", list(entry{7001, "RocketLeague.exe"}, entry{812, "explorer.exe"}, entry{6500, "RocketLeague.exe"}), 7001, nil},
		{"case sensitive", list(entry{10, "rocketleague.exe"}, entry{11, "ROCKETLEAGUE.EXE"}), NotFound, ErrNotFound},
		{"no prefix match", list(entry{12, "RocketLeague.exe.bak"}, entry{13, "RocketLeague"}), NotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(tt.enum, "RocketLeague.exe")
			if got != tt.want {
				t.Errorf("Find = %d, want %d", got, tt.want)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindEnumeratorFailure(t *testing.T) {
	boom := errors.New("snapshot failed")
	got, err := Find(func() ([]Process, error) { return nil, boom }, "RocketLeague.exe")
	if got != NotFound {
		t.Errorf("Find = %d, want NotFound", got)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestByName(t *testing.T) {
	for name := range Backends {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("wmi"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("ByName(wmi) error = %v", err)
	}
}
