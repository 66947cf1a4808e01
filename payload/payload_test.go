package payload

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
)

// minimalImage builds a header-only PE: DOS stub pointer, signature and a
// COFF file header with no optional header and no sections.
func minimalImage(characteristics uint16) []byte {
	const peOff = 0x40
	b := make([]byte, peOff+4+20)
	b[0], b[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(b[0x3c:], peOff)
	copy(b[peOff:], "PE\x00\x00")
	fh := b[peOff+4:]
	binary.LittleEndian.PutUint16(fh[0:], 0x8664)
	binary.LittleEndian.PutUint16(fh[18:], characteristics)
	return b
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveOverride(t *testing.T) {
	got, err := Resolve("bakkesmod.dll")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "bakkesmod.dll" {
		t.Errorf("Resolve = %q, want absolute path to bakkesmod.dll", got)
	}
}

func TestResolveDefault(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("roaming app data comes from the shell on windows")
	}
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	got, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(dir, "bakkesmod", "bakkesmod", "dll", "bakkesmod.dll")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	dll := writeFile(t, "bakkesmod.dll", minimalImage(0x2022))
	exe := writeFile(t, "RocketLeague.exe", minimalImage(0x0022))
	junk := writeFile(t, "junk.dll", []byte("not a portable executable at all"))

	tests := []struct {
		name   string
		path   string
		verify bool
		want   error
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.dll"), false, ErrNotFound},
		{"directory", t.TempDir(), false, ErrNotFound},
		{"exists", junk, false, nil},
		{"dll image", dll, true, nil},
		{"exe image", exe, true, ErrNotDLL},
		{"garbage image", junk, true, ErrNotDLL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path, tt.verify)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate error = %v, want %v", err, tt.want)
			}
		})
	}
}
