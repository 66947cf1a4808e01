// Package payload locates the DLL to inject and checks it before any
// process is touched.
package payload

import (
	"os"
	"path/filepath"

	"github.com/Binject/debug/pe"
	"github.com/pkg/errors"
)

// imageFileDLL is IMAGE_FILE_DLL in the COFF file header characteristics.
const imageFileDLL = 0x2000

var (
	ErrNotFound = errors.New("payload dll not found")
	ErrNotDLL   = errors.New("payload is not a PE dll")
	ErrNoAppDir = errors.New("can't locate roaming application data directory")
)

// DefaultRelPath is where the BakkesMod installer puts the DLL, relative to
// the roaming application data directory.
var DefaultRelPath = filepath.Join("bakkesmod", "bakkesmod", "dll", "bakkesmod.dll")

// Resolve returns the absolute payload path. An empty override selects the
// default location under roaming application data.
func Resolve(override string) (string, error) {
	path := override
	if path == "" {
		dir, err := appData()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, DefaultRelPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "can't make %s absolute", path)
	}
	return abs, nil
}

// Validate reports ErrNotFound unless path is an existing regular file. With
// verifyImage it also requires a PE image flagged as a DLL.
func Validate(path string, verifyImage bool) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(ErrNotFound, err.Error())
	}
	if !fi.Mode().IsRegular() {
		return errors.Wrapf(ErrNotFound, "%s is not a regular file", path)
	}
	if verifyImage {
		return checkImage(path)
	}
	return nil
}

func checkImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(ErrNotFound, err.Error())
	}
	defer f.Close()

	img, err := pe.NewFile(f)
	if err != nil {
		return errors.Wrapf(ErrNotDLL, "%s: %v", path, err)
	}
	if img.FileHeader.Characteristics&imageFileDLL == 0 {
		return errors.Wrapf(ErrNotDLL, "%s has no IMAGE_FILE_DLL flag", path)
	}
	return nil
}
