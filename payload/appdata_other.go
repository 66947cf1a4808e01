//go:build !windows

package payload

import (
	"os"

	"github.com/pkg/errors"
)

func appData() (string, error) {
	if dir := os.Getenv("APPDATA"); dir != "" {
		return dir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(ErrNoAppDir, err.Error())
	}
	return dir, nil
}
