//go:build windows

package payload

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func appData() (string, error) {
	dir, err := windows.KnownFolderPath(windows.FOLDERID_RoamingAppData, 0)
	if err != nil || dir == "" {
		return "", errors.Wrap(ErrNoAppDir, "SHGetKnownFolderPath")
	}
	return dir, nil
}
