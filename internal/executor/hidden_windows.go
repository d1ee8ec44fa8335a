//go:build windows

package executor

import "golang.org/x/sys/windows"

// hidePath sets the Windows FILE_ATTRIBUTE_HIDDEN bit on path, so a
// staging directory or in-progress transfer never shows up in Explorer
// while a session owns it.
func hidePath(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, attrs|windows.FILE_ATTRIBUTE_HIDDEN)
}
