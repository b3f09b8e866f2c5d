// Package fs holds some utilities for manipulating the file system
package fs

import (
	"fmt"
	"os"
	"os/user"
	"path"
)

const (
	defaultDirectoryPermission = 0740
	secureFilePermission       = 0600
)

// HomeFolder returns the home folder of the current user, or the working
// directory when it cannot be determined.
func HomeFolder() string {
	u, err := user.Current()
	if err != nil {
		return "."
	}
	return u.HomeDir
}

// DefaultConfigFolder is where keys and databases live unless --folder is set.
func DefaultConfigFolder() string {
	return path.Join(HomeFolder(), ".stakedkg")
}

// CreateSecureFolder creates folder with owner-only permissions if it does
// not exist yet. An existing folder granting more than these permissions is
// reported as an error so the caller can decide whether it is fatal.
func CreateSecureFolder(folder string) (string, error) {
	exists, err := Exists(folder)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.MkdirAll(folder, defaultDirectoryPermission); err != nil {
			return "", err
		}
		return folder, nil
	}

	info, err := os.Lstat(folder)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s exists and is not a folder", folder)
	}
	if perm := info.Mode().Perm(); perm&^defaultDirectoryPermission != 0 {
		return folder, fmt.Errorf("folder %s has permission %#o instead of %#o", folder, perm, defaultDirectoryPermission)
	}
	return folder, nil
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates (or truncates) a file readable and writable by its
// owner only and returns the file handle.
func CreateSecureFile(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, secureFilePermission)
	if err != nil {
		return nil, err
	}
	// OpenFile does not change the mode of an existing file
	if err := fd.Chmod(secureFilePermission); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}

// WriteSecureFile writes data to a file created with CreateSecureFile.
func WriteSecureFile(file string, data []byte) error {
	fd, err := CreateSecureFile(file)
	if err != nil {
		return err
	}
	if _, err := fd.Write(data); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}

// Files returns the list of file names included in the given path or error if
// any.
func Files(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, path.Join(folderPath, e.Name()))
		}
	}
	return files, nil
}
