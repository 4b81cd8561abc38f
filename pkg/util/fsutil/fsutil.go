package fsutil

import (
	"os"
	"path/filepath"
	"time"

	"github.com/keytap/keytap/pkg/util/errutil"
)

// Touch creates the target file or updates its timestamp
func Touch(target string) error {
	targetDirPath := FileDir(target)
	if _, err := os.Stat(targetDirPath); err != nil {
		if err := os.MkdirAll(targetDirPath, 0777); err != nil {
			return err
		}
	}

	tf, err := os.OpenFile(target, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}

	tf.Close()

	now := time.Now().UTC()
	return os.Chtimes(target, now, now)
}

// Exists returns true if the target file system object exists
func Exists(target string) bool {
	if _, err := os.Stat(target); err != nil {
		return false
	}

	return true
}

// ExeDir returns the directory information for the app
func ExeDir() string {
	exePath, err := os.Executable()
	errutil.FailOn(err)
	return filepath.Dir(exePath)
}

// FileDir returns the directory information for the given file
func FileDir(fileName string) string {
	dirName, err := filepath.Abs(filepath.Dir(fileName))
	errutil.FailOn(err)
	return dirName
}
