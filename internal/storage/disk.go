package storage

import (
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the total size of regular files under dir.
// A missing directory counts as zero.
func DiskUsageBytes(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}
