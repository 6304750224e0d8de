//go:build !windows

package filesystem

import "os"

// osReplace: POSIX 下 rename 在同一文件系统内为原子操作。
func osReplace(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncDir 对父目录 fsync，使 rename 的目录项变更持久化。
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
