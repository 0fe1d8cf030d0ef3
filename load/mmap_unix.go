//go:build unix

package load

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// mapFile maps the file at path read-only. Files that cannot be mapped, such as pipes, are read into
// memory instead. The returned function releases the contents.
func mapFile(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		data, err := io.ReadAll(f)
		return data, func() {}, err
	}

	size := info.Size()
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("%v: file too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mapping %v: %w", path, err)
	}
	return data, func() {
		if err := unix.Munmap(data); err != nil {
			Logger().Warn("unmapping module", zap.String("path", path), zap.Error(err))
		}
	}, nil
}
