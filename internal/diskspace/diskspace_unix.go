//go:build !windows

package diskspace

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func usage(path string) (Space, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Space{}, err
	}
	return Space{
		Path:           path,
		AvailableBytes: int64(stat.Bavail) * int64(stat.Bsize),
		TotalBytes:     int64(stat.Blocks) * int64(stat.Bsize),
	}, nil
}

// volumes parses /proc/mounts for real (device-backed) mount points.
// Pseudo filesystems are skipped; a parse failure degrades to "/".
func volumes() []string {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return []string{"/"}
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		device, mount := fields[0], fields[1]
		if !strings.HasPrefix(device, "/dev/") {
			continue
		}
		out = append(out, strings.ReplaceAll(mount, `\040`, " "))
	}
	if len(out) == 0 {
		return []string{"/"}
	}
	return out
}
