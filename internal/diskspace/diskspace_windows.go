//go:build windows

package diskspace

import (
	"golang.org/x/sys/windows"
)

func usage(path string) (Space, error) {
	var free, total, totalFree uint64
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Space{}, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return Space{}, err
	}
	return Space{
		Path:           path,
		AvailableBytes: int64(free),
		TotalBytes:     int64(total),
	}, nil
}

func volumes() []string {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return []string{`C:\`}
	}
	var out []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, string(rune('A'+i))+`:\`)
		}
	}
	if len(out) == 0 {
		return []string{`C:\`}
	}
	return out
}
