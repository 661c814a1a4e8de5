package vision

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var videoNode = regexp.MustCompile(`^/dev/video(\d+)$`)

// candidates returns the device indices to try for cfg, in order.
func candidates(cfg CameraConfig, glob func(string) ([]string, error)) []int {
	if cfg.Index >= 0 {
		return []int{cfg.Index}
	}
	paths, _ := glob("/dev/video*")
	var idx []int
	for _, p := range paths {
		m := videoNode.FindStringSubmatch(filepath.Clean(p))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		idx = append(idx, n)
	}
	if len(idx) == 0 {
		return fallbackIndices
	}
	sort.Ints(idx)
	return idx
}
