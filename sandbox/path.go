package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolvePath joins rel onto root and rejects any result that escapes root,
// whether via ".." segments or an absolute path pointing elsewhere. A path
// equal to root itself is allowed (§4.6's root-plus-separator-prefix rule).
func resolvePath(root, rel string) (string, error) {
	var joined string
	if filepath.IsAbs(rel) {
		joined = filepath.Clean(rel)
	} else {
		joined = filepath.Clean(filepath.Join(root, rel))
	}

	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox root: %w", err)
	}

	if absJoined != absRoot && !strings.HasPrefix(absJoined, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes sandbox root", rel)
	}
	return absJoined, nil
}
