package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"satellitor-desktop/internal/geo"
)

// CaptureFilename names a saved capture
// Format: capture_{lat}_{lng}_z{zoom}_{quadkey}.png
func CaptureFilename(c geo.Coordinate, zoom int) string {
	return fmt.Sprintf("capture_%s_%s_z%d_%s.png",
		SanitizeCoordinate(c.Latitude, true),
		SanitizeCoordinate(c.Longitude, false),
		zoom,
		GenerateQuadkey(c, zoom))
}

// UniquePath returns dir/name, or dir/"base (n).ext" for the first n that
// does not exist yet
func UniquePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; n < 10000; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		path := filepath.Join(dir, candidate)

		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free filename for %s in %s", name, dir)
}
