package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultDest returns <source>_EDIT<ext> next to the source.
func DefaultDest(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + "_EDIT" + ext
}

// ResolveDest validates a requested output path for source. An empty dest
// selects DefaultDest and a dest without an extension takes the source's.
func ResolveDest(source, dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		dest = DefaultDest(source)
	}
	if !filepath.IsAbs(dest) {
		return "", fmt.Errorf("dest_path must be absolute")
	}
	if filepath.Ext(dest) == "" {
		dest += filepath.Ext(source)
	}
	if filepath.Clean(dest) == filepath.Clean(source) {
		return "", fmt.Errorf("dest_path must differ from the source media")
	}
	if err := ValidateOutputDir(filepath.Dir(dest)); err != nil {
		return "", err
	}
	return dest, nil
}

// DefaultEDLPath returns <source without extension>.edl.
func DefaultEDLPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".edl"
}
