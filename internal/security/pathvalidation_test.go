package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "reports")
	outside := filepath.Join(tmpDir, "elsewhere")
	require.NoError(t, os.MkdirAll(safeDir, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safeDir, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in directory", filepath.Join(safeDir, "walk.png"), false},
		{"nested new file", filepath.Join(safeDir, "a", "b", "walk.png"), false},
		{"dot dot escape", filepath.Join(safeDir, "..", "walk.png"), true},
		{"sibling directory", filepath.Join(outside, "walk.png"), true},
		{"symlinked parent", filepath.Join(safeDir, "link", "walk.png"), true},
		{"relative escape", "../../../etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscapes)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathMissingSafeDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(missing, "x"), missing))
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()

	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(b, "chart.html"), []string{a, b}))
	assert.ErrorIs(t, ValidatePathWithinAllowedDirs("/etc/passwd", []string{a, b}), ErrPathEscapes)
	assert.Error(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "x"), nil))
}

func TestValidateOutputPath(t *testing.T) {
	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "gait.png")))
	assert.NoError(t, ValidateOutputPath("gait.png"))
	assert.Error(t, ValidateOutputPath("/etc/gait.png"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hallway walk #2", "hallway_walk_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"run_2026-05-04.csv", "run_2026-05-04.csv"},
		{"", "unnamed"},
		{"///", "unnamed"},
		{strings.Repeat("a", 300), strings.Repeat("a", 128)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}
