package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestWalk(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":        "ignored/\n*.gen.py\r\n",
		"main.py":           "def main():\n    pass\n",
		"pkg/util.go":       "package pkg\n",
		"web/app.ts":        "export function app() {}\n",
		"README.md":         "# readme\n",
		"node_modules/x.js": "function x() {}\n",
		"ignored/skip.py":   "def skip(): pass\n",
		"models.gen.py":     "class Gen: pass\n",
		"secret/keys.py":    "KEY = 1\n",
		"big.py":            strings.Repeat("#", 2048),
	})

	files, err := Walk(context.Background(), root, ast.DefaultRegistry(), Options{
		Excludes:    []string{"secret/"},
		MaxFileSize: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py", "pkg/util.go", "web/app.ts"}, paths(files))

	langs := map[string]string{}
	for _, f := range files {
		langs[f.Path] = f.Language
	}
	assert.Equal(t, map[string]string{"main.py": "python", "pkg/util.go": "go", "web/app.ts": "typescript"}, langs)
}

func TestWalkWithoutGitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":              "def a(): pass\n",
		".venv/lib/site.py": "def site(): pass\n",
		"__pycache__/a.py":  "",
	})

	files, err := Walk(context.Background(), root, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, paths(files))
}

func TestWalkErrors(t *testing.T) {
	_, err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), ast.DefaultRegistry(), Options{})
	assert.Error(t, err)

	root := writeTree(t, map[string]string{"a.py": ""})
	_, err = Walk(context.Background(), filepath.Join(root, "a.py"), ast.DefaultRegistry(), Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Walk(ctx, root, ast.DefaultRegistry(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInputsLoadLazily(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "def a(): pass\n"})
	files, err := Walk(context.Background(), root, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)

	inputs := Inputs(files)
	require.Len(t, inputs, 1)
	assert.Equal(t, "a.py", inputs[0].Path)
	assert.Empty(t, inputs[0].Source)

	src, err := inputs[0].Load()
	require.NoError(t, err)
	assert.Equal(t, "def a(): pass\n", src)
}
