// Package source discovers the files of a repository that the pipeline can
// parse.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"codegraph/internal/pipeline"
)

// DefaultMaxFileSize skips generated or vendored blobs.
const DefaultMaxFileSize = 1 << 20

// defaultIgnores apply even without a .gitignore.
var defaultIgnores = []string{
	".git/",
	"node_modules/",
	"__pycache__/",
	".venv/",
	"venv/",
	"vendor/",
	"dist/",
	"build/",
}

// LanguageResolver maps a file path to a language name, or "" when the file
// is not supported. ast.Registry implements it.
type LanguageResolver interface {
	LanguageFor(path string) string
}

// File is one discovered source file.
type File struct {
	// Path is relative to the walk root with forward slashes. It becomes the
	// FILE entity name in the graph.
	Path     string
	AbsPath  string
	Language string
	Size     int64
}

// Load reads the file contents.
func (f File) Load() (string, error) {
	b, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Options tunes Walk.
type Options struct {
	// Excludes are extra gitignore-style patterns.
	Excludes    []string
	MaxFileSize int64
	Logger      *zap.Logger
}

// Walk returns every supported file under root in lexical order. The root
// .gitignore, the default ignores and opts.Excludes are honored.
func Walk(ctx context.Context, root string, langs LanguageResolver, opts Options) ([]File, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	matcher, err := loadIgnores(abs, opts.Excludes)
	if err != nil {
		return nil, err
	}

	var files []File
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == abs {
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.MatchesPath(rel) {
			return nil
		}

		language := langs.LanguageFor(path)
		if language == "" {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > opts.MaxFileSize {
			logger.Debug("skipping large file", zap.String("path", rel), zap.Int64("size", fi.Size()))
			return nil
		}

		files = append(files, File{Path: rel, AbsPath: path, Language: language, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	logger.Info("discovered source files", zap.String("root", abs), zap.Int("files", len(files)))
	return files, nil
}

func loadIgnores(root string, extra []string) (*ignore.GitIgnore, error) {
	lines := append([]string{}, defaultIgnores...)

	b, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	switch {
	case err == nil:
		lines = append(lines, strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")...)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read .gitignore: %w", err)
	}

	lines = append(lines, extra...)
	return ignore.CompileIgnoreLines(lines...), nil
}

// Inputs turns discovered files into pipeline inputs that read lazily.
func Inputs(files []File) []pipeline.FileInput {
	inputs := make([]pipeline.FileInput, len(files))
	for i, f := range files {
		inputs[i] = pipeline.FileInput{Path: f.Path, Language: f.Language, Load: f.Load}
	}
	return inputs
}
