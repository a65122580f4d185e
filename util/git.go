package util

import (
	"os"
	"path/filepath"
)

// FindGitRoot walks up from dir looking for a .git entry. It returns dir
// itself when no repository is found.
func FindGitRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		cur = parent
	}
}

// WorkingRoot is FindGitRoot for the current directory.
func WorkingRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindGitRoot(cwd)
}
