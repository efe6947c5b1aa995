package gitlog

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// DiscoverRepos walks root and returns every directory that contains a .git
// entry, without descending into the repositories themselves.
func DiscoverRepos(root string) ([]string, error) {
	var repos []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de == nil || !de.IsDir() {
				return nil
			}
			if de.Name() == ".git" {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
				repos = append(repos, path)
				return filepath.SkipDir
			}
			return nil
		},
	})
	return repos, err
}
