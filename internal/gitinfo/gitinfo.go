// Package gitinfo reads module identity from the repository holding the
// content: the module name from the origin remote and the HEAD revision.
package gitinfo

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info describes the repository a content directory lives in.
type Info struct {
	Module   string
	Revision string
	Branch   string
}

var invalidModuleChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Inspect opens the repository containing dir, searching parent directories.
func Inspect(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Info{}, fmt.Errorf("open repository at %s: %w", dir, err)
	}

	var info Info
	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		info.Module = ModuleFromURL(remote.Config().URLs[0])
	}
	if info.Module == "" {
		wt, err := repo.Worktree()
		if err == nil {
			info.Module = sanitize(filepath.Base(wt.Filesystem.Root()))
		}
	}

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Empty repository.
	case err != nil:
		return info, fmt.Errorf("resolve HEAD: %w", err)
	default:
		info.Revision = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}
	return info, nil
}

// ModuleFromURL derives a module name from a remote URL, e.g.
// "git@host:org/api-docs.git" becomes "api-docs".
func ModuleFromURL(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	return sanitize(path.Base(strings.ReplaceAll(url, ":", "/")))
}

func sanitize(name string) string {
	name = invalidModuleChars.ReplaceAllString(name, "-")
	return strings.Trim(name, "-.")
}

// ResolveModule returns module unless it is "auto", in which case the name is
// read from the repository holding contentDir.
func ResolveModule(module, auto, contentDir string) (string, error) {
	if module != auto {
		return module, nil
	}
	info, err := Inspect(contentDir)
	if err != nil {
		return "", err
	}
	if info.Module == "" {
		return "", fmt.Errorf("cannot derive module name for %s", contentDir)
	}
	return info.Module, nil
}
