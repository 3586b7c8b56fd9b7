package admission

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPoliciesDir is the policy directory under the genesis home.
const DefaultPoliciesDir = "policies"

// PolicyFile is a loaded Rego module.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Loader reads admission policies from a directory tree on any afero
// filesystem.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader returns a Loader rooted at baseDir on fs.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, baseDir: baseDir}
}

// LoadAll loads every admission policy under the base directory,
// recursively, skipping rego unit tests. A missing directory means no
// policies.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	ok, err := l.Exists()
	if err != nil {
		return nil, err
	}
	policies := []*PolicyFile{}
	if !ok {
		return policies, nil
	}

	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !isPolicyFile(path) {
			return err
		}
		p, err := l.LoadFile(path)
		if err != nil {
			return err
		}
		policies = append(policies, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load policies from %s: %w", l.baseDir, err)
	}
	return policies, nil
}

// LoadFile reads one policy file; its name is the base name without .rego.
func (l *Loader) LoadFile(path string) (*PolicyFile, error) {
	content, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}

// Exists reports whether the policies directory exists. An unset
// directory does not.
func (l *Loader) Exists() (bool, error) {
	if l.baseDir == "" {
		return false, nil
	}
	ok, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return false, fmt.Errorf("check policies directory: %w", err)
	}
	return ok, nil
}
