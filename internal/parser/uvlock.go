package parser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// UvLock mirrors the uv.lock schema
type UvLock struct {
	Version        int         `toml:"version"`
	Revision       int         `toml:"revision"`
	RequiresPython string      `toml:"requires-python"`
	Packages       []UvPackage `toml:"package"`
}

// UvPackage is a single [[package]] entry in uv.lock
type UvPackage struct {
	Name                 string                    `toml:"name"`
	Version              string                    `toml:"version"`
	Source               map[string]interface{}    `toml:"source"`
	Dependencies         []UvDependency            `toml:"dependencies"`
	OptionalDependencies map[string][]UvDependency `toml:"optional-dependencies"`
}

// UvDependency is a locked edge to another package
type UvDependency struct {
	Name   string   `toml:"name"`
	Extra  []string `toml:"extra"`
	Marker string   `toml:"marker"`
}

// Package finds a locked package by name, comparing normalized names
func (l *UvLock) Package(name string) *UvPackage {
	want := NormalizeName(name)
	for i := range l.Packages {
		if NormalizeName(l.Packages[i].Name) == want {
			return &l.Packages[i]
		}
	}
	return nil
}

// ParseUvLock reads and parses a uv.lock file
func ParseUvLock(path string) (*UvLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read uv.lock: %w", err)
	}
	return ParseUvLockBytes(data)
}

// ParseUvLockBytes parses uv.lock content
func ParseUvLockBytes(data []byte) (*UvLock, error) {
	var lock UvLock
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse uv.lock: %w", err)
	}

	if lock.Version != 1 {
		return nil, fmt.Errorf("unsupported uv.lock version: %d (expected 1)", lock.Version)
	}

	return &lock, nil
}

// LockfileManager handles generation of uv.lock files
type LockfileManager struct {
	TempDir string
}

// NewLockfileManager creates a new lockfile manager
func NewLockfileManager() *LockfileManager {
	return &LockfileManager{}
}

// GenerateLockfile runs `uv lock` against a copy of pyproject.toml in a temp
// directory and returns the path to the generated uv.lock
func (lm *LockfileManager) GenerateLockfile(pyprojectPath string) (string, error) {
	if _, err := exec.LookPath("uv"); err != nil {
		return "", fmt.Errorf("uv not found in PATH: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "pyextras-lock-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	lm.TempDir = tempDir

	data, err := os.ReadFile(pyprojectPath)
	if err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to read pyproject.toml: %w", err)
	}

	destPath := filepath.Join(tempDir, "pyproject.toml")
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to write pyproject.toml to temp: %w", err)
	}

	cmd := exec.Command("uv", "lock", "--quiet")
	cmd.Dir = tempDir
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("uv lock failed: %w: %s", err, out)
	}

	lockfilePath := filepath.Join(tempDir, "uv.lock")
	if _, err := os.Stat(lockfilePath); os.IsNotExist(err) {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("uv.lock was not generated")
	}

	return lockfilePath, nil
}

// Cleanup removes the temporary directory
func (lm *LockfileManager) Cleanup() error {
	if lm.TempDir != "" {
		return os.RemoveAll(lm.TempDir)
	}
	return nil
}

// FindUvLock returns the uv.lock next to a pyproject.toml, or "" if absent
func FindUvLock(pyprojectPath string) string {
	path := filepath.Join(filepath.Dir(pyprojectPath), "uv.lock")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
