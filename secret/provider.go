package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves "secretref:env:NAME" from the process environment.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value or ErrNotFound.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.lookup(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves "secretref:file:NAME" by reading NAME below a
// directory, typically a mounted secrets volume. Trailing newlines are
// trimmed.
type FileProvider struct {
	root *os.Root
}

// NewFileProvider opens dir for secret lookups.
func NewFileProvider(dir string) (*FileProvider, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("secret: open %s: %w", dir, err)
	}
	return &FileProvider{root: root}, nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads the named file. References may not leave the directory.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	name := filepath.Clean(ref)
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	data, err := p.root.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", name, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close releases the directory handle.
func (p *FileProvider) Close() error {
	return p.root.Close()
}

var (
	_ Provider = (*EnvProvider)(nil)
	_ Provider = (*FileProvider)(nil)
)
