package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	integrations "github.com/goliatone/go-integrations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	embeddedRoot  = "data/sql/migrations"
	defaultSource = "go-integrations"
)

// The embedded tree keeps the postgres schema at the root and the sqlite
// variants in a subdirectory. Both carry the credential and health audit
// tables as numbered up/down pairs.
var dialectLayouts = []struct {
	dialect string
	subdir  string
}{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

// RegisterFunc is the host-side callback that receives each dialect's
// migration filesystem, typically persistence.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the named dialects. A host
// running sqlite only has no reason to hand postgres files to its migrator.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// Filesystems resolves the per-dialect migration filesystems from the
// embedded tree and verifies each one carries at least one up migration.
func Filesystems() ([]FilesystemSpec, error) {
	base, err := fs.Sub(integrations.GetMigrationsFS(), embeddedRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve embedded migration tree: %w", err)
	}

	specs := make([]FilesystemSpec, 0, len(dialectLayouts))
	for _, layout := range dialectLayouts {
		fsys := fs.FS(base)
		path := embeddedRoot
		if layout.subdir != "." {
			fsys, err = fs.Sub(base, layout.subdir)
			if err != nil {
				return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", layout.dialect, err)
			}
			path = embeddedRoot + "/" + layout.subdir
		}
		matches, globErr := fs.Glob(fsys, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", layout.dialect, path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", layout.dialect, path)
		}
		specs = append(specs, FilesystemSpec{
			Dialect: layout.dialect,
			Path:    path,
			FS:      fsys,
		})
	}
	return specs, nil
}

// Register hands each validated dialect filesystem to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSource,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, badRegistration("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&reg)
	}
	if strings.TrimSpace(reg.SourceLabel) == "" {
		return reg, badRegistration("migrations: source label is required")
	}
	targets := normalizeDialects(reg.ValidationTargets)
	if len(targets) == 0 {
		return reg, badRegistration("migrations: validation targets are required")
	}

	for _, fsys := range reg.Filesystems {
		if !slices.Contains(targets, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func badRegistration(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode("INTEGRATIONS_BAD_INPUT")
}
