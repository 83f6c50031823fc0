package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/codeintel/internal/registry"
	"github.com/starford/codeintel/internal/scanner"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Repo     RepoConfig        `yaml:"repo"`
	Registry RegistryConfig    `yaml:"registry"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Scan     ScanConfig        `yaml:"scan"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Repo.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// RegistryAbs returns the absolute location of the registry document.
func (c *Config) RegistryAbs() (string, error) {
	root, err := filepath.Abs(c.Repo.Root)
	if err != nil {
		return "", fmt.Errorf("resolve repo root: %w", err)
	}
	return filepath.Join(root, filepath.FromSlash(c.Registry.Path)), nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RepoConfig describes the repository being indexed.
type RepoConfig struct {
	Root             string `yaml:"root"`
	RespectGitignore bool   `yaml:"respect_gitignore"`
	// Workers bounds concurrent group scans; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Validate validates the repository configuration.
func (c *RepoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(64)),
	)
}

// RegistryConfig locates the registry document inside the repository.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.By(func(any) error {
			if filepath.IsAbs(c.Path) {
				return fmt.Errorf("must be relative to the repository root")
			}
			return nil
		})),
	)
}

// SQLiteConfig holds SQLite mirror configuration. An empty path disables the
// mirror.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the mirror is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ScanConfig lists the directory groups to scan.
type ScanConfig struct {
	Groups []scanner.Group `yaml:"groups"`
}

// Validate validates every group. Groups may share a category; their
// entities merge in declaration order.
func (c *ScanConfig) Validate() error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("scan: at least one group is required")
	}
	for i, g := range c.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("scan: group %d (%s): %w", i, g.Category, err)
		}
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Repo: RepoConfig{
			Root:             ".",
			RespectGitignore: true,
		},
		Registry: RegistryConfig{
			Path: registry.DefaultPath,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Scan: ScanConfig{
			Groups: scanner.DefaultGroups(),
		},
	}
}
