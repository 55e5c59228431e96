package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/core/inventory"
	"github.com/lmittmann/tint"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "launchpad.yaml"

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Hosts     []string        `mapstructure:"hosts"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Git       GitConfig       `mapstructure:"git"`
	App       AppConfig       `mapstructure:"app"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Log       LogConfig       `mapstructure:"log"`
}

// SSHConfig holds the connection settings shared by every host.
type SSHConfig struct {
	User           string        `mapstructure:"user"`
	KeyFile        string        `mapstructure:"key_file"`
	Passphrase     string        `mapstructure:"passphrase"`
	Port           int           `mapstructure:"port"`
	KnownHosts     string        `mapstructure:"known_hosts"`
	UseAgent       bool          `mapstructure:"use_agent"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// GitConfig holds the repository the application is delivered from.
type GitConfig struct {
	// PushURL is added as the local remote when commit initializes a repository.
	PushURL string `mapstructure:"push_url"`

	// PullURL is cloned on the server. An https URL avoids needing a deploy key there.
	PullURL string `mapstructure:"pull_url"`

	Remote string `mapstructure:"remote"`
	Branch string `mapstructure:"branch"`
}

// AppConfig holds where and how the application runs on the server.
type AppConfig struct {
	RemoteDir      string            `mapstructure:"remote_dir"`
	DockerDeploy   bool              `mapstructure:"docker_deploy"`
	ComposeCommand string            `mapstructure:"compose_command"`
	ComposeFile    string            `mapstructure:"compose_file"`
	Packages       map[string]string `mapstructure:"packages"`
}

// ArchiveConfig holds the file-transfer deployment settings.
type ArchiveConfig struct {
	Root       string   `mapstructure:"root"`
	Exclude    []string `mapstructure:"exclude"`
	StagingDir string   `mapstructure:"staging_dir"`
}

// InventoryConfig holds optional cloud host discovery.
type InventoryConfig struct {
	Provider           string `mapstructure:"provider"`
	Selector           string `mapstructure:"selector"`
	Region             string `mapstructure:"region"`
	Token              string `mapstructure:"token"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	Endpoint           string `mapstructure:"endpoint"`
}

// DockerConfig holds the local Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
// With an empty configPath, launchpad.yaml in the working directory is used when present.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("hosts", []string{})

	v.SetDefault("ssh.user", "root")
	v.SetDefault("ssh.key_file", "~/.ssh/id_rsa")
	v.SetDefault("ssh.passphrase", "")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.known_hosts", "~/.ssh/known_hosts")
	v.SetDefault("ssh.use_agent", true)
	v.SetDefault("ssh.connect_timeout", "10s")
	v.SetDefault("ssh.command_timeout", "10m")

	v.SetDefault("git.push_url", "")
	v.SetDefault("git.pull_url", "")
	v.SetDefault("git.remote", "origin")
	v.SetDefault("git.branch", "master")

	v.SetDefault("app.remote_dir", "~/app")
	v.SetDefault("app.docker_deploy", true)
	v.SetDefault("app.compose_command", "docker-compose")
	v.SetDefault("app.compose_file", "docker-compose.yml")
	v.SetDefault("app.packages", map[string]string{
		domain.RequirementDocker:  "docker.io",
		domain.RequirementGit:     "git",
		domain.RequirementCompose: "docker-compose",
	})

	v.SetDefault("archive.root", "")
	v.SetDefault("archive.exclude", []string{})
	v.SetDefault("archive.staging_dir", "/tmp")

	v.SetDefault("inventory.provider", "")
	v.SetDefault("inventory.selector", "")
	v.SetDefault("inventory.region", "")
	v.SetDefault("inventory.token", "")
	v.SetDefault("inventory.aws_access_key_id", "")
	v.SetDefault("inventory.aws_secret_access_key", "")
	v.SetDefault("inventory.endpoint", "")

	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	explicit := configPath != ""
	if !explicit {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			configPath = DefaultConfigFile
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
				if explicit {
					return nil, fmt.Errorf("config file %s not found", configPath)
				}
			default:
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Settings converts the configuration into validated task settings.
// The destination starts as remote; the dev task switches it.
func (c *Config) Settings() (domain.Settings, error) {
	s := domain.Settings{
		Hosts:          domain.MergeHosts(c.Hosts, nil),
		User:           c.SSH.User,
		KeyFile:        c.SSH.KeyFile,
		Port:           c.SSH.Port,
		KnownHostsFile: c.SSH.KnownHosts,
		UseAgent:       c.SSH.UseAgent,
		ConnectTimeout: c.SSH.ConnectTimeout,
		CommandTimeout: c.SSH.CommandTimeout,
		GitPushURL:     c.Git.PushURL,
		GitPullURL:     c.Git.PullURL,
		GitRemote:      c.Git.Remote,
		GitBranch:      c.Git.Branch,
		RemoteAppDir:   c.App.RemoteDir,
		DockerDeploy:   c.App.DockerDeploy,
		ComposeCommand: c.App.ComposeCommand,
		ComposeFile:    c.App.ComposeFile,
		Packages:       c.App.Packages,
		Archive: domain.ArchiveSettings{
			Root:       c.Archive.Root,
			Exclude:    c.Archive.Exclude,
			StagingDir: c.Archive.StagingDir,
		},
		Destination: domain.DestinationRemote,
	}
	if err := s.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// InventorySource converts the inventory section into a discovery source.
func (c *Config) InventorySource() inventory.Source {
	return inventory.Source{
		Provider:        inventory.Provider(strings.ToLower(c.Inventory.Provider)),
		Selector:        c.Inventory.Selector,
		Region:          c.Inventory.Region,
		Token:           c.Inventory.Token,
		AccessKeyID:     c.Inventory.AWSAccessKeyID,
		SecretAccessKey: c.Inventory.AWSSecretAccessKey,
		Endpoint:        c.Inventory.Endpoint,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing to w.
// Operator output goes to stdout, so diagnostics belong on stderr.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(handler)
}
