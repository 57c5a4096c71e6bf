// Package config provides configuration for the stream check runner and the
// e2e test suite. It loads CLI flags and environment variables, validates
// them and applies defaults.
//
// CLI flags select the browser (--device, --headless) and the search query
// (--query). Environment variables provide everything else, including the
// optional S3 bucket screenshots are uploaded to.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/streamcheck/internal/logutil"
	"github.com/kuitang/streamcheck/internal/urlutil"
)

const (
	DefaultBaseURL       = "https://www.twitch.tv"
	DefaultDevice        = "Pixel 5"
	DefaultQuery         = "Chess"
	DefaultScreenshotDir = "./artifacts/screenshots/"

	defaultRegion = "auto"
)

// Config holds all runner configuration.
type Config struct {
	// Browser
	Device         string        // Playwright device descriptor name, e.g. "Pixel 5"
	Headless       bool          // --headless
	Channel        string        // browser distribution channel, "chrome" for installed Chrome
	DefaultTimeout time.Duration // Playwright default action timeout

	// Target site and flow
	BaseURL      string
	SearchQuery  string
	VideoTimeout time.Duration // how long the video gets to start playing
	ScrollCount  int
	ScrollPause  time.Duration

	// Output
	ScreenshotDir string
	LogDir        string
	ReportPath    string

	// Artifact upload (S3-compatible). Disabled with --no-upload or when
	// ARTIFACT_BUCKET is unset.
	NoUpload           bool
	ArtifactBucket     string // ARTIFACT_BUCKET
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	ArtifactPublicURL  string // ARTIFACT_PUBLIC_URL

	// ArtifactDir keeps a copy of every screenshot on disk when upload is
	// disabled. Empty keeps only the screenshot directory.
	ArtifactDir string // ARTIFACT_DIR
}

// Flags are the CLI-controlled settings.
type Flags struct {
	Device   string
	Headless bool
	Query    string
	NoUpload bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// RegisterFlags registers --device, --headless, --query and --no-upload on fs.
// The returned Flags are populated once fs is parsed. Defaults come from
// PLAYWRIGHT_DEVICE, HEADLESS and SEARCH_QUERY.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Device, "device", getEnvOrDefault("PLAYWRIGHT_DEVICE", DefaultDevice),
		`Playwright device descriptor to emulate (e.g. "Pixel 5", "iPhone 12")`)
	fs.BoolVar(&f.Headless, "headless", parseBoolOrDefault("HEADLESS", false), "Run Chrome in headless mode")
	fs.StringVar(&f.Query, "query", getEnvOrDefault("SEARCH_QUERY", DefaultQuery), "Category to search for")
	fs.BoolVar(&f.NoUpload, "no-upload", false, "Do not upload screenshots even if ARTIFACT_BUCKET is set")
	return f
}

// ParseFlags registers the flags on the default FlagSet and parses os.Args.
func ParseFlags() Flags {
	f := RegisterFlags(flag.CommandLine)
	flag.Parse()
	return *f
}

// LoadConfig loads configuration from environment variables and flag values.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}

	// Browser
	cfg.Device = strings.TrimSpace(f.Device)
	cfg.Headless = f.Headless
	cfg.Channel = getEnvOrDefault("BROWSER_CHANNEL", "chrome")
	cfg.DefaultTimeout = parseDurationOrDefault("DEFAULT_TIMEOUT", 30*time.Second)

	// Target site and flow
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("BASE_URL", DefaultBaseURL), "/")
	cfg.SearchQuery = strings.TrimSpace(f.Query)
	cfg.VideoTimeout = parseDurationOrDefault("VIDEO_TIMEOUT", 30*time.Second)
	cfg.ScrollCount = parseIntOrDefault("SCROLL_COUNT", 2)
	cfg.ScrollPause = parseDurationOrDefault("SCROLL_PAUSE", 800*time.Millisecond)

	// Output
	cfg.ScreenshotDir = getEnvOrDefault("SCREENSHOT_DIR", DefaultScreenshotDir)
	cfg.LogDir = getEnvOrDefault("LOG_DIR", "logs")
	cfg.ReportPath = getEnvOrDefault("REPORT_PATH", "./artifacts/report.html")

	// Artifact upload
	cfg.NoUpload = f.NoUpload
	cfg.ArtifactBucket = strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET"))
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.ArtifactPublicURL = strings.TrimSpace(os.Getenv("ARTIFACT_PUBLIC_URL"))
	cfg.ArtifactDir = strings.TrimSpace(os.Getenv("ARTIFACT_DIR"))
	if cfg.ArtifactPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.ArtifactBucket != "" {
		cfg.ArtifactPublicURL = urlutil.BuildAbsolute(cfg.AWSEndpointS3, cfg.ArtifactBucket)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Device == "" {
		errs = append(errs, "--device must not be empty")
	}
	if c.SearchQuery == "" {
		errs = append(errs, "--query must not be empty")
	}

	if !urlutil.IsAbsoluteHTTP(c.BaseURL) {
		errs = append(errs, fmt.Sprintf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}

	if c.DefaultTimeout <= 0 {
		errs = append(errs, "DEFAULT_TIMEOUT must be positive")
	}
	if c.VideoTimeout <= 0 {
		errs = append(errs, "VIDEO_TIMEOUT must be positive")
	}
	if c.ScrollCount < 0 {
		errs = append(errs, "SCROLL_COUNT must not be negative")
	}
	if c.ScrollPause < 0 {
		errs = append(errs, "SCROLL_PAUSE must not be negative")
	}

	if c.UploadEnabled() {
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when ARTIFACT_BUCKET is set (or use --no-upload)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when ARTIFACT_BUCKET is set (or use --no-upload)")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UploadEnabled reports whether screenshots are uploaded to the artifact bucket.
func (c *Config) UploadEnabled() bool {
	return !c.NoUpload && c.ArtifactBucket != ""
}

// PrintStartupSummary prints a human-readable summary of the configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "streamcheck starting...")
	fmt.Fprintf(w, "  Target:  %s (query %q)\n", c.BaseURL, c.SearchQuery)

	mode := "headed"
	if c.Headless {
		mode = "headless"
	}
	fmt.Fprintf(w, "  Browser: %s, %s, device %q\n", c.Channel, mode, c.Device)

	if c.UploadEnabled() {
		fmt.Fprintf(w, "  Upload:  s3://%s (endpoint: %s)\n", c.ArtifactBucket, c.AWSEndpointS3)
	} else if c.ArtifactDir != "" {
		fmt.Fprintf(w, "  Upload:  disabled, archiving to %s\n", c.ArtifactDir)
	} else {
		fmt.Fprintln(w, "  Upload:  disabled")
	}
	fmt.Fprintf(w, "  Shots:   %s\n", c.ScreenshotDir)
	fmt.Fprintf(w, "  Report:  %s\n", c.ReportPath)
	fmt.Fprintln(w, "")
}

// LogValue implements slog.LogValuer. Credentials are redacted.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("device", c.Device),
		slog.Bool("headless", c.Headless),
		slog.String("channel", c.Channel),
		slog.String("base_url", c.BaseURL),
		slog.String("query", c.SearchQuery),
		slog.Duration("video_timeout", c.VideoTimeout),
		slog.String("screenshot_dir", c.ScreenshotDir),
		slog.Bool("upload", c.UploadEnabled()),
		slog.String("bucket", c.ArtifactBucket),
		slog.String("aws_access_key_id", logutil.RedactValue("aws_access_key_id", c.AWSAccessKeyID)),
		slog.String("aws_secret_access_key", logutil.RedactValue("aws_secret_access_key", c.AWSSecretAccessKey)),
	)
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
