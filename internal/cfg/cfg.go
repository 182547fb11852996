package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
)

// Config adds medtriage-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ModelDir              string
	DatabaseURL           string
	DBMaxConns            int
	DBSlowQueryMillis     int
	SlackWebhookURL       string
	APITokens             string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ModelDir, "model-dir", "models", "directory holding the trained model artifacts")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory audit store)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 10, "maximum PostgreSQL pool connections (1..100)")
	fs.IntVar(&c.DBSlowQueryMillis, "db-slow-query-ms", 100, "log queries slower than this many milliseconds (1..60000)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency notifications (empty = disabled)")
	fs.StringVar(&c.APITokens, "api-token", "", "comma-separated bearer tokens guarding /api/v1 (empty = open)")
}

// Tokens returns the configured API tokens with blanks removed.
func (c *Config) Tokens() []string {
	var out []string
	for _, t := range strings.Split(c.APITokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if strings.TrimSpace(c.ModelDir) == "" {
		errs = append(errs, errors.New("MODEL_DIR is required"))
	}

	if c.DBMaxConns <= 0 || c.DBMaxConns > 100 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be 1..100)", c.DBMaxConns))
	}
	if c.DBSlowQueryMillis <= 0 || c.DBSlowQueryMillis > 60000 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY_MS %d (must be 1..60000)", c.DBSlowQueryMillis))
	}

	// Webhook is optional but must be an absolute https URL when set
	if c.SlackWebhookURL != "" {
		u, err := url.Parse(c.SlackWebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, errors.New("SLACK_WEBHOOK_URL must be an https URL"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
