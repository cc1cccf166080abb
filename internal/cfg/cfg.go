package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Config holds Beacon application configuration, registered and
// validated the same way as the shared go-core config packages.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	IngestToken           string
	PagerWebhookURL       string
	PagerRecipient        string
	PagerMinSeverity      string
	StatsIntervalSeconds  int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.IngestToken, "ingest-token", "", "bearer token required on the ingest endpoint (empty = no auth)")
	fs.StringVar(&c.PagerWebhookURL, "pager-webhook-url", "", "SMS gateway webhook URL for paging (empty = paging disabled)")
	fs.StringVar(&c.PagerRecipient, "pager-recipient", "", "recipient phone number or group for pages")
	fs.StringVar(&c.PagerMinSeverity, "pager-min-severity", "critical", "minimum severity that triggers a page (low|medium|high|critical)")
	fs.IntVar(&c.StatsIntervalSeconds, "stats-interval-seconds", 15, "interval between stats broadcasts on the live-update channel (1..3600)")
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

	if event.Severity(c.PagerMinSeverity).Rank() == 0 {
		errs = append(errs, fmt.Errorf("invalid PAGER_MIN_SEVERITY %q (must be low|medium|high|critical)", c.PagerMinSeverity))
	}

	// Paging needs someone to page
	if c.PagerWebhookURL != "" && c.PagerRecipient == "" {
		errs = append(errs, errors.New("PAGER_RECIPIENT is required when PAGER_WEBHOOK_URL is set"))
	}

	if c.StatsIntervalSeconds <= 0 || c.StatsIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid STATS_INTERVAL_SECONDS %d (must be 1..3600)", c.StatsIntervalSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
