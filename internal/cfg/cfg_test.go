package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		PagerMinSeverity:      "critical",
		StatsIntervalSeconds:  15,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.PagerMinSeverity != "critical" {
		t.Errorf("PagerMinSeverity = %q, want %q", c.PagerMinSeverity, "critical")
	}
	if c.StatsIntervalSeconds != 15 {
		t.Errorf("StatsIntervalSeconds = %d, want 15", c.StatsIntervalSeconds)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://beacon:pw@db/beacon",
		"-ingest-token", "tok-123",
		"-pager-webhook-url", "https://sms.example.com/hook",
		"-pager-recipient", "+15551234567",
		"-pager-min-severity", "high",
		"-stats-interval-seconds", "5",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://beacon:pw@db/beacon" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.IngestToken != "tok-123" {
		t.Errorf("IngestToken = %q", c.IngestToken)
	}
	if c.PagerWebhookURL != "https://sms.example.com/hook" {
		t.Errorf("PagerWebhookURL = %q", c.PagerWebhookURL)
	}
	if c.PagerRecipient != "+15551234567" {
		t.Errorf("PagerRecipient = %q", c.PagerRecipient)
	}
	if c.PagerMinSeverity != "high" {
		t.Errorf("PagerMinSeverity = %q, want %q", c.PagerMinSeverity, "high")
	}
	if c.StatsIntervalSeconds != 5 {
		t.Errorf("StatsIntervalSeconds = %d, want 5", c.StatsIntervalSeconds)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	withPager := validBase()
	withPager.PagerWebhookURL = "https://sms.example.com/hook"
	withPager.PagerRecipient = "+15551234567"

	pagerNoRecipient := validBase()
	pagerNoRecipient.PagerWebhookURL = "https://sms.example.com/hook"

	badSeverity := validBase()
	badSeverity.PagerMinSeverity = "urgent"

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1,
				PagerMinSeverity: "low", StatsIntervalSeconds: 1,
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 3600,
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name: "drain zero",
			cfg: Config{
				DrainSeconds: 0, ShutdownBudgetSeconds: 90, APIPort: 8080,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name: "drain above max",
			cfg: Config{
				DrainSeconds: 301, ShutdownBudgetSeconds: 302, APIPort: 8080,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name: "budget equals drain",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 60, APIPort: 8080,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name: "port zero",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 0,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name: "port above max",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 65536,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Pager fields
		{
			name:    "pager fully configured",
			cfg:     withPager,
			wantErr: false,
		},
		{
			name:      "pager webhook without recipient",
			cfg:       pagerNoRecipient,
			wantErr:   true,
			errSubstr: []string{"PAGER_RECIPIENT"},
		},
		{
			name:      "unknown pager severity",
			cfg:       badSeverity,
			wantErr:   true,
			errSubstr: []string{"PAGER_MIN_SEVERITY"},
		},
		// Stats interval boundaries
		{
			name: "stats interval zero",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 8080,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 0,
			},
			wantErr:   true,
			errSubstr: []string{"STATS_INTERVAL_SECONDS"},
		},
		{
			name: "stats interval above max",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 8080,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 3601,
			},
			wantErr:   true,
			errSubstr: []string{"STATS_INTERVAL_SECONDS"},
		},
		// Error accumulation: all fields invalid
		{
			name:    "all fields invalid",
			cfg:     Config{},
			wantErr: true,
			errSubstr: []string{
				"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT",
				"PAGER_MIN_SEVERITY", "STATS_INTERVAL_SECONDS",
			},
		},
		// Extreme values
		{
			name: "extreme negative values",
			cfg: Config{
				DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32,
				PagerMinSeverity: "critical", StatsIntervalSeconds: 15,
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, stats int
		webhook, recipient, minSev string
	}{
		{60, 90, 8080, 15, "", "", "critical"},
		{1, 2, 1, 1, "", "", "low"},
		{299, 300, 65535, 3600, "https://h", "+1555", "high"},
		{0, 0, 0, 0, "", "", ""},
		{-1, -1, -1, -1, "", "", "bogus"},
		{150, 100, 8080, 15, "https://h", "", "critical"},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "", "", "medium"},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", "critical"},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.stats, s.webhook, s.recipient, s.minSev)
	}

	severities := map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

	f.Fuzz(func(t *testing.T, drain, budget, port, stats int, webhook, recipient, minSev string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			PagerWebhookURL:       webhook,
			PagerRecipient:        recipient,
			PagerMinSeverity:      minSev,
			StatsIntervalSeconds:  stats,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		sevOK := severities[minSev]
		pagerOK := webhook == "" || recipient != ""
		statsOK := stats >= 1 && stats <= 3600

		allValid := drainOK && budgetOK && portOK && crossOK && sevOK && pagerOK && statsOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
