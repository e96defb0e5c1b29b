package config

import (
	"log"

	"github.com/spf13/viper"
)

// SourceConfig is the shared default source-database credential set, used
// for tenants that don't carry their own and as the fallback when a
// tenant's sealed password can't be opened.
type SourceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// FallbackTenant is one entry of the degraded-mode tenant list used when
// tenant discovery itself fails.
type FallbackTenant struct {
	OrgID                int    `mapstructure:"org_id"`
	Name                 string `mapstructure:"name"`
	SchemaName           string `mapstructure:"schema_name"`
	FiscalYearStartMonth int    `mapstructure:"fiscal_year_start_month"`
}

type ETLConfig struct {
	SalesWindowDays      int              `mapstructure:"sales_window_days"`
	CashFlowWindowMonths int              `mapstructure:"cash_flow_window_months"`
	FallbackTenants      []FallbackTenant `mapstructure:"fallback_tenants"`
}

// ScheduleConfig carries the cron specs for the two scheduled ETL passes.
type ScheduleConfig struct {
	Evolution string `mapstructure:"evolution"`
	Vital     string `mapstructure:"vital"`
}

type HubSpotConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type QuickBooksConfig struct {
	BaseURL string `mapstructure:"base_url"`
	RealmID string `mapstructure:"realm_id"`
	Token   string `mapstructure:"token"`
}

type ZoomConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type BigQueryConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Dataset         string `mapstructure:"dataset"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type EmailConfig struct {
	From            string   `mapstructure:"from"`
	SMTPHost        string   `mapstructure:"smtp_host"`
	SMTPPort        int      `mapstructure:"smtp_port"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	AlertRecipients []string `mapstructure:"alert_recipients"`
}

type Config struct {
	DatabaseURL string           `mapstructure:"database_url"`
	ServerPort  string           `mapstructure:"server_port"`
	JWTSecret   string           `mapstructure:"jwt_secret"`
	Source      SourceConfig     `mapstructure:"source"`
	ETL         ETLConfig        `mapstructure:"etl"`
	Schedule    ScheduleConfig   `mapstructure:"schedule"`
	HubSpot     HubSpotConfig    `mapstructure:"hubspot"`
	QuickBooks  QuickBooksConfig `mapstructure:"quickbooks"`
	Zoom        ZoomConfig       `mapstructure:"zoom"`
	BigQuery    BigQueryConfig   `mapstructure:"bigquery"`
	Email       EmailConfig      `mapstructure:"email"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.ETL.SalesWindowDays == 0 {
		config.ETL.SalesWindowDays = 30
	}
	if config.ETL.CashFlowWindowMonths == 0 {
		config.ETL.CashFlowWindowMonths = 12
	}
	if config.Schedule.Evolution == "" {
		config.Schedule.Evolution = "0 2 * * *"
	}
	if config.Schedule.Vital == "" {
		config.Schedule.Vital = "0 */6 * * *"
	}
	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.HubSpot.BaseURL == "" {
		config.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if config.QuickBooks.BaseURL == "" {
		config.QuickBooks.BaseURL = "https://quickbooks.api.intuit.com"
	}
	if config.Zoom.BaseURL == "" {
		config.Zoom.BaseURL = "https://api.zoom.us/v2"
	}

	return &config
}
