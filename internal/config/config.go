package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Source   SourceConfig
	SMTP     SMTPConfig
	Files    FileConfig
	State    StateConfig
	Importer ImporterConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type CatalogConfig struct {
	APIKey      string
	BaseURL     string
	CategoryID  string
	WarehouseID string
	PageSize    int
	// Requests per minute against the catalog API; 0 disables throttling.
	RateLimitPerMin int
}

type SourceConfig struct {
	// Static access token; used when no refresh token is configured.
	AccessToken string
	// OAuth refresh-token flow credentials.
	RefreshToken string
	AppKey       string
	AppSecret    string
	FolderPath   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// NotificationEmail receives every run report.
	NotificationEmail string
}

type FileConfig struct {
	AllowedExtensions []string
	MaxFileSizeMB     int
}

type StateConfig struct {
	// Path to the sqlite file holding source state and run history.
	DatabasePath string
}

type ImporterConfig struct {
	// Optional reference sheet (EAN info) used to enrich import files and
	// resolve product image URLs.
	ReferenceSheetPath string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CATALOG_BASE_URL", "https://api.holded.com/api/invoicing/v1")
	viper.SetDefault("CATALOG_PAGE_SIZE", 100)
	viper.SetDefault("CATALOG_RATE_LIMIT_PER_MIN", 60)
	viper.SetDefault("SOURCE_FOLDER_PATH", "/inventory-updates")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("ALLOWED_EXTENSIONS", "csv,xlsx,xls")
	viper.SetDefault("MAX_FILE_SIZE_MB", 10)
	viper.SetDefault("STATE_DB_PATH", "stocksync.db")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Catalog: CatalogConfig{
			APIKey:          viper.GetString("CATALOG_API_KEY"),
			BaseURL:         viper.GetString("CATALOG_BASE_URL"),
			CategoryID:      viper.GetString("CATALOG_CATEGORY_ID"),
			WarehouseID:     viper.GetString("CATALOG_WAREHOUSE_ID"),
			PageSize:        viper.GetInt("CATALOG_PAGE_SIZE"),
			RateLimitPerMin: viper.GetInt("CATALOG_RATE_LIMIT_PER_MIN"),
		},
		Source: SourceConfig{
			AccessToken:  viper.GetString("SOURCE_ACCESS_TOKEN"),
			RefreshToken: viper.GetString("SOURCE_REFRESH_TOKEN"),
			AppKey:       viper.GetString("SOURCE_APP_KEY"),
			AppSecret:    viper.GetString("SOURCE_APP_SECRET"),
			FolderPath:   viper.GetString("SOURCE_FOLDER_PATH"),
		},
		SMTP: SMTPConfig{
			Host:              viper.GetString("SMTP_HOST"),
			Port:              viper.GetInt("SMTP_PORT"),
			Username:          viper.GetString("SMTP_USERNAME"),
			Password:          viper.GetString("SMTP_PASSWORD"),
			NotificationEmail: viper.GetString("NOTIFICATION_EMAIL"),
		},
		Files: FileConfig{
			AllowedExtensions: splitExtensions(viper.GetString("ALLOWED_EXTENSIONS")),
			MaxFileSizeMB:     viper.GetInt("MAX_FILE_SIZE_MB"),
		},
		State: StateConfig{
			DatabasePath: viper.GetString("STATE_DB_PATH"),
		},
		Importer: ImporterConfig{
			ReferenceSheetPath: viper.GetString("REFERENCE_SHEET_PATH"),
		},
	}
}

// Validate fails fast when required credentials are missing, so a
// misconfigured deployment dies at startup instead of halfway through a run.
func (c *Config) Validate() error {
	var missing []string

	if c.Catalog.APIKey == "" {
		missing = append(missing, "CATALOG_API_KEY")
	}
	if c.Source.AccessToken == "" && c.Source.RefreshToken == "" {
		missing = append(missing, "SOURCE_ACCESS_TOKEN or SOURCE_REFRESH_TOKEN")
	}
	if c.Source.RefreshToken != "" && (c.Source.AppKey == "" || c.Source.AppSecret == "") {
		missing = append(missing, "SOURCE_APP_KEY/SOURCE_APP_SECRET (required with SOURCE_REFRESH_TOKEN)")
	}
	if c.SMTP.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.SMTP.Username == "" {
		missing = append(missing, "SMTP_USERNAME")
	}
	if c.SMTP.NotificationEmail == "" {
		missing = append(missing, "NOTIFICATION_EMAIL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MaxFileSizeBytes converts the configured limit to bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Files.MaxFileSizeMB) * 1024 * 1024
}

func splitExtensions(raw string) []string {
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			exts = append(exts, p)
		}
	}
	return exts
}
