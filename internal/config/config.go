package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string   `mapstructure:"MIGRATIONS_DIR"`
	AuthIssuer        string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string   `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant     string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int      `mapstructure:"RATE_LIMIT_BURST"`
	BlobBackend       string   `mapstructure:"BLOB_BACKEND"`
	GCSBucket         string   `mapstructure:"GCS_BUCKET"`
	GCSCredentials    string   `mapstructure:"GCS_CREDENTIALS_FILE"`
	OrgName           string   `mapstructure:"ORG_NAME"`
	OrgLogoURL        string   `mapstructure:"ORG_LOGO_URL"`
	PDFTimeoutSeconds int      `mapstructure:"PDF_TIMEOUT_SECONDS"`
	EventBusBuffer    int      `mapstructure:"EVENT_BUS_BUFFER"`
	CacheTTLSeconds   int      `mapstructure:"CACHE_TTL_SECONDS"`
	BodyMapFrontURLs  []string `mapstructure:"BODY_MAP_FRONT_URLS"`
	BodyMapBackURLs   []string `mapstructure:"BODY_MAP_BACK_URLS"`
	// Remote stock diagrams are off unless explicitly configured.
	BodyMapStockFront string `mapstructure:"BODY_MAP_STOCK_FRONT_URL"`
	BodyMapStockBack  string `mapstructure:"BODY_MAP_STOCK_BACK_URL"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEFAULT_TENANT", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BLOB_BACKEND", "GCS_BUCKET", "GCS_CREDENTIALS_FILE",
	"ORG_NAME", "ORG_LOGO_URL", "PDF_TIMEOUT_SECONDS",
	"EVENT_BUS_BUFFER", "CACHE_TTL_SECONDS",
	"BODY_MAP_FRONT_URLS", "BODY_MAP_BACK_URLS",
	"BODY_MAP_STOCK_FRONT_URL", "BODY_MAP_STOCK_BACK_URL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("ORG_NAME", "CareHub")
	v.SetDefault("PDF_TIMEOUT_SECONDS", 30)
	v.SetDefault("EVENT_BUS_BUFFER", 256)
	v.SetDefault("CACHE_TTL_SECONDS", 30)

	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.BodyMapFrontURLs = splitList(cfg.BodyMapFrontURLs, v.GetString("BODY_MAP_FRONT_URLS"))
	cfg.BodyMapBackURLs = splitList(cfg.BodyMapBackURLs, v.GetString("BODY_MAP_BACK_URLS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in DEVELOPMENT mode: dev auth is active and every request is treated as admin")
	}

	return cfg, nil
}

// splitList normalizes comma separated env values. Viper may hand back a
// single unsplit element or elements that still carry surrounding spaces.
func splitList(current []string, raw string) []string {
	joined := strings.Join(current, ",")
	if joined == "" {
		joined = raw
	}
	var out []string
	for _, s := range strings.Split(joined, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	switch c.BlobBackend {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("BLOB_BACKEND=memory is not allowed in production")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when BLOB_BACKEND is \"gcs\"")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"gcs\", got %q", c.BlobBackend)
	}
	if c.PDFTimeoutSeconds <= 0 {
		return fmt.Errorf("PDF_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
