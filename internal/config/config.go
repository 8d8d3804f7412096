package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// ErrInvalidConfig wraps every problem found while loading the configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// defaultCommandCountries is what /all covers when TARGET_COUNTRIES is unset.
const defaultCommandCountries = "fra,ita,esp,prt"

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`     // trace|debug|info|warn|error
	Format string `env:"LOG_FORMAT" envDefault:"console"` // console|json
	Dir    string `env:"LOG_DIR"`                         // empty disables the rotating file
}

type AppConfig struct {
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatIDRaw   string `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIEndpoint string `env:"TELEGRAM_API_ENDPOINT" envDefault:"https://api.telegram.org/bot%s/%s"`

	VFSUsername  string `env:"VFS_USERNAME"`
	VFSPassword  string `env:"VFS_PASSWORD"`
	VFSAPIURL    string `env:"VFS_API_URL" envDefault:"https://lift.vfsglobal.com/prod/api/v1"`
	VFSPortalURL string `env:"VFS_PORTAL_URL" envDefault:"https://visa.vfsglobal.com"`

	OriginCountry      string `env:"ORIGIN_COUNTRY" envDefault:"vnm"`
	TargetCountriesRaw string `env:"TARGET_COUNTRIES"`
	TargetCountry      string `env:"TARGET_COUNTRY" envDefault:"fra"`
	VisaCategory       string `env:"VISA_CATEGORY" envDefault:"Tourist"`
	VisaSubcategory    string `env:"VISA_SUBCATEGORY" envDefault:"Tourist Visa"`

	// Hour of the day (UTC+7) in which the digest goes out.
	DailyReportHour int    `env:"DAILY_REPORT_HOUR" envDefault:"8"`
	Language        string `env:"BOT_LANGUAGE" envDefault:"vi"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	DetailTimeout  time.Duration `env:"DETAIL_TIMEOUT" envDefault:"15s"`
	NotifyTimeout  time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"15s"`
	CountryPause   time.Duration `env:"COUNTRY_PAUSE" envDefault:"3s"`
	CommandPause   time.Duration `env:"COMMAND_PAUSE" envDefault:"2s"`
	UpdateWindow   time.Duration `env:"UPDATE_WINDOW" envDefault:"310s"`

	PushgatewayURL string `env:"PUSHGATEWAY_URL"`

	Log LogConfig

	// Derived by normalize.
	TelegramChatID   int64    `env:"-"`
	TargetCountries  []string `env:"-"` // scheduled checks
	CommandCountries []string `env:"-"` // chat /all and /status
}

func parseCountries(raw string) []string {
	var countries []string
	seen := make(map[string]bool)
	for code := range strings.SplitSeq(raw, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(code))
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		countries = append(countries, trimmed)
	}
	return countries
}

// loadEnvFiles loads the given dotenv files (".env" when none are given).
// A missing file is fine: in CI every setting comes from the real environment.
func loadEnvFiles(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ParseConfiguration loads dotenv files, then reads the process environment.
func ParseConfiguration(envFiles ...string) (*AppConfig, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	return FromEnv()
}

// FromEnv reads, normalizes and validates the configuration from the environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.TelegramBotToken = strings.TrimSpace(c.TelegramBotToken)
	c.TelegramChatIDRaw = strings.TrimSpace(c.TelegramChatIDRaw)
	c.VFSUsername = strings.TrimSpace(c.VFSUsername)
	c.OriginCountry = strings.ToLower(strings.TrimSpace(c.OriginCountry))
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))

	var errs error
	required := []struct{ key, value string }{
		{"TELEGRAM_BOT_TOKEN", c.TelegramBotToken},
		{"TELEGRAM_CHAT_ID", c.TelegramChatIDRaw},
		{"VFS_USERNAME", c.VFSUsername},
		{"VFS_PASSWORD", c.VFSPassword},
	}
	for _, r := range required {
		if r.value == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.TelegramChatIDRaw != "" {
		id, err := strconv.ParseInt(c.TelegramChatIDRaw, 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("TELEGRAM_CHAT_ID must be a numeric chat id: %q", c.TelegramChatIDRaw))
		}
		c.TelegramChatID = id
	}

	c.TargetCountries = parseCountries(c.TargetCountriesRaw)
	c.CommandCountries = c.TargetCountries
	if len(c.TargetCountries) == 0 {
		c.TargetCountries = parseCountries(c.TargetCountry)
		c.CommandCountries = parseCountries(defaultCommandCountries)
	}
	if len(c.TargetCountries) == 0 {
		errs = multierr.Append(errs, errors.New("at least one target country is required"))
	}

	if c.DailyReportHour < 0 || c.DailyReportHour > 23 {
		errs = multierr.Append(errs, fmt.Errorf("DAILY_REPORT_HOUR must be within 0-23, got %d", c.DailyReportHour))
	}
	if c.OriginCountry == "" {
		errs = multierr.Append(errs, errors.New("ORIGIN_COUNTRY must not be empty"))
	}
	if !strings.Contains(c.TelegramAPIEndpoint, "%s") {
		errs = multierr.Append(errs, fmt.Errorf("TELEGRAM_API_ENDPOINT must contain token and method placeholders: %q", c.TelegramAPIEndpoint))
	}
	return errs
}

// SingleCountry reports whether the run covers exactly one target country.
func (c *AppConfig) SingleCountry() bool {
	return len(c.TargetCountries) == 1
}
