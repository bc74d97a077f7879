package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kaizen/nemt837/internal/domain/codes"
	"github.com/kaizen/nemt837/internal/domain/payer"
	"github.com/kaizen/nemt837/internal/domain/pipeline"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	AuthSecret  string `mapstructure:"AUTH_SECRET"`

	SenderQual     string `mapstructure:"SENDER_QUAL"`
	SenderID       string `mapstructure:"SENDER_ID"`
	ReceiverQual   string `mapstructure:"RECEIVER_QUAL"`
	ReceiverID     string `mapstructure:"RECEIVER_ID"`
	GSSenderCode   string `mapstructure:"GS_SENDER_CODE"`
	GSReceiverCode string `mapstructure:"GS_RECEIVER_CODE"`
	UsageIndicator string `mapstructure:"USAGE_INDICATOR"`
	PayerPreset    string `mapstructure:"PAYER_PRESET"`
	StateCode      string `mapstructure:"STATE_CODE"`

	UseCR1Locations   bool   `mapstructure:"USE_CR1_LOCATIONS"`
	ElementSeparator  string `mapstructure:"ELEMENT_SEPARATOR"`
	SegmentTerminator string `mapstructure:"SEGMENT_TERMINATOR"`
	PrettyOutput      bool   `mapstructure:"PRETTY_OUTPUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SENDER_QUAL", "ZZ")
	v.SetDefault("RECEIVER_QUAL", "ZZ")
	v.SetDefault("USAGE_INDICATOR", "T")
	v.SetDefault("STATE_CODE", "KY")
	v.SetDefault("USE_CR1_LOCATIONS", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "AUTH_SECRET",
		"SENDER_QUAL", "SENDER_ID", "RECEIVER_QUAL", "RECEIVER_ID",
		"GS_SENDER_CODE", "GS_RECEIVER_CODE", "USAGE_INDICATOR", "PAYER_PRESET",
		"STATE_CODE", "USE_CR1_LOCATIONS", "ELEMENT_SEPARATOR", "SEGMENT_TERMINATOR",
		"PRETTY_OUTPUT",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration can drive a submission. The server
// additionally requires DATABASE_URL and, outside development, AUTH_SECRET;
// the convert and batch commands do not.
func (c *Config) Validate() error {
	if c.UsageIndicator != "T" && c.UsageIndicator != "P" {
		return fmt.Errorf("USAGE_INDICATOR must be \"T\" or \"P\", got %q", c.UsageIndicator)
	}
	if c.PayerPreset != "" {
		if _, ok := payer.Lookup(c.PayerPreset); !ok {
			return fmt.Errorf("PAYER_PRESET %q is not one of %s",
				c.PayerPreset, strings.Join(payer.Keys(), ", "))
		}
	}
	if c.StateCode != "" && !codes.ValidState(strings.ToUpper(c.StateCode)) {
		return fmt.Errorf("STATE_CODE %q is not a US state", c.StateCode)
	}
	if len(c.ElementSeparator) > 1 {
		return fmt.Errorf("ELEMENT_SEPARATOR must be a single character, got %q", c.ElementSeparator)
	}
	if len(c.SegmentTerminator) > 1 {
		return fmt.Errorf("SEGMENT_TERMINATOR must be a single character, got %q", c.SegmentTerminator)
	}
	if c.ElementSeparator != "" && c.ElementSeparator == c.SegmentTerminator {
		return fmt.Errorf("ELEMENT_SEPARATOR and SEGMENT_TERMINATOR must differ")
	}
	return nil
}

// ValidateServer extends Validate with the requirements of the HTTP server.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to run the server")
	}
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV is not development")
	}
	return nil
}

// Pipeline maps the loaded configuration onto a conversion config.
func (c *Config) Pipeline() pipeline.Config {
	p := pipeline.DefaultConfig()
	p.SenderQual = c.SenderQual
	p.SenderID = c.SenderID
	p.ReceiverQual = c.ReceiverQual
	p.ReceiverID = c.ReceiverID
	p.GSSenderCode = c.GSSenderCode
	p.GSReceiverCode = c.GSReceiverCode
	p.UsageIndicator = c.UsageIndicator
	p.PayerPreset = c.PayerPreset
	p.UseCR1Locations = c.UseCR1Locations
	p.ElementSep = c.ElementSeparator
	p.SegmentTerm = c.SegmentTerminator
	p.Pretty = c.PrettyOutput
	return p
}
