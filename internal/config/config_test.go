package config

import "testing"

func validConfig() *Config {
	return &Config{
		Port: "8000", Env: "development",
		SenderQual: "ZZ", SenderID: "KAIZENSND",
		ReceiverQual: "ZZ", ReceiverID: "87726",
		UsageIndicator: "T", StateCode: "KY",
		UseCR1Locations: true,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := validConfig()
	c.UsageIndicator = "X"
	if err := c.Validate(); err == nil {
		t.Error("usage indicator X must be rejected")
	}

	c = validConfig()
	c.PayerPreset = "ACME"
	if err := c.Validate(); err == nil {
		t.Error("unknown payer preset must be rejected")
	}

	c = validConfig()
	c.PayerPreset = "UHC_CS"
	if err := c.Validate(); err != nil {
		t.Errorf("known preset rejected: %v", err)
	}

	c = validConfig()
	c.StateCode = "XX"
	if err := c.Validate(); err == nil {
		t.Error("bad state code must be rejected")
	}

	c = validConfig()
	c.ElementSeparator = "|"
	c.SegmentTerminator = "|"
	if err := c.Validate(); err == nil {
		t.Error("identical delimiters must be rejected")
	}
}

func TestValidateServer(t *testing.T) {
	c := validConfig()
	if err := c.ValidateServer(); err == nil {
		t.Error("server must require DATABASE_URL")
	}

	c.DatabaseURL = "postgres://localhost/nemt837"
	if err := c.ValidateServer(); err != nil {
		t.Errorf("dev server config rejected: %v", err)
	}

	c.Env = "production"
	if err := c.ValidateServer(); err == nil {
		t.Error("production must require AUTH_SECRET")
	}
	c.AuthSecret = "secret"
	if err := c.ValidateServer(); err != nil {
		t.Errorf("production config rejected: %v", err)
	}
}

func TestPipelineMapping(t *testing.T) {
	c := validConfig()
	c.PayerPreset = "UHC_CS"
	c.SegmentTerminator = "~"
	p := c.Pipeline()
	if p.SenderID != "KAIZENSND" || p.PayerPreset != "UHC_CS" || !p.UseCR1Locations {
		t.Errorf("pipeline mapping dropped fields: %+v", p)
	}
	if p.SegmentTerm != "~" {
		t.Errorf("delimiter override lost: %q", p.SegmentTerm)
	}
}
