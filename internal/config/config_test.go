package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 19531 {
		t.Fatalf("port %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Fatalf("write timeout %v must default to zero for follow streams", cfg.Server.WriteTimeout)
	}
	if !cfg.Journal.Watch {
		t.Fatal("journal.watch should default on")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateTLSPairing(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Server.TLS.KeyFile = "/tmp/key.pem"
	if err := cfg.Validate(); err == nil {
		t.Fatal("key without cert should fail validation")
	}

	cfg.Server.TLS.CertFile = "/tmp/cert.pem"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("key and cert together should validate: %v", err)
	}

	cfg.Server.TLS.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("enabled with both files should validate: %v", err)
	}

	cfg.Server.TLS.CertFile = ""
	cfg.Server.TLS.KeyFile = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled without files should fail validation")
	}
}
