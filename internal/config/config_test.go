package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 5060 {
		t.Errorf("Port = %d, want 5060", cfg.Port)
	}
	if cfg.RTPStartPort != 5061 {
		t.Errorf("RTPStartPort = %d, want 5061", cfg.RTPStartPort)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Echo || cfg.Rec {
		t.Errorf("Echo/Rec defaults should both be false, got echo=%v rec=%v", cfg.Echo, cfg.Rec)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{"--port", "5070", "--rec", "--sip-server", "example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 5070 {
		t.Errorf("Port = %d, want 5070", cfg.Port)
	}
	if !cfg.Rec {
		t.Error("Rec = false, want true")
	}
	if cfg.SIPServer != "sip:example.com" {
		t.Errorf("SIPServer = %q, want %q", cfg.SIPServer, "sip:example.com")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	if _, err := Load([]string{"--port", "70000"}); err == nil {
		t.Error("Load with out-of-range port should fail")
	}
}
