package config

import "testing"

func TestParseServerArgsDefaultsWhenOmitted(t *testing.T) {
	cfg, err := ParseServerArgs(nil)
	if err != nil {
		t.Fatalf("ParseServerArgs: %v", err)
	}
	if cfg.ListenURL != DefaultListenURL {
		t.Errorf("ListenURL = %q, want default %q", cfg.ListenURL, DefaultListenURL)
	}
}

func TestParseServerArgsUsesPositional(t *testing.T) {
	cfg, err := ParseServerArgs([]string{"0.0.0.0:7777"})
	if err != nil {
		t.Fatalf("ParseServerArgs: %v", err)
	}
	if cfg.ListenURL != "0.0.0.0:7777" {
		t.Errorf("ListenURL = %q, want 0.0.0.0:7777", cfg.ListenURL)
	}
}

func TestParseClientArgsUsesBothPositionals(t *testing.T) {
	cfg, err := ParseClientArgs([]string{"127.0.0.1:1", "127.0.0.1:2"})
	if err != nil {
		t.Fatalf("ParseClientArgs: %v", err)
	}
	if cfg.ListenURL != "127.0.0.1:1" || cfg.ServerURL != "127.0.0.1:2" {
		t.Errorf("got listen=%q server=%q, want 127.0.0.1:1 / 127.0.0.1:2", cfg.ListenURL, cfg.ServerURL)
	}
}

func TestParseClientArgsDefaultsServerWhenOmitted(t *testing.T) {
	cfg, err := ParseClientArgs([]string{"127.0.0.1:1"})
	if err != nil {
		t.Fatalf("ParseClientArgs: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want default %q", cfg.ServerURL, DefaultServerURL)
	}
}

func TestParseLogLevelRecognizesAllLevels(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogDebug,
		"DEBUG":   LogDebug,
		"warn":    LogWarn,
		"warning": LogWarn,
		"error":   LogError,
		"info":    LogInfo,
		"":        LogInfo,
		"bogus":   LogInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
