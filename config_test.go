package main

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "PORT", "LOG_LEVEL", "MAX_ROOMS", "HISTORY_SIZE"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxRooms != defaultMaxRooms || cfg.HistorySize != defaultHistorySize {
		t.Errorf("limits = %d %d", cfg.MaxRooms, cfg.HistorySize)
	}
	if cfg.ListenAddr() != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_ROOMS", "12")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REPLAY_FRAMES", "abc") // unparsable falls back

	cfg, err := LoadConfig([]string{"-port", "9100", "-addr", "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr() != "127.0.0.1:9100" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.MaxRooms != 12 || cfg.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.ReplayFrames != defaultReplayFrames {
		t.Errorf("ReplayFrames = %d", cfg.ReplayFrames)
	}
}

func TestLoadConfigBadFlag(t *testing.T) {
	if _, err := LoadConfig([]string{"-nope"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestLoadConfigAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.test , ,http://localhost:3000")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.test" || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}

	cfg, err = LoadConfig([]string{"-allowed-origins", ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("empty flag should allow any origin, got %q", cfg.AllowedOrigins)
	}
}
