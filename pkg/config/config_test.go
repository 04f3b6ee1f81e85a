package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// Load reads the process environment, so every test pins the variables it
// cares about with t.Setenv, including the ones that must be absent.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "DISCORD_BOT_TOKEN", "ORGANIZER_IDS",
		"LOCAL_TZ", "DATA_DIR", "FORM", "FORM_FILE", "DB_PATH", "EXCEL_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Form != "uz" || cfg.App.LocalTZ != "Asia/Tashkent" || cfg.App.DataDir != "data" {
		t.Errorf("defaults wrong: %+v", cfg.App)
	}
	if cfg.Storage.DBPath != filepath.Join("data", "ankabot.db") {
		t.Errorf("db path = %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.ExcelPath != filepath.Join("data", "registrations.xlsx") {
		t.Errorf("excel path = %q", cfg.Storage.ExcelPath)
	}
	if cfg.Storage.AuditPath != filepath.Join("data", "registrations.jsonl") {
		t.Errorf("audit path = %q", cfg.Storage.AuditPath)
	}
	if _, ok := cfg.GetTelegramConfig(); ok {
		t.Error("telegram must be disabled without a token")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("DISCORD_BOT_TOKEN", "dc-token")
	t.Setenv("ORGANIZER_IDS", "100, 200,,300")
	t.Setenv("LOCAL_TZ", "UTC")
	t.Setenv("DATA_DIR", "/var/lib/ankabot")
	t.Setenv("FORM", "ru")
	t.Setenv("DB_PATH", "/tmp/custom.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	tg, ok := cfg.GetTelegramConfig()
	if !ok || tg.Token != "tg-token" {
		t.Errorf("telegram config wrong: %+v", tg)
	}
	dc, ok := cfg.GetDiscordConfig()
	if !ok || dc.Token != "dc-token" {
		t.Errorf("discord config wrong: %+v", dc)
	}
	if !reflect.DeepEqual(cfg.Organizer.IDs, []string{"100", "200", "300"}) {
		t.Errorf("organizers = %v", cfg.Organizer.IDs)
	}
	if cfg.App.LocalTZ != "UTC" || cfg.App.Form != "ru" {
		t.Errorf("app overrides wrong: %+v", cfg.App)
	}
	if cfg.Storage.DBPath != "/tmp/custom.db" {
		t.Errorf("explicit db path not honored: %q", cfg.Storage.DBPath)
	}
	// Unset paths still derive from the data dir.
	if cfg.Storage.ExcelPath != filepath.Join("/var/lib/ankabot", "registrations.xlsx") {
		t.Errorf("excel path = %q", cfg.Storage.ExcelPath)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
  "app": {"name": "finlit", "form": "ru", "local_tz": "Europe/Moscow"},
  "gateways": {"telegram": {"token": "from-file", "enabled": true}},
  "organizer": {"ids": ["1"]}
}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOCAL_TZ", "UTC")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Name != "finlit" || cfg.App.Form != "ru" {
		t.Errorf("file values lost: %+v", cfg.App)
	}
	if cfg.App.LocalTZ != "UTC" {
		t.Errorf("env must override the file, got %q", cfg.App.LocalTZ)
	}
	if tg, ok := cfg.GetTelegramConfig(); !ok || tg.Token != "from-file" {
		t.Errorf("telegram config from file lost: %+v", tg)
	}
	if !cfg.IsOrganizer("1") || cfg.IsOrganizer("2") {
		t.Error("organizer list from file wrong")
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestParseOrganizers(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"1,2,3", []string{"1", "2", "3"}},
		{" 1 , 2 ", []string{"1", "2"}},
		{",,", nil},
		{"", nil},
	}
	for _, tc := range cases {
		if got := ParseOrganizers(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseOrganizers(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
