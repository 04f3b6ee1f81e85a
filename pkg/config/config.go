package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig                `json:"app"`
	Gateways  map[string]GatewayConfig `json:"gateways"`
	Storage   StorageConfig            `json:"storage"`
	Organizer OrganizerConfig          `json:"organizer"`
}

type AppConfig struct {
	Name     string `json:"name"`
	Form     string `json:"form"`      // builtin short name ("uz", "ru")
	FormFile string `json:"form_file"` // external form file, overrides Form
	LocalTZ  string `json:"local_tz"`
	DataDir  string `json:"data_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

type StorageConfig struct {
	DBPath    string `json:"db_path"`
	ExcelPath string `json:"excel_path"`
	AuditPath string `json:"audit_path"`
}

type OrganizerConfig struct {
	IDs []string `json:"ids"`
}

// Load reads the optional JSON config file, then lets the environment
// (including a .env file, if present) override it. Validation of what is
// actually required happens at wiring time in main.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:    "ankabot",
			Form:    "uz",
			LocalTZ: "Asia/Tashkent",
			DataDir: "data",
		},
		Gateways: make(map[string]GatewayConfig),
	}

	if path != "" {
		if file, err := os.Open(path); err == nil {
			decoder := json.NewDecoder(file)
			err = decoder.Decode(cfg)
			file.Close()
			if err != nil {
				return nil, err
			}
		}
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Gateways["telegram"] = GatewayConfig{Token: v, Enabled: true}
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Gateways["discord"] = GatewayConfig{Token: v, Enabled: true}
	}
	if v := os.Getenv("ORGANIZER_IDS"); v != "" {
		cfg.Organizer.IDs = ParseOrganizers(v)
	}
	if v := os.Getenv("LOCAL_TZ"); v != "" {
		cfg.App.LocalTZ = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.App.DataDir = v
	}
	if v := os.Getenv("FORM"); v != "" {
		cfg.App.Form = v
	}
	if v := os.Getenv("FORM_FILE"); v != "" {
		cfg.App.FormFile = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("EXCEL_PATH"); v != "" {
		cfg.Storage.ExcelPath = v
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(cfg.App.DataDir, "ankabot.db")
	}
	if cfg.Storage.ExcelPath == "" {
		cfg.Storage.ExcelPath = filepath.Join(cfg.App.DataDir, "registrations.xlsx")
	}
	if cfg.Storage.AuditPath == "" {
		cfg.Storage.AuditPath = filepath.Join(cfg.App.DataDir, "registrations.jsonl")
	}

	return cfg, nil
}

// ParseOrganizers splits a comma-separated id list, dropping empty entries.
func ParseOrganizers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	dc, ok := c.Gateways["discord"]
	if ok && dc.Enabled && dc.Token != "" {
		return dc, true
	}
	return GatewayConfig{}, false
}

// IsOrganizer reports whether an identity may use the admin commands.
func (c *Config) IsOrganizer(id string) bool {
	for _, o := range c.Organizer.IDs {
		if o == id {
			return true
		}
	}
	return false
}
