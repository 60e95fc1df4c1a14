package application

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines billing engine defaults.
type Config struct {
	// Currency is the display currency on receipts and exports.
	Currency string `yaml:"currency"`
	// DueDays is the number of days after resolution before a fee falls
	// due when the caller supplies no explicit due date.
	DueDays int `yaml:"due_days"`
	// ReceiptIssuer is printed on receipt exports.
	ReceiptIssuer string `yaml:"receipt_issuer"`
}

// LoadConfig loads engine config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Currency:      getenvDefault("FEES_CURRENCY", "USD"),
		DueDays:       getenvIntDefault("FEES_DUE_DAYS", 30),
		ReceiptIssuer: getenvDefault("FEES_RECEIPT_ISSUER", ""),
	}

	if path := os.Getenv("FEES_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.DueDays <= 0 {
		cfg.DueDays = 30
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
