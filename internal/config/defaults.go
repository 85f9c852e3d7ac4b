package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:            "https://api.wordstat.yandex.net/v1/topRequests",
			UserInfoURL:    "https://api.wordstat.yandex.net/v1/userInfo",
			Token:          "",
			NumPhrases:     2000,
			TimeoutSeconds: 30,
			AcceptLanguage: "ru",
		},
		Expansion: ExpansionConfig{
			MaxErrors:      3,
			ErrorBackoffMS: 5000,
			PacingMS:       150,
			DefaultBudget:  5,
			DefaultRegion:  225,
		},
		Storage: StorageConfig{
			Dir:         "~/.config/wordharvest/stores",
			JournalMode: "wal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
	}
}
