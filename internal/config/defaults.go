package config

import "strings"

// ApplyDefaults fills zero values. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "auto"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "local"
	}
	if cfg.Store.Local == nil {
		cfg.Store.Local = make(map[string]any)
	}
	if _, ok := cfg.Store.Local["root"]; !ok {
		cfg.Store.Local["root"] = "."
	}

	obj := &cfg.Store.Object
	if cfg.Store.Type == "object" && obj.Backend == "" {
		obj.Backend = "memory"
	}
	if obj.S3 == nil {
		obj.S3 = make(map[string]any)
	}
	if obj.Postgres == nil {
		obj.Postgres = make(map[string]any)
	}
	if obj.MongoDB == nil {
		obj.MongoDB = make(map[string]any)
	}
	if obj.Badger == nil {
		obj.Badger = make(map[string]any)
	}
}

// DefaultConfig returns the configuration written by InitConfig.
func DefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Object: ObjectConfig{
				Backend: "s3",
				S3: map[string]any{
					"bucket":        "",
					"region":        "us-east-1",
					"endpoint":      "",
					"passwd_file":   "",
					"create_bucket": false,
				},
				Postgres: map[string]any{"dsn": "", "table": "documents", "bucket": "default"},
				MongoDB:  map[string]any{"uri": "", "database": "docbridge", "collection": "documents", "bucket": "default"},
				Badger:   map[string]any{"dir": ""},
			},
		},
		Grants: []string{},
	}
	ApplyDefaults(cfg)
	return cfg
}
