package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Vault.Extensions == nil {
		cfg.Vault.Extensions = []string{".md", ".txt"}
	}
	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Store.Host == "" {
		cfg.Store.Host = "http://localhost:6333"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "notes"
	}
	if cfg.Query.Limit == 0 {
		cfg.Query.Limit = 5
	}
	if cfg.Query.MinScore == 0 {
		cfg.Query.MinScore = 0.70
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/ruiji/data/catalog.db"
	}
	if cfg.Reindex.Workers == 0 {
		cfg.Reindex.Workers = 1
	}
}
