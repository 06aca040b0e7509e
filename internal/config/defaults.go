package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.StorePath == "" {
		cfg.Storage.StorePath = "/usr/local/var/mihari/data/store"
	}
	if cfg.Storage.ReportsDBPath == "" {
		cfg.Storage.ReportsDBPath = "/usr/local/var/mihari/data/db/reports.db"
	}
	if cfg.Storage.CatalogIndexPath == "" {
		cfg.Storage.CatalogIndexPath = "/usr/local/var/mihari/data/indices/catalog"
	}
	if cfg.Storage.ReportDir == "" {
		cfg.Storage.ReportDir = "/usr/local/var/mihari/data/reports"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/mihari/data/models/clip-vit-base-patch32.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Review.AutoPassThreshold == 0 {
		cfg.Review.AutoPassThreshold = 0.90
	}
	if cfg.Review.AutoRejectThreshold == 0 {
		cfg.Review.AutoRejectThreshold = 0.60
	}
	if cfg.Review.TopK == 0 {
		cfg.Review.TopK = 5
	}
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = "flat"
	}
	if cfg.Index.NList == 0 {
		cfg.Index.NList = 64
	}
	if cfg.Index.NProbe == 0 {
		cfg.Index.NProbe = 8
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".mp4", ".mov", ".webm", ".mkv", ".avi"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
