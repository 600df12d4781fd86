package artifact

import (
	"net/http"

	"github.com/codelanx/plugintemplate/internal/config"
)

// FromConfig registers http and https always and every other scheme only
// when cfg configures it. tempDir holds objects that must be fully fetched
// before they can be read.
func FromConfig(client *http.Client, cfg config.SourcesConfig, tempDir string) *Mux {
	m := NewMux()
	web := NewHTTPHandler(client)
	m.Handle("http", web)
	m.Handle("https", web)

	if cfg.FileRoot != "" {
		m.Handle("file", NewFileHandler(cfg.FileRoot))
	}
	if cfg.S3.Region != "" {
		m.Handle("s3", NewS3Handler(S3Options{
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			Endpoint:        cfg.S3.Endpoint,
			TempDir:         tempDir,
		}))
	}
	if cfg.GCS.Enabled {
		m.Handle("gs", NewGCSHandler(cfg.GCS.Anonymous))
	}
	if cfg.Azure.Enabled {
		m.Handle("azblob", NewAzureHandler(nil))
	}
	if cfg.B2.AccountID != "" && cfg.B2.ApplicationKey != "" {
		m.Handle("b2", NewB2Handler(cfg.B2.AccountID, cfg.B2.ApplicationKey))
	}

	log.Debug("artifact sources configured", "schemes", m.Schemes())
	return m
}
