package infra

import "testing"

func TestLoadConfigRequiresMediaAPIKey(t *testing.T) {
	t.Setenv("MEDIA_API_KEY", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without MEDIA_API_KEY")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MEDIA_API_KEY", "key")
	t.Setenv("MEDIA_BASE_URL", "")
	t.Setenv("MEDIA_DELIVERY_URL", "")
	t.Setenv("SOURCE_HOST_ALLOWLIST", "")
	t.Setenv("SNAPSHOT_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MediaDeliveryURL != cfg.MediaBaseURL {
		t.Fatalf("delivery url = %q, want base url %q", cfg.MediaDeliveryURL, cfg.MediaBaseURL)
	}
	if cfg.SnapshotBackend != "file" {
		t.Fatalf("snapshot backend = %q, want file", cfg.SnapshotBackend)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("kafka brokers = %#v, want none", cfg.KafkaBrokers)
	}
	if len(cfg.SourceHostAllowlist) != 1 || cfg.SourceHostAllowlist[0] != "api.media.example.com" {
		t.Fatalf("SourceHostAllowlist mismatch: %#v", cfg.SourceHostAllowlist)
	}
}

func TestLoadConfigMergesExplicitAllowlist(t *testing.T) {
	t.Setenv("MEDIA_API_KEY", "key")
	t.Setenv("MEDIA_DELIVERY_URL", "https://res.example.com/demo")
	t.Setenv("SOURCE_HOST_ALLOWLIST", "uploads.example.com, RES.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"res.example.com", "uploads.example.com"}
	if len(cfg.SourceHostAllowlist) != len(expected) {
		t.Fatalf("SourceHostAllowlist mismatch: got %#v want %#v", cfg.SourceHostAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.SourceHostAllowlist[i] != host {
			t.Fatalf("SourceHostAllowlist[%d] = %q, want %q", i, cfg.SourceHostAllowlist[i], host)
		}
	}
}

func TestLoadConfigParsesBrokersAndBackend(t *testing.T) {
	t.Setenv("MEDIA_API_KEY", "key")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SNAPSHOT_BACKEND", "MINIO")
	t.Setenv("MINIO_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for minio backend without endpoint")
	}

	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("kafka brokers = %#v", cfg.KafkaBrokers)
	}
	if cfg.SnapshotBackend != "minio" || !cfg.MinIOUseSSL {
		t.Fatalf("backend = %q ssl = %v", cfg.SnapshotBackend, cfg.MinIOUseSSL)
	}
}
