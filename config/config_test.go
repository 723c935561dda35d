package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  status_changed_topic_name: "parcel.status.changed"
  update_requested_topic_name: "parcel.update.requested"
redis:
  host: "localhost"
  port: 6379
handover:
  http_addr: ":8080"
  kafka_consumer_group: "handover-api"
  job_retention_seconds: 3600
  job_store_backend: "redis"
  shopee_base_url: "https://spx.example.com"
  shopee_rate_limit_per_minute: 60
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "parcel.status.changed", cfg.Kafka.StatusChangedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Handover.HTTPAddr)
	require.Equal(t, 3600, cfg.Handover.JobRetentionSeconds)
	require.Equal(t, "redis", cfg.Handover.JobStoreBackend)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
