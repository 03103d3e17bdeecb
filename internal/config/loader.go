package config

import (
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/db"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Database  db.Config
	Server    ServerConfig
	Blob      BlobConfig
	Scheduler SchedulerConfig
	Ingestion IngestionConfig
	Status    StatusConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string
}

// BlobConfig holds object store settings for fetching uploaded files.
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// SchedulerConfig bounds the fair scheduling loop.
type SchedulerConfig struct {
	Interval         time.Duration
	MaxJobsPerTick   int
	MaxJobsPerTenant int
	PendingBatch     int
}

// IngestionConfig bounds a single job run.
type IngestionConfig struct {
	MaxRowsPerRun   int
	CheckpointEvery int
}

// StatusConfig tunes read-side diagnostics.
type StatusConfig struct {
	StuckAfter time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server:   ServerConfig{Addr: ":8080"},
		Blob: BlobConfig{
			Endpoint: "localhost:9000",
			UseSSL:   false,
		},
		Scheduler: SchedulerConfig{
			Interval:         30 * time.Second,
			MaxJobsPerTick:   5,
			MaxJobsPerTenant: 2,
			PendingBatch:     50,
		},
		Ingestion: IngestionConfig{
			MaxRowsPerRun:   100,
			CheckpointEvery: 10,
		},
		Status: StatusConfig{StuckAfter: 15 * time.Minute},
	}
}

// Load reads config.yaml from configPath, with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("APP")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("blob.endpoint")
	v.BindEnv("blob.access_key")
	v.BindEnv("blob.secret_key")

	if err := v.ReadInConfig(); err != nil {
		logrus.Info("no config.yaml found, using defaults and env vars")
	} else {
		logrus.WithField("file", v.ConfigFileUsed()).Info("loaded configuration")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("blob.endpoint") {
		cfg.Blob.Endpoint = v.GetString("blob.endpoint")
	}
	if v.IsSet("blob.access_key") {
		cfg.Blob.AccessKey = v.GetString("blob.access_key")
	}
	if v.IsSet("blob.secret_key") {
		cfg.Blob.SecretKey = v.GetString("blob.secret_key")
	}
	if v.IsSet("blob.use_ssl") {
		cfg.Blob.UseSSL = v.GetBool("blob.use_ssl")
	}
	if v.IsSet("scheduler.interval_seconds") {
		cfg.Scheduler.Interval = time.Duration(v.GetInt("scheduler.interval_seconds")) * time.Second
	}
	if v.IsSet("scheduler.max_jobs_per_tick") {
		cfg.Scheduler.MaxJobsPerTick = v.GetInt("scheduler.max_jobs_per_tick")
	}
	if v.IsSet("scheduler.max_jobs_per_tenant") {
		cfg.Scheduler.MaxJobsPerTenant = v.GetInt("scheduler.max_jobs_per_tenant")
	}
	if v.IsSet("scheduler.pending_batch") {
		cfg.Scheduler.PendingBatch = v.GetInt("scheduler.pending_batch")
	}
	if v.IsSet("ingestion.max_rows_per_run") {
		cfg.Ingestion.MaxRowsPerRun = v.GetInt("ingestion.max_rows_per_run")
	}
	if v.IsSet("ingestion.checkpoint_every") {
		cfg.Ingestion.CheckpointEvery = v.GetInt("ingestion.checkpoint_every")
	}
	if v.IsSet("status.stuck_after_minutes") {
		cfg.Status.StuckAfter = time.Duration(v.GetInt("status.stuck_after_minutes")) * time.Minute
	}

	return cfg, nil
}
