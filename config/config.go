package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4243"`

	// Endpunkte der externen Registries
	AddgeneBaseURL string `envconfig:"ADDGENE_BASE_URL" default:"https://www.addgene.org"`
	NCBIBaseURL    string `envconfig:"NCBI_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	NCBIAPIKey     string `envconfig:"NCBI_API_KEY"`
	MGIBaseURL     string `envconfig:"MGI_BASE_URL" default:"https://www.informatics.jax.org"`

	// Timeouts für Registry-Lookups (Sekunden)
	RegistryCallTimeoutSec    int `envconfig:"REGISTRY_CALL_TIMEOUT_SEC" default:"15"`
	RegistryOverallTimeoutSec int `envconfig:"REGISTRY_OVERALL_TIMEOUT_SEC" default:"20"`

	// Optionale Vokabular-Override-Datei (JSON); leer = eingebaute Defaults
	VocabularyFile string `envconfig:"VOCABULARY_FILE"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	StratoS3Key    string `envconfig:"STRATO_S3_KEY" required:"true"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET" required:"true"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL" required:"true"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION" required:"true"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET" required:"true"`

	// Registry-Konfiguration
	EnabledRegistries string `envconfig:"ENABLED_REGISTRIES" default:"addgene,ncbi_gene,mgi"`

	APISecretKey string `envconfig:"API_SECRET_KEY"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
