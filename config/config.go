package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the blog MCP service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Vertex    VertexConfig    `mapstructure:"vertex"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// EngineConfig contains the tunables of the query refinement loop.
// All of these are live operating parameters; none of them may be
// hard-compiled into the engine.
type EngineConfig struct {
	TopKDefault       int           `mapstructure:"top_k_default"`
	DistanceThreshold float64       `mapstructure:"distance_threshold"`
	AdequacyThreshold float64       `mapstructure:"adequacy_threshold"`
	MaxRefinements    int           `mapstructure:"max_refinements"`
	RelevanceWeight   float64       `mapstructure:"relevance_weight"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
}

// Normalize applies defaults for unset engine values.
func (e EngineConfig) Normalize() EngineConfig {
	if e.TopKDefault <= 0 {
		e.TopKDefault = 10
	}
	if e.DistanceThreshold <= 0 {
		e.DistanceThreshold = 0.7
	}
	if e.AdequacyThreshold <= 0 {
		e.AdequacyThreshold = 0.7
	}
	if e.MaxRefinements < 0 {
		e.MaxRefinements = 2
	}
	if e.RelevanceWeight <= 0 {
		e.RelevanceWeight = 0.5
	}
	if e.CallTimeout <= 0 {
		e.CallTimeout = 30 * time.Second
	}
	if e.RetryAttempts <= 0 {
		e.RetryAttempts = 3
	}
	if e.RetryBackoff <= 0 {
		e.RetryBackoff = 500 * time.Millisecond
	}
	return e
}

// Validate rejects engine settings that would be unsafe to run with.
func (e EngineConfig) Validate() error {
	if e.TopKDefault < 1 || e.TopKDefault > 20 {
		return fmt.Errorf("engine.top_k_default must be in [1,20], got %d", e.TopKDefault)
	}
	if e.DistanceThreshold <= 0 {
		return fmt.Errorf("engine.distance_threshold must be > 0")
	}
	if e.AdequacyThreshold < 0 || e.AdequacyThreshold > 1 {
		return fmt.Errorf("engine.adequacy_threshold must be in [0,1]")
	}
	if e.RelevanceWeight < 0 || e.RelevanceWeight > 1 {
		return fmt.Errorf("engine.relevance_weight must be in [0,1]")
	}
	if e.MaxRefinements < 0 {
		return fmt.Errorf("engine.max_refinements cannot be negative")
	}
	return nil
}

// ProviderConfig selects and configures the text-generation capability
type ProviderConfig struct {
	Type   string       `mapstructure:"type"` // vertex, openai
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible deployment
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// VertexConfig addresses the Vertex AI resources consumed by the engine:
// the generation model, the embedding model, the RAG corpus, and the
// Vector Search index endpoint.
type VertexConfig struct {
	Project             string  `mapstructure:"project"`
	Region              string  `mapstructure:"region"`
	GenerationModel     string  `mapstructure:"generation_model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	Temperature         float64 `mapstructure:"temperature"`
	MaxOutputTokens     int     `mapstructure:"max_output_tokens"`
	RAGCorpus           string  `mapstructure:"rag_corpus"` // projects/P/locations/R/ragCorpora/ID
	VectorIndex         string  `mapstructure:"vector_index"`
	VectorIndexEndpoint string  `mapstructure:"vector_index_endpoint"`
	DeployedIndexID     string  `mapstructure:"deployed_index_id"`
	AccessToken         string  `mapstructure:"access_token"`
}

// Normalize applies defaults for unset vertex values.
func (v VertexConfig) Normalize() VertexConfig {
	if v.GenerationModel == "" {
		v.GenerationModel = "gemini-2.0-flash"
	}
	if v.EmbeddingModel == "" {
		v.EmbeddingModel = "text-multilingual-embedding-002"
	}
	if v.Temperature <= 0 {
		v.Temperature = 0.2
	}
	if v.MaxOutputTokens <= 0 {
		v.MaxOutputTokens = 1024
	}
	return v
}

func (v VertexConfig) Validate() error {
	if strings.TrimSpace(v.Project) == "" {
		return fmt.Errorf("vertex.project is required")
	}
	if strings.TrimSpace(v.Region) == "" {
		return fmt.Errorf("vertex.region is required")
	}
	return nil
}

// Token returns the bearer token for Vertex calls, falling back to the
// GOOGLE_ACCESS_TOKEN environment variable.
func (v VertexConfig) Token() string {
	if v.AccessToken != "" {
		return v.AccessToken
	}
	return os.Getenv("GOOGLE_ACCESS_TOKEN")
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a Postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// IngestConfig configures the RSS ingestion collaborator
type IngestConfig struct {
	Feeds         map[string]FeedConfig `mapstructure:"feeds"`
	Cron          string                `mapstructure:"cron"`
	MinTextLength int                   `mapstructure:"min_text_length"`
	ChunkSize     int                   `mapstructure:"chunk_size"`
	ChunkOverlap  int                   `mapstructure:"chunk_overlap"`
	UserAgent     string                `mapstructure:"user_agent"`
}

// FeedConfig describes one RSS feed
type FeedConfig struct {
	URL    string `mapstructure:"url"`
	Source string `mapstructure:"source"`
}

// Normalize applies ingestion defaults matching the corpus chunking the
// engine's retrieval was tuned against.
func (i IngestConfig) Normalize() IngestConfig {
	if i.MinTextLength <= 0 {
		i.MinTextLength = 500
	}
	if i.ChunkSize <= 0 {
		i.ChunkSize = 768
	}
	if i.ChunkOverlap <= 0 {
		i.ChunkOverlap = 128
	}
	if i.UserAgent == "" {
		i.UserAgent = "Mozilla/5.0 (compatible; BlogMCPIngestor/1.0)"
	}
	return i
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("provider.type", "vertex")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("BLOGMCP")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (BLOGMCP_*)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Engine = config.Engine.Normalize()
	config.Vertex = config.Vertex.Normalize()
	config.Ingest = config.Ingest.Normalize()

	// Safety-relevant settings are validated here, at startup, never
	// silently defaulted at query time.
	if err := config.Engine.Validate(); err != nil {
		panic(err)
	}
	if err := config.Vertex.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
