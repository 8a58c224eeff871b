package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const DefaultPath = "./config/config.yaml"

type Catalog struct {
	// Source is either "file" or "postgres".
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p Postgres) ConnStr() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s", p.Host, p.User, p.Password, p.DBName, p.Port, p.SSLMode)
}

func (p Postgres) ReplicationConnStr() string {
	return p.ConnStr() + " replication=database"
}

type Nats struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Stream         string `mapstructure:"stream"`
	CatalogSubject string `mapstructure:"catalogSubject"`
}

func (n Nats) ConnStr() string {
	return fmt.Sprintf("nats://%s:%s", n.Host, n.Port)
}

type Replication struct {
	Name string `mapstructure:"name"`
	Slot string `mapstructure:"slot"`
}

type Ollama struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	EmbeddingModel string `mapstructure:"embeddingModel"`
	ContextModel   string `mapstructure:"contextModel"`
}

func (o *Ollama) Address() string {
	return fmt.Sprintf("http://%s:%s", o.Host, o.Port)
}

type Gemini struct {
	APIKey string `mapstructure:"apiKey"`
	Model  string `mapstructure:"model"`
}

type Generation struct {
	// Provider is "ollama" or "gemini".
	Provider    string  `mapstructure:"provider"`
	Temperature float64 `mapstructure:"temperature"`
	// Structured sends structured-path evidence to the model instead of
	// returning the rendered answer directly.
	Structured bool `mapstructure:"structured"`
}

type Retrieval struct {
	TopK               int `mapstructure:"topK"`
	MaxContextChars    int `mapstructure:"maxContextChars"`
	BuildWorkers       int `mapstructure:"buildWorkers"`
	EmbeddingDimension int `mapstructure:"embeddingDimension"`
	// Snapshot loads precomputed vectors from postgres when available.
	Snapshot bool `mapstructure:"snapshot"`
}

type Cache struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Server struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Embedder struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queueSize"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Setup installs the process-wide slog handler.
func (l Log) Setup() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(l.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

type Config struct {
	Catalog     Catalog     `mapstructure:"catalog"`
	Postgres    Postgres    `mapstructure:"postgres"`
	Nats        Nats        `mapstructure:"nats"`
	Replication Replication `mapstructure:"replication"`
	Ollama      Ollama      `mapstructure:"ollama"`
	Gemini      Gemini      `mapstructure:"gemini"`
	Generation  Generation  `mapstructure:"generation"`
	Retrieval   Retrieval   `mapstructure:"retrieval"`
	Cache       Cache       `mapstructure:"cache"`
	Server      Server      `mapstructure:"server"`
	Embedder    Embedder    `mapstructure:"embedder"`
	Log         Log         `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "./data/restaurants.json")
	v.SetDefault("nats.stream", "CATALOG")
	v.SetDefault("nats.catalogSubject", "catalog.changed")
	v.SetDefault("ollama.host", "localhost")
	v.SetDefault("ollama.port", "11434")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("generation.provider", "ollama")
	v.SetDefault("retrieval.topK", 5)
	v.SetDefault("retrieval.maxContextChars", 4000)
	v.SetDefault("retrieval.buildWorkers", 4)
	v.SetDefault("cache.path", "embeddings.db")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("embedder.workers", 1)
	v.SetDefault("embedder.queueSize", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the yaml file at path, applying defaults and environment
// overrides (ollama.host -> OLLAMA_HOST).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for the file source")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	switch c.Generation.Provider {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}

	if c.Retrieval.EmbeddingDimension < 0 {
		return fmt.Errorf("retrieval.embeddingDimension must not be negative")
	}

	return nil
}

func LoadConfig() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	config, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}

	return config
}
