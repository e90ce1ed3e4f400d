package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig points at one model endpoint (embedding or chat).
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// RAGConfig holds the chunking and retrieval knobs.
type RAGConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
	// MaxSplitChars is the short-circuit threshold: documents at or below
	// this length are stored as a single chunk.
	MaxSplitChars int `yaml:"max_split_chars"`
	// FanOut is the number of chunks returned per retrieval. The source
	// system called this similarity_threshold even though it is a count.
	FanOut         int     `yaml:"fan_out"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	LexicalWeight  float64 `yaml:"lexical_weight"`
	Operator       string  `yaml:"operator"`
}

// StoreConfig locates the persistent stores.
type StoreConfig struct {
	Collection      string `yaml:"collection"`
	PersistDir      string `yaml:"persist_dir"`
	FingerprintPath string `yaml:"fingerprint_path"`
	CatalogPath     string `yaml:"catalog_path"`
}

// HistoryConfig selects and locates the conversation history backend.
type HistoryConfig struct {
	Backend     string `yaml:"backend"` // "file" or "postgres"
	Dir         string `yaml:"dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Debug       bool   `yaml:"debug"`
}

type Config struct {
	RAG      RAGConfig     `yaml:"rag"`
	Store    StoreConfig   `yaml:"store"`
	History  HistoryConfig `yaml:"history"`
	EmbedLLM LLMConfig     `yaml:"embed_llm"`
	ChatLLM  LLMConfig     `yaml:"chat_llm"`
}

// Default returns a config with every knob at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and fills in defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 1024
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = 100
	}
	if len(c.RAG.Separators) == 0 {
		// Highest priority first: paragraph, line, sentence-ending
		// punctuation (CJK and Latin), then clause punctuation.
		c.RAG.Separators = []string{
			"\n\n", "\n",
			"。", "？", "！", ". ", "? ", "! ",
			"；", "，", "、", "; ", ", ", "：", ":",
		}
	}
	if c.RAG.MaxSplitChars <= 0 {
		c.RAG.MaxSplitChars = 1000
	}
	if c.RAG.FanOut <= 0 {
		c.RAG.FanOut = 3
	}
	if c.RAG.SemanticWeight == 0 && c.RAG.LexicalWeight == 0 {
		c.RAG.SemanticWeight = 0.7
		c.RAG.LexicalWeight = 0.3
	}
	if c.RAG.Operator == "" {
		c.RAG.Operator = "knowledge-base"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "rag"
	}
	if c.Store.PersistDir == "" {
		c.Store.PersistDir = "./chroma_db"
	}
	if c.Store.FingerprintPath == "" {
		c.Store.FingerprintPath = "./fingerprints.txt"
	}
	if c.Store.CatalogPath == "" {
		c.Store.CatalogPath = "./catalog.db"
	}
	if c.History.Backend == "" {
		c.History.Backend = "file"
	}
	if c.History.Dir == "" {
		c.History.Dir = "./chat_history"
	}
}

func (c *Config) validate() error {
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.SemanticWeight < 0 || c.RAG.LexicalWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	switch c.History.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("unknown history backend: %s", c.History.Backend)
	}
	if c.History.Backend == "postgres" && c.History.PostgresDSN == "" {
		return fmt.Errorf("history backend postgres requires postgres_dsn")
	}
	return nil
}
