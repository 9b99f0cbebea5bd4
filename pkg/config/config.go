package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		BaseURL   string  `yaml:"base_url"`
		Model     string  `yaml:"model"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Corpus struct {
		Dir          string `yaml:"dir"`
		MetadataFile string `yaml:"metadata_file"`
	} `yaml:"corpus"`

	Analysis struct {
		WindowChars   int  `yaml:"window_chars"`
		MaxExcerptLen int  `yaml:"max_excerpt_len"`
		MinExcerptLen int  `yaml:"min_excerpt_len"`
		MaxSample     int  `yaml:"max_sample"`
		ShuffleSample bool `yaml:"shuffle_sample"`
	} `yaml:"analysis"`

	Terms struct {
		File    string   `yaml:"file"`
		Default []string `yaml:"default"`
	} `yaml:"terms"`

	Output struct {
		Path       string `yaml:"path"`
		Checkpoint bool   `yaml:"checkpoint"`
	} `yaml:"output"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"driftscan.yaml",
			"driftscan.yml",
			filepath.Join(os.Getenv("HOME"), ".config/driftscan/config.yaml"),
			"/etc/driftscan/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 2.0
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "embedding_cache"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Corpus.Dir == "" {
		config.Corpus.Dir = "corpus"
	}

	if config.Analysis.WindowChars == 0 {
		config.Analysis.WindowChars = 150
	}
	if config.Analysis.MaxExcerptLen == 0 {
		config.Analysis.MaxExcerptLen = 500
	}
	if config.Analysis.MinExcerptLen == 0 {
		config.Analysis.MinExcerptLen = 50
	}
	if config.Analysis.MaxSample == 0 {
		config.Analysis.MaxSample = 100
	}

	if len(config.Terms.Default) == 0 {
		config.Terms.Default = []string{"intelligence", "automaton", "engine"}
	}

	if config.Output.Path == "" {
		config.Output.Path = filepath.Join("analysis", "semantic-drift.json")
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
