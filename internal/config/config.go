// Package config loads application configuration from a YAML file,
// environment variables, and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pulse/internal/core"
	"pulse/internal/llm"
)

// Config holds all application configuration
type Config struct {
	App      App                 `mapstructure:"app"`
	Gemini   Gemini              `mapstructure:"gemini"`
	Database Database            `mapstructure:"database"`
	Fetch    Fetch               `mapstructure:"fetch"`
	Sources  []core.SourceConfig `mapstructure:"sources"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds LLM service configuration
type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// Database holds persistence configuration
type Database struct {
	URL string `mapstructure:"url"`
}

// Fetch holds feed-fetching configuration
type Fetch struct {
	Timeout        string `mapstructure:"timeout"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// Load reads configuration from the given file (or ./pulse.yaml by default),
// layered under environment variables. A .env file in the working directory
// is loaded first when present.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName("pulse")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("pulse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Gemini.APIKey == "" {
		config.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}
	if len(config.Sources) == 0 {
		config.Sources = DefaultSources()
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("gemini.model", llm.DefaultModel)
	v.SetDefault("gemini.embedding_model", llm.DefaultEmbeddingModel)

	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_concurrency", 8)
}

// DefaultSources is the built-in source list used when the config file
// defines none.
func DefaultSources() []core.SourceConfig {
	return []core.SourceConfig{
		{Name: "arXiv cs.AI", URL: "https://rss.arxiv.org/rss/cs.AI", Type: core.SourceArXiv, Category: core.CategoryResearch, Enabled: true},
		{Name: "arXiv cs.LG", URL: "https://rss.arxiv.org/rss/cs.LG", Type: core.SourceArXiv, Category: core.CategoryResearch, Enabled: true},
		{Name: "Hacker News AI", URL: "https://hn.algolia.com/api/v1/search_by_date?query=AI&tags=story&hitsPerPage=30", Type: core.SourceHackerNews, Category: core.CategoryIndustry, Enabled: true},
		{Name: "r/MachineLearning", URL: "https://www.reddit.com/r/MachineLearning/top.json?t=day&limit=25", Type: core.SourceReddit, Category: core.CategoryResearch, Enabled: true},
		{Name: "r/LocalLLaMA", URL: "https://www.reddit.com/r/LocalLLaMA/top.json?t=day&limit=25", Type: core.SourceReddit, Category: core.CategoryIndustry, Enabled: true},
		{Name: "Google AI Blog", URL: "https://blog.google/technology/ai/rss/", Type: core.SourceRSS, Category: core.CategoryIndustry, Enabled: true},
		{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml", Type: core.SourceRSS, Category: core.CategoryProduct, Enabled: true},
		{Name: "MIT Technology Review AI", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed", Type: core.SourceRSS, Category: core.CategoryIndustry, Enabled: true},
	}
}
