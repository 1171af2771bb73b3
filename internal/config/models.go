package config

import (
	"errors"
	"time"
)

// TriageConfig controls the triage service
type TriageConfig struct {
	RulesPath      string
	SkipProcessed  bool
	ConsultAdvisor bool
	IgnoredSenders []string
}

// LLMConfig represents the configuration for the reply advisor
type LLMConfig struct {
	Provider    string
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// StoreConfig represents the configuration for the record store
type StoreConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// HeaderNames are the header fields added to filtered messages
type HeaderNames struct {
	Vendor      string
	Category    string
	NeedsReply  string
	Reason      string
	Identifiers string
	Error       string
}

// ServerConfig represents the configuration for the SMTP content filter
type ServerConfig struct {
	FilterType    string
	ListenAddress string
	RelayEnabled  bool
	RelayAddress  string
	RelayPort     int
	TagSubject    bool
	SubjectTag    string
	Headers       HeaderNames
}

// GmailConfig represents the configuration for the Gmail poller
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	User            string
	AccountAddress  string
	Query           string
	BatchSize       int
	PollInterval    time.Duration
	Workers         int
}

// IMAPConfig represents the configuration for the IMAP poller
type IMAPConfig struct {
	Server       string
	Port         int
	Username     string
	Password     string
	Folder       string
	SinceDays    int
	PollInterval time.Duration
}

// GetTriage returns the triage configuration
func (c *Config) GetTriage() TriageConfig {
	return TriageConfig{
		RulesPath:      c.GetString("rules.path"),
		SkipProcessed:  c.GetBool("triage.skip_processed"),
		ConsultAdvisor: c.GetBool("triage.consult_advisor"),
		IgnoredSenders: c.GetStringSlice("triage.ignored_senders"),
	}
}

// GetLLM returns the reply advisor configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxBodySize: c.GetInt("llm.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetStore returns the record store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	ttl, err := c.GetDuration("store.ttl")
	if err != nil {
		return StoreConfig{}, err
	}
	cleanup, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
	}, nil
}

// GetServer returns the SMTP content filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:    c.GetString("server.filter_type"),
		ListenAddress: c.GetString("server.listen_address"),
		RelayEnabled:  c.GetBool("server.relay.enabled"),
		RelayAddress:  c.GetString("server.relay.address"),
		RelayPort:     c.GetInt("server.relay.port"),
		TagSubject:    c.GetBool("server.tag_subject"),
		SubjectTag:    c.GetString("server.subject_tag"),
		Headers: HeaderNames{
			Vendor:      c.GetString("server.headers.vendor"),
			Category:    c.GetString("server.headers.category"),
			NeedsReply:  c.GetString("server.headers.needs_reply"),
			Reason:      c.GetString("server.headers.reason"),
			Identifiers: c.GetString("server.headers.identifiers"),
			Error:       c.GetString("server.headers.error"),
		},
	}
}

// GetGmail returns the Gmail poller configuration
func (c *Config) GetGmail() (GmailConfig, error) {
	interval, err := c.GetDuration("gmail.poll_interval")
	if err != nil {
		return GmailConfig{}, err
	}
	cfg := GmailConfig{
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		User:            c.GetString("gmail.user"),
		AccountAddress:  c.GetString("gmail.account_address"),
		Query:           c.GetString("gmail.query"),
		BatchSize:       c.GetInt("gmail.batch_size"),
		PollInterval:    interval,
		Workers:         c.GetInt("gmail.workers"),
	}
	if cfg.BatchSize <= 0 || cfg.Workers <= 0 {
		return GmailConfig{}, errors.New("gmail.batch_size and gmail.workers must be positive")
	}
	return cfg, nil
}

// GetIMAP returns the IMAP poller configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	interval, err := c.GetDuration("imap.poll_interval")
	if err != nil {
		return IMAPConfig{}, err
	}
	cfg := IMAPConfig{
		Server:       c.GetString("imap.server"),
		Port:         c.GetInt("imap.port"),
		Username:     c.GetString("imap.username"),
		Password:     c.GetString("imap.password"),
		Folder:       c.GetString("imap.folder"),
		SinceDays:    c.GetInt("imap.since_days"),
		PollInterval: interval,
	}
	if cfg.Server == "" {
		return IMAPConfig{}, errors.New("imap.server is required")
	}
	return cfg, nil
}
