// Package config provides configuration types and loading for tsumugi.
package config

// Config is the root configuration struct.
// Top-level groups: Slack, OpenAI, Notion, Gateway, Paths.
type Config struct {
	Slack   SlackConfig   `json:"slack"`
	OpenAI  OpenAIConfig  `json:"openai"`
	Notion  NotionConfig  `json:"notion"`
	Gateway GatewayConfig `json:"gateway"`
	Paths   PathsConfig   `json:"paths"`
}

// SlackConfig holds Slack credentials and endpoints.
type SlackConfig struct {
	BotToken      string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken      string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
	SigningSecret string `json:"signingSecret" envconfig:"SLACK_SIGNING_SECRET"`
	APIBase       string `json:"apiBase,omitempty" envconfig:"SLACK_API_BASE"`
}

// OpenAIConfig holds LLM provider settings.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey" envconfig:"OPENAI_API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"OPENAI_API_BASE"`
	Model   string `json:"model" envconfig:"OPENAI_MODEL"`
}

// NotionConfig holds the Notion token and the digest database.
type NotionConfig struct {
	Token      string `json:"token" envconfig:"NOTION_TOKEN"`
	DatabaseID string `json:"databaseId" envconfig:"NOTION_DATABASE_ID"`
	APIBase    string `json:"apiBase,omitempty" envconfig:"NOTION_API_BASE"`
}

// GatewayConfig configures the HTTP events server.
type GatewayConfig struct {
	Host       string `json:"host" envconfig:"GATEWAY_HOST"`
	Port       int    `json:"port" envconfig:"GATEWAY_PORT"`
	SocketMode bool   `json:"socketMode" envconfig:"SOCKET_MODE"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Rules   string `json:"rules" envconfig:"RULES_PATH"`
	Journal string `json:"journal" envconfig:"JOURNAL_PATH"`
}

// applyDefaults fills the holes a partial config file leaves.
func (c *Config) applyDefaults() {
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = "127.0.0.1"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 3000
	}
	if c.Paths.Rules == "" {
		c.Paths.Rules = "rules.yaml"
	}
}
