package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings is the validated configuration of one process.
type Settings struct {
	LLM       LLMSettings       `mapstructure:"llm" yaml:"llm,omitempty"`
	Log       LogSettings       `mapstructure:"log" yaml:"log,omitempty"`
	QA        QASettings        `mapstructure:"qa" yaml:"qa,omitempty"`
	Registry  RegistrySettings  `mapstructure:"registry" yaml:"registry,omitempty"`
	Policy    PolicySettings    `mapstructure:"policy" yaml:"policy,omitempty"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry,omitempty"`
	Server    ServerSettings    `mapstructure:"server" yaml:"server,omitempty"`
}

type LLMSettings struct {
	Provider          string        `mapstructure:"provider" yaml:"provider,omitempty" validate:"required,oneof=openai anthropic gemini google ollama"`
	Model             string        `mapstructure:"model" yaml:"model,omitempty"`
	MaxTokens         int           `mapstructure:"maxTokens" yaml:"maxTokens,omitempty" validate:"gte=1,lte=1000000"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	BaseURL           string        `mapstructure:"baseURL" yaml:"baseURL,omitempty" validate:"omitempty,url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond,omitempty" validate:"gte=0"`
	MaxRetries        int           `mapstructure:"maxRetries" yaml:"maxRetries,omitempty" validate:"gte=0,lte=10"`
	EmbeddingModel    string        `mapstructure:"embeddingModel" yaml:"embeddingModel,omitempty"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Format string `mapstructure:"format" yaml:"format,omitempty" validate:"oneof=text json"`
}

type QASettings struct {
	Questions           int     `mapstructure:"questions" yaml:"questions,omitempty" validate:"gte=1,lte=50"`
	Judge               string  `mapstructure:"judge" yaml:"judge,omitempty" validate:"oneof=llm embedding"`
	SimilarityThreshold float64 `mapstructure:"similarityThreshold" yaml:"similarityThreshold,omitempty" validate:"gte=0,lte=1"`
}

type RegistrySettings struct {
	Path         string `mapstructure:"path" yaml:"path,omitempty"`
	EndpointBase string `mapstructure:"endpointBase" yaml:"endpointBase,omitempty" validate:"required,url"`
}

type PolicySettings struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

type TelemetrySettings struct {
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty" validate:"required,hostname_port"`
}

var validate = validator.New()

// Load unmarshals the global viper into Settings and validates it.
func Load() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.LLM.Provider = strings.TrimSpace(s.LLM.Provider)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every field constraint and reports all violations at once.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", configKey(fe.Namespace()), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// configKey turns "Settings.LLM.MaxTokens" into "llm.maxtokens".
func configKey(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "Settings.")
	return strings.ToLower(namespace)
}
