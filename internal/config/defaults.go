// Package config resolves genesis settings from .genesis.yaml, GENESIS_*
// environment variables, the legacy variables the pipeline has always
// read (LLM_PROVIDER, AGENT_MODEL, MAX_TOKENS, LOG_LEVEL) and defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/qa"
	"github.com/josephgoksu/genesis/internal/registry"
)

const (
	// ConfigName is the config file base name (.genesis.yaml).
	ConfigName = ".genesis"
	// EnvPrefix prefixes environment overrides, e.g. GENESIS_QA_QUESTIONS.
	EnvPrefix = "GENESIS"
)

// Defaults applied when nothing else sets a key.
const (
	DefaultLogLevel          = "INFO"
	DefaultLogFormat         = "text"
	DefaultTimeout           = 60 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultMaxRetries        = 2
	DefaultServerAddr        = "127.0.0.1:8420"
	JudgeLLM                 = "llm"
	JudgeEmbedding           = "embedding"
)

// legacyEnv maps keys to the unprefixed variables that also set them.
var legacyEnv = map[string][]string{
	"llm.provider":  {"LLM_PROVIDER"},
	"llm.model":     {"AGENT_MODEL"},
	"llm.maxTokens": {"MAX_TOKENS"},
	"log.level":     {"LOG_LEVEL"},
}

// SetDefaults registers every key with the global viper so environment
// overrides resolve during Unmarshal.
func SetDefaults() {
	viper.SetDefault("llm.provider", llm.DefaultProvider)
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.maxTokens", llm.DefaultMaxTokens)
	viper.SetDefault("llm.temperature", llm.DefaultTemperature)
	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.timeout", DefaultTimeout)
	viper.SetDefault("llm.requestsPerSecond", DefaultRequestsPerSecond)
	viper.SetDefault("llm.maxRetries", DefaultMaxRetries)
	viper.SetDefault("llm.embeddingModel", "")

	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.format", DefaultLogFormat)

	viper.SetDefault("qa.questions", qa.DefaultQuestions)
	viper.SetDefault("qa.judge", JudgeLLM)
	viper.SetDefault("qa.similarityThreshold", qa.DefaultSimilarityThreshold)

	viper.SetDefault("registry.path", "")
	viper.SetDefault("registry.endpointBase", registry.DefaultEndpointBase)
	viper.SetDefault("policy.dir", "")
	viper.SetDefault("telemetry.apiKey", "")
	viper.SetDefault("telemetry.endpoint", "")
	viper.SetDefault("server.addr", DefaultServerAddr)
}

// BindEnv wires GENESIS_* variables and the legacy names.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}
