package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteStarter when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

const starterHeader = `# genesis configuration
# Environment variables override these values, e.g. GENESIS_QA_QUESTIONS=8.
# API keys belong in the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY,
# GEMINI_API_KEY) or under llm.apiKeys.<provider>.
`

// WriteStarter writes s as YAML to path.
func WriteStarter(path string, s *Settings, overwrite bool) error {
	if s == nil {
		return errors.New("nil settings")
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, append([]byte(starterHeader), out...), 0o644)
}
