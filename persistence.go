package rtclock

import (
	"os"

	"github.com/ghodss/yaml"
)

// ReadConfig loads a yaml configuration file.
func ReadConfig(path string) (*Config, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := new(Config)
	err = yaml.Unmarshal(dat, config)
	return config, err
}

// SaveConfig writes config back as yaml. Only the exported configuration is written; the
// recorded events stay in memory.
func SaveConfig(path string, config *Config) error {
	out := *config
	if config.Clock != nil {
		out.Clock = config.Clock.Settings()
	}

	dat, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}

	return os.WriteFile(path, dat, os.FileMode(int(0660)))
}
