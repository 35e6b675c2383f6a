package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

const configFileName = ".rvdumprc"

// config holds the REPL's display preferences. Every field has a usable
// zero/default value so a missing or partial .rvdumprc still works.
type config struct {
	DisasmLength int  `yaml:"disasm_length"`
	Demangle     bool `yaml:"demangle"`
}

func defaultConfig() config {
	return config{
		DisasmLength: 10,
		Demangle:     true,
	}
}

// loadConfig reads .rvdumprc from the working directory if present,
// overlaying it onto the defaults. A missing file is not an error.
func loadConfig() (config, error) {
	cfg := defaultConfig()

	content, err := os.ReadFile(configFileName)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}

	err = yaml.Unmarshal(content, &cfg)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}
