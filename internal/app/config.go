package app

import "errors"

// Config holds everything an App instance needs to run once.
type Config struct {
	// ManifestPath is a single .hcl file or a directory of them.
	ManifestPath string

	// Environment is the selector the candidate filenames derive from
	// (e.g. "uat" -> uat.yml, uat.yaml, uat.json, uat.toml).
	Environment string

	// CandidateFiles, when non-empty, overrides the derived candidate list.
	CandidateFiles []string

	// SearchPaths are the directories probed for candidates, in order.
	// Relative entries are anchored at the manifest's directory.
	SearchPaths []string

	// Limit restricts dispatch to the named components.
	Limit []string

	DryRun   bool
	FailFast bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"env-vars"}
	}
	return &cfg, nil
}
