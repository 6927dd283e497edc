package watcher

import "time"

type WatcherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	// Patterns select the files whose changes trigger a reload.
	Patterns       []string `yaml:"patterns"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	WatchHidden    bool     `yaml:"watch_hidden"`
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		Patterns:       []string{"**/*.yaml", "**/*.yml"},
		IgnorePatterns: []string{
			"**/.git/**",
			"**/*~",
			"**/*.swp",
			"**/*.tmp",
		},
		WatchHidden: false,
	}
}
