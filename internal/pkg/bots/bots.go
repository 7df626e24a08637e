// Package bots detects crawler and automation user agents. Detection
// uses a curated pattern database embedded at build time; patterns are
// PCRE and compiled lazily on first use.
package bots

import (
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed database/bots.yml
var databaseFiles embed.FS

// BotEntry is one pattern in the database.
type BotEntry struct {
	Regex    string `yaml:"regex"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type detector struct {
	entries []BotEntry

	mu       sync.Mutex
	compiled map[string]*pcre.Regexp
}

var (
	instance *detector
	once     sync.Once
)

func getDetector() *detector {
	once.Do(func() {
		instance = &detector{compiled: make(map[string]*pcre.Regexp)}

		data, err := databaseFiles.ReadFile("database/bots.yml")
		if err != nil {
			slog.Default().Error("Failed to read bot database", slog.Any("error", err))
			return
		}
		if err := yaml.Unmarshal(data, &instance.entries); err != nil {
			slog.Default().Error("Failed to parse bot database", slog.Any("error", err))
		}
	})
	return instance
}

// get compiles a pattern on demand and caches it. Patterns are matched
// case-insensitively.
func (d *detector) get(pattern string) (*pcre.Regexp, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if regex, exists := d.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(fmt.Sprintf("(?i)%s", pattern))
	if err != nil {
		return nil, err
	}
	d.compiled[pattern] = regex
	return regex, nil
}

// Detect reports whether the user agent belongs to a known bot and, if
// so, which one. An empty user agent is not treated as a bot; it still
// carries no classifiable browser and shows up as Unknown downstream.
func Detect(userAgent string) (BotEntry, bool) {
	if userAgent == "" {
		return BotEntry{}, false
	}

	d := getDetector()
	for _, entry := range d.entries {
		regex, err := d.get(entry.Regex)
		if err != nil {
			slog.Default().Debug("Skipping invalid bot pattern",
				slog.String("pattern", entry.Regex), slog.Any("error", err))
			continue
		}
		if regex.MatchString(userAgent) {
			return entry, true
		}
	}
	return BotEntry{}, false
}

// IsBot reports whether the user agent belongs to a known bot.
func IsBot(userAgent string) bool {
	_, ok := Detect(userAgent)
	return ok
}
