// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package matchstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/aegis-c9/aegis/lib/schema/match"
)

// RosterEntry is one player as written in a roster file or in the
// "roster" section of the config file.
type RosterEntry struct {
	ID           int    `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Role         string `yaml:"role" json:"role"`
	Stress       int    `yaml:"stress" json:"stress"`
	Impact       int    `yaml:"impact" json:"impact"`
	RecentErrors int    `yaml:"recent_errors" json:"recent_errors"`

	// Status is optional. When empty it is derived from Impact with
	// the same thresholds the reducer applies to probabilities; when
	// set it must agree with that derivation.
	Status match.Status `yaml:"status,omitempty" json:"status,omitempty"`
}

// Player converts the entry to its starting PlayerData.
func (entry RosterEntry) Player() match.PlayerData {
	status := entry.Status
	if status == "" {
		status = Classify(float64(entry.Impact) / 100)
	}
	return match.PlayerData{
		ID:           entry.ID,
		Name:         entry.Name,
		Role:         entry.Role,
		Stress:       entry.Stress,
		Impact:       entry.Impact,
		Status:       status,
		RecentErrors: entry.RecentErrors,
	}
}

// DefaultRoster returns the built-in five-player roster used when no
// roster is configured.
func DefaultRoster() []match.PlayerData {
	return []match.PlayerData{
		{ID: 1, Name: "Zven", Role: "ADC", Stress: 20, Impact: 98, Status: match.StatusOptimal},
		{ID: 2, Name: "Blaber", Role: "Jungle", Stress: 25, Impact: 95, Status: match.StatusOptimal},
		{ID: 3, Name: "Jojopyun", Role: "Mid", Stress: 30, Impact: 92, Status: match.StatusOptimal},
		{ID: 4, Name: "Berserker", Role: "Top", Stress: 22, Impact: 96, Status: match.StatusOptimal},
		{ID: 5, Name: "Vulcan", Role: "Support", Stress: 28, Impact: 94, Status: match.StatusOptimal},
	}
}

// RosterFromEntries converts and validates a configured roster.
func RosterFromEntries(entries []RosterEntry) ([]match.PlayerData, error) {
	players := make([]match.PlayerData, len(entries))
	for i, entry := range entries {
		players[i] = entry.Player()
	}
	if err := ValidateRoster(players); err != nil {
		return nil, err
	}
	return players, nil
}

// ValidateRoster checks that a roster is non-empty, that player IDs
// are unique, that every player is individually valid, and that each
// status is the one its impact classifies to. All problems are
// reported together.
func ValidateRoster(players []match.PlayerData) error {
	if len(players) == 0 {
		return errors.New("roster is empty")
	}
	var errs []error
	seen := make(map[int]bool, len(players))
	for _, player := range players {
		if seen[player.ID] {
			errs = append(errs, fmt.Errorf("duplicate player id %d", player.ID))
		}
		seen[player.ID] = true
		if err := player.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if derived := Classify(float64(player.Impact) / 100); player.Status != derived {
			errs = append(errs, fmt.Errorf("player %q: status %s contradicts impact %d (classifies as %s)",
				player.Name, player.Status, player.Impact, derived))
		}
	}
	return errors.Join(errs...)
}

// LoadRoster reads a roster file. The format follows the extension:
// .yaml and .yml are YAML; .json and .jsonc are JSON with comments
// and trailing commas allowed. The file holds a list of entries.
func LoadRoster(path string) ([]match.PlayerData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	var entries []RosterEntry
	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing roster %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
			return nil, fmt.Errorf("parsing roster %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("roster %s: unsupported extension %q (want .yaml, .yml, .json, or .jsonc)", path, extension)
	}

	players, err := RosterFromEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return players, nil
}
