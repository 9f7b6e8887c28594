package harness

import (
	"bytes"
	"os"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/plexsched/internal/manifest"
)

// Scenario defines a scheduling scenario.
// Scenarios seed a catalog and a set of actions, run one cycle per simulated
// day against the real engine, and assert on the resulting trace and state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog lists the library content visible to the engine.
	Catalog []CatalogItem `yaml:"catalog"`

	// Actions are the scheduled actions, written as manifest entries.
	// They are created in order, so the first entry gets id 1.
	Actions []manifest.Entry `yaml:"actions"`

	// Settings tune the engine the way the cron section of the config does.
	Settings Settings `yaml:"settings,omitempty"`

	// Days are the cycles to run, in order.
	Days []Day `yaml:"days"`

	// Assertions validate the final trace and state.
	// Supported types: marked, mark_count, watched, last_occurrence, run_count
	Assertions []Assertion `yaml:"assertions"`
}

// CatalogItem is a movie, or a show when Episodes is set.
// Keys are assigned in order starting at 1001; episodes of a show with key
// K are keyed K/e01, K/e02 and so on.
type CatalogItem struct {
	Section  string `yaml:"section"`
	Title    string `yaml:"title"`
	Year     int    `yaml:"year,omitempty"`
	Watched  bool   `yaml:"watched,omitempty"`
	Episodes []bool `yaml:"episodes,omitempty"`
}

// Settings mirror the cron config section.
type Settings struct {
	LookaheadLimit   *int    `yaml:"lookahead_limit,omitempty"`
	HorizonDays      int     `yaml:"horizon_days,omitempty"`
	SufficiencyHours float64 `yaml:"sufficiency_hours,omitempty"`
	ShowsSection     string  `yaml:"shows_section,omitempty"`
}

// Day is one simulated cycle. Watch, Fail, Recover and UnwatchedHours are
// applied to the catalog before the cycle runs.
type Day struct {
	Today string `yaml:"today"`

	// Watch lists item keys the user watched since the previous cycle.
	Watch []string `yaml:"watch,omitempty"`

	// Fail makes unwatching the keyed items fail with the given message.
	Fail map[string]string `yaml:"fail,omitempty"`

	// Recover clears failures injected by Fail.
	Recover []string `yaml:"recover,omitempty"`

	// Unreachable makes connecting to the server fail for this cycle.
	Unreachable bool `yaml:"unreachable,omitempty"`

	// UnwatchedHours sets the unwatched content reported per section.
	UnwatchedHours map[string]float64 `yaml:"unwatched_hours,omitempty"`

	// Expect optionally checks the cycle result.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a single cycle. Nil fields are not checked.
type Expect struct {
	Applied   *int  `yaml:"applied,omitempty"`
	Total     *int  `yaml:"total,omitempty"`
	Skipped   *int  `yaml:"skipped,omitempty"`
	Lookahead *bool `yaml:"lookahead,omitempty"`

	// Aborted expects the cycle to stop at a failed action.
	Aborted bool `yaml:"aborted,omitempty"`

	// Error is a substring the cycle error must contain. Setting it expects
	// the cycle to fail.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final trace or state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "marked": items were unwatched in exactly this order (Keys)
	// - "mark_count": exactly Count unwatch calls were made, including failures
	// - "watched": the item Key is watched or not (Watched)
	// - "last_occurrence": action Action was last applied for Date; an empty
	//   Date means never
	// - "run_count": exactly Count runs were recorded
	Type string `yaml:"type"`

	Keys    []string `yaml:"keys,omitempty"`
	Key     string   `yaml:"key,omitempty"`
	Watched bool     `yaml:"watched,omitempty"`
	Action  string   `yaml:"action,omitempty"`
	Date    string   `yaml:"date,omitempty"`
	Count   int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertMarked         = "marked"
	AssertMarkCount      = "mark_count"
	AssertWatched        = "watched"
	AssertLastOccurrence = "last_occurrence"
	AssertRunCount       = "run_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so "assertion:" is not silently ignored.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	if s.Description == "" {
		return errors.New("description is required")
	}

	if len(s.Days) == 0 {
		return errors.New("days list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for i, item := range s.Catalog {
		if item.Section == "" || item.Title == "" {
			return errors.Newf("catalog[%d]: section and title are required", i)
		}
	}

	for i, entry := range s.Actions {
		if _, err := entry.Definition(); err != nil {
			return errors.Wrapf(err, "actions[%d]", i)
		}
	}

	if s.Settings.LookaheadLimit != nil && *s.Settings.LookaheadLimit < 0 {
		return errors.New("settings.lookahead_limit must be non-negative")
	}

	var prev civil.Date
	for i, day := range s.Days {
		d, err := civil.ParseDate(day.Today)
		if err != nil {
			return errors.Newf("days[%d]: invalid today %q", i, day.Today)
		}
		if d.Before(prev) {
			return errors.Newf("days[%d]: %s is before the previous day", i, day.Today)
		}
		prev = d
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return errors.Newf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMarked:
		// An empty list asserts nothing was unwatched.
	case AssertMarkCount, AssertRunCount:
		if a.Count < 0 {
			return errors.Newf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertWatched:
		if a.Key == "" {
			return errors.Newf("assertions[%d]: key is required for watched", index)
		}
	case AssertLastOccurrence:
		if a.Action == "" {
			return errors.Newf("assertions[%d]: action is required for last_occurrence", index)
		}
		if a.Date != "" {
			if _, err := civil.ParseDate(a.Date); err != nil {
				return errors.Newf("assertions[%d]: invalid date %q", index, a.Date)
			}
		}
	default:
		return errors.Newf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
