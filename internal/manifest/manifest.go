// Package manifest reads action definitions from YAML or CUE files.
//
// A manifest lists actions under a top-level "actions" key:
//
//	actions:
//	  - name: Independence Day
//	    section: Movies
//	    target: Independence Day (1996)
//	    rule: {kind: annual, anchor: 2016-06-30, every: 1}
//	  - name: Plebs
//	    section: TV Shows
//	    target: Plebs
//	    effect: unwatch_next_episode
//	    rule: {kind: periodic_days, anchor: 2016-07-04, every: 7}
//
// CUE manifests use the same shape and are validated against an embedded
// schema before decoding.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/recurrence"
)

// Manifest is a parsed manifest file.
type Manifest struct {
	Actions []Entry `yaml:"actions" json:"actions"`
}

// Entry is one action as written in a manifest.
type Entry struct {
	Name    string `yaml:"name" json:"name"`
	Section string `yaml:"section" json:"section"`
	Target  string `yaml:"target" json:"target"`
	Effect  string `yaml:"effect,omitempty" json:"effect,omitempty"`
	Rule    Rule   `yaml:"rule" json:"rule"`
}

// Rule is the recurrence rule of an Entry.
type Rule struct {
	Kind       string `yaml:"kind" json:"kind"`
	Anchor     string `yaml:"anchor" json:"anchor"`
	Every      int    `yaml:"every,omitempty" json:"every,omitempty"`
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// EntryError reports an invalid entry.
type EntryError struct {
	Index int
	Name  string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("actions[%d] (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("actions[%d]: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Load reads a manifest, choosing the format from the file extension
// (.yml, .yaml or .cue).
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(filepath.Base(path), data)
	default:
		return nil, errors.Newf("unsupported manifest format %q (want .yml, .yaml or .cue)", filepath.Ext(path))
	}
}

// ParseYAML parses a YAML manifest. Unknown keys are rejected.
func ParseYAML(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "parse yaml manifest")
	}
	return &m, nil
}

// Definitions converts every entry. It stops at the first invalid entry
// and returns an *EntryError naming it.
func (m *Manifest) Definitions() ([]action.Definition, error) {
	defs := make([]action.Definition, 0, len(m.Actions))
	for i, e := range m.Actions {
		def, err := e.Definition()
		if err != nil {
			return nil, &EntryError{Index: i, Name: e.Name, Err: err}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Definition converts and validates the entry.
func (e Entry) Definition() (action.Definition, error) {
	sel, err := action.ParseSelector(e.Target)
	if err != nil {
		return action.Definition{}, errors.Wrap(err, "target")
	}
	effect, err := action.ParseEffect(e.Effect)
	if err != nil {
		return action.Definition{}, err
	}
	rule, err := e.Rule.Parse()
	if err != nil {
		return action.Definition{}, err
	}

	def := action.Definition{
		Name:     e.Name,
		Section:  e.Section,
		Selector: sel,
		Effect:   effect,
		Rule:     rule,
	}
	if err := def.Validate(); err != nil {
		return action.Definition{}, err
	}
	return def, nil
}

// Parse builds the recurrence rule.
func (r Rule) Parse() (recurrence.Rule, error) {
	anchor, err := recurrence.ParseDate(r.Anchor)
	if err != nil {
		return recurrence.Rule{}, err
	}
	return recurrence.Parse(recurrence.Kind(r.Kind), anchor, r.Every, r.Expression)
}

// FromDefinition renders a definition as a manifest entry.
func FromDefinition(def action.Definition) Entry {
	e := Entry{
		Name:    def.Name,
		Section: def.Section,
		Target:  def.Selector.String(),
		Effect:  string(def.Effect),
		Rule: Rule{
			Kind:       string(def.Rule.Kind()),
			Anchor:     def.Rule.Anchor().String(),
			Every:      def.Rule.Every(),
			Expression: def.Rule.Expression(),
		},
	}
	if def.Effect == action.EffectMarkUnwatched {
		e.Effect = ""
	}
	return e
}

// Marshal renders definitions as a YAML manifest accepted by ParseYAML.
func Marshal(defs []action.Definition) ([]byte, error) {
	m := Manifest{Actions: make([]Entry, len(defs))}
	for i, def := range defs {
		m.Actions[i] = FromDefinition(def)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	return buf.Bytes(), nil
}

// Examples returns the starter actions offered by bootstrap. The weekly
// show starts on today.
func Examples(today civil.Date, movies, shows string) []action.Definition {
	annual := func(anchor civil.Date, years int) recurrence.Rule {
		r, err := recurrence.NewAnnual(anchor, years)
		if err != nil {
			panic(err)
		}
		return r
	}
	weekly, err := recurrence.NewPeriodicDays(today, 7)
	if err != nil {
		panic(err)
	}

	return []action.Definition{
		{
			Name:     "Independence Day",
			Section:  movies,
			Selector: action.MustParseSelector("Independence Day"),
			Effect:   action.EffectMarkUnwatched,
			Rule:     annual(civil.Date{Year: 2016, Month: 6, Day: 30}, 1),
		},
		{
			Name:     "V for Vendetta",
			Section:  movies,
			Selector: action.MustParseSelector("V for Vendetta"),
			Effect:   action.EffectMarkUnwatched,
			Rule:     annual(civil.Date{Year: 2016, Month: 11, Day: 1}, 2),
		},
		{
			Name:     "Plebs",
			Section:  shows,
			Selector: action.MustParseSelector("Plebs"),
			Effect:   action.EffectUnwatchNextEpisode,
			Rule:     weekly,
		},
	}
}
