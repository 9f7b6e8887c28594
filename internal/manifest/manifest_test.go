package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/recurrence"
)

const yamlManifest = `
actions:
  - name: Independence Day
    section: Movies
    target: Independence Day (1996)
    rule: {kind: annual, anchor: 2016-06-30, every: 1}
  - name: Plebs
    section: TV Shows
    target: Plebs
    effect: unwatch_next_episode
    rule:
      kind: periodic_days
      anchor: 2016-07-04
      every: 7
  - name: First of the month
    section: Movies
    target: key:4242
    rule:
      kind: calendar
      anchor: 2016-01-01
      expression: "0 0 1 * *"
`

const cueManifest = `
actions: [
	{
		name:    "Independence Day"
		section: "Movies"
		target:  "Independence Day (1996)"
		rule: {kind: "annual", anchor: "2016-06-30", every: 1}
	},
	{
		name:    "Plebs"
		section: "TV Shows"
		target:  "Plebs"
		effect:  "unwatch_next_episode"
		rule: {kind: "periodic_days", anchor: "2016-07-04", every: 7}
	},
	{
		name:    "First of the month"
		section: "Movies"
		target:  "key:4242"
		rule: {kind: "calendar", anchor: "2016-01-01", expression: "0 0 1 * *"}
	},
]
`

func assertExampleDefinitions(t *testing.T, defs []action.Definition) {
	t.Helper()
	require.Len(t, defs, 3)

	assert.Equal(t, "Independence Day", defs[0].Name)
	assert.Equal(t, "Movies", defs[0].Section)
	assert.Equal(t, action.Selector{Title: "Independence Day", Year: 1996}, defs[0].Selector)
	assert.Equal(t, action.EffectMarkUnwatched, defs[0].Effect)
	assert.Equal(t, recurrence.KindAnnual, defs[0].Rule.Kind())
	assert.Equal(t, civil.Date{Year: 2016, Month: 6, Day: 30}, defs[0].Rule.Anchor())
	assert.Equal(t, 1, defs[0].Rule.Every())

	assert.Equal(t, action.EffectUnwatchNextEpisode, defs[1].Effect)
	assert.Equal(t, recurrence.KindPeriodicDays, defs[1].Rule.Kind())
	assert.Equal(t, 7, defs[1].Rule.Every())

	assert.Equal(t, "4242", defs[2].Selector.Key)
	assert.Equal(t, recurrence.KindCalendar, defs[2].Rule.Kind())
	assert.Equal(t, "0 0 1 * *", defs[2].Rule.Expression())
}

func TestParseYAML(t *testing.T) {
	m, err := ParseYAML([]byte(yamlManifest))
	require.NoError(t, err)

	defs, err := m.Definitions()
	require.NoError(t, err)
	assertExampleDefinitions(t, defs)
}

func TestParseYAML_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("actions:\n  - name: x\n    colour: blue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestDefinitions_InvalidEntry(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		wantErr string
	}{
		{"zero period", "{kind: periodic_days, anchor: 2016-07-04, every: 0}", "every"},
		{"unknown kind", "{kind: hourly, anchor: 2016-07-04, every: 1}", "hourly"},
		{"bad anchor", "{kind: annual, anchor: 2016-13-40, every: 1}", "2016-13-40"},
		{"bad expression", "{kind: calendar, anchor: 2016-07-04, expression: nonsense}", "nonsense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "actions:\n" +
				"  - {name: ok, section: Movies, target: A, rule: {kind: annual, anchor: 2016-01-01, every: 1}}\n" +
				"  - {name: broken, section: Movies, target: B, rule: " + tt.rule + "}\n"

			m, err := ParseYAML([]byte(doc))
			require.NoError(t, err)

			_, err = m.Definitions()
			require.Error(t, err)

			var ee *EntryError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, 1, ee.Index)
			assert.Equal(t, "broken", ee.Name)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefinitions_ConfigurationErrorSurfaces(t *testing.T) {
	m, err := ParseYAML([]byte("actions:\n  - {name: x, section: S, target: T, rule: {kind: annual, anchor: 2016-01-01, every: -1}}\n"))
	require.NoError(t, err)

	_, err = m.Definitions()
	assert.True(t, recurrence.IsConfigurationError(err))
}

func TestParseCUE(t *testing.T) {
	m, err := ParseCUE("actions.cue", []byte(cueManifest))
	require.NoError(t, err)

	defs, err := m.Definitions()
	require.NoError(t, err)
	assertExampleDefinitions(t, defs)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", `actions: [{name: "a", section: "Movies", target: "A", rule: {kind: "hourly", anchor: "2016-01-01"}}]`},
		{"bad anchor", `actions: [{name: "a", section: "Movies", target: "A", rule: {kind: "annual", anchor: "July 4th", every: 1}}]`},
		{"zero every", `actions: [{name: "a", section: "Movies", target: "A", rule: {kind: "annual", anchor: "2016-01-01", every: 0}}]`},
		{"missing target", `actions: [{name: "a", section: "Movies", rule: {kind: "annual", anchor: "2016-01-01", every: 1}}]`},
		{"unknown field", `actions: [{name: "a", section: "Movies", target: "A", colour: "blue", rule: {kind: "annual", anchor: "2016-01-01", every: 1}}]`},
		{"unknown effect", `actions: [{name: "a", section: "Movies", target: "A", effect: "delete", rule: {kind: "annual", anchor: "2016-01-01", every: 1}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE("bad.cue", []byte(tt.doc))
			require.Error(t, err)

			var se *SchemaError
			assert.True(t, errors.As(err, &se), "got %T: %v", err, err)
		})
	}
}

func TestParseCUE_SyntaxError(t *testing.T) {
	_, err := ParseCUE("broken.cue", []byte("actions: [{"))
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Pos.IsValid())
	assert.Contains(t, se.Error(), "broken.cue")
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"actions.yml":  yamlManifest,
		"actions.yaml": yamlManifest,
		"actions.cue":  cueManifest,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			m, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, m.Actions, 3)
		})
	}

	path := filepath.Join(dir, "actions.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported manifest format")

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	m, err := ParseYAML([]byte(yamlManifest))
	require.NoError(t, err)
	defs, err := m.Definitions()
	require.NoError(t, err)

	data, err := Marshal(defs)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "mark_unwatched", "default effect omitted")

	again, err := ParseYAML(data)
	require.NoError(t, err)
	defs2, err := again.Definitions()
	require.NoError(t, err)
	assert.Equal(t, defs, defs2)
}

func TestExamples(t *testing.T) {
	today := civil.Date{Year: 2024, Month: 3, Day: 5}
	defs := Examples(today, "Movies", "TV Shows")
	require.Len(t, defs, 3)

	for _, def := range defs {
		assert.NoError(t, def.Validate(), def.Name)
	}

	assert.Equal(t, civil.Date{Year: 2016, Month: 6, Day: 30}, defs[0].Rule.Anchor())
	assert.Equal(t, 1, defs[0].Rule.Every())
	assert.Equal(t, civil.Date{Year: 2016, Month: 11, Day: 1}, defs[1].Rule.Anchor())
	assert.Equal(t, 2, defs[1].Rule.Every())

	assert.Equal(t, "TV Shows", defs[2].Section)
	assert.Equal(t, action.EffectUnwatchNextEpisode, defs[2].Effect)
	assert.Equal(t, today, defs[2].Rule.Anchor())
	assert.Equal(t, 7, defs[2].Rule.Every())
}
