package action

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/recurrence"
)

// Definition is an action that has not been stored yet. It is the input of
// bootstrap, import and add.
type Definition struct {
	Name     string
	Section  string
	Selector Selector
	Effect   Effect
	Rule     recurrence.Rule
}

// Validate checks that every required field is present.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("action name is required")
	}
	if strings.TrimSpace(d.Section) == "" {
		return errors.Newf("action %q: section is required", d.Name)
	}
	if d.Selector.IsZero() {
		return errors.Newf("action %q: target selector is required", d.Name)
	}
	if _, err := ParseEffect(string(d.Effect)); err != nil {
		return errors.Wrapf(err, "action %q", d.Name)
	}
	if d.Rule.IsZero() {
		return errors.Newf("action %q: recurrence rule is required", d.Name)
	}
	return nil
}
