package action

import (
	"github.com/cockroachdb/errors"
)

// Effect identifies what is done to the resolved catalog item.
type Effect string

const (
	// EffectMarkUnwatched marks the item (a movie, or a whole show) unwatched.
	EffectMarkUnwatched Effect = "mark_unwatched"

	// EffectUnwatchNextEpisode marks the first watched episode of a show,
	// in season/episode order, unwatched.
	EffectUnwatchNextEpisode Effect = "unwatch_next_episode"
)

// Effects lists every supported effect.
var Effects = []Effect{EffectMarkUnwatched, EffectUnwatchNextEpisode}

// ParseEffect validates s as an Effect. The empty string selects
// EffectMarkUnwatched.
func ParseEffect(s string) (Effect, error) {
	if s == "" {
		return EffectMarkUnwatched, nil
	}
	for _, e := range Effects {
		if string(e) == s {
			return e, nil
		}
	}
	return "", errors.Newf("unknown effect %q: must be one of %v", s, Effects)
}
