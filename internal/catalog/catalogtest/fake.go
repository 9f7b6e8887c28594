// Package catalogtest provides an in-memory catalog for tests.
//
// The fake records every mutating call so tests can assert the at-most-once
// remote effect guarantees of the engine, and can inject connection,
// resolution and operation failures.
package catalogtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog"
)

// Catalog is a fake catalog.Client. The zero value is not usable; call New.
type Catalog struct {
	mu sync.Mutex

	// ConnectErr, when set, is returned (wrapped) by Connect.
	ConnectErr error

	sections       map[string][]*Item
	resolveErrs    map[string]error
	unwatchedHours map[string]float64
	connects       int
	marked         []string
	nextKey        int
}

// Item is a fake movie, show or episode.
type Item struct {
	catalog  *Catalog
	key      string
	title    string
	year     int
	watched  bool
	episodes []*Item
	failWith error
}

// New returns an empty fake catalog.
func New() *Catalog {
	return &Catalog{
		sections:       make(map[string][]*Item),
		resolveErrs:    make(map[string]error),
		unwatchedHours: make(map[string]float64),
	}
}

// AddMovie adds a movie to section.
func (c *Catalog) AddMovie(section, title string, year int, watched bool) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := &Item{catalog: c, key: c.newKey(), title: title, year: year, watched: watched}
	c.sections[section] = append(c.sections[section], it)
	return it
}

// AddShow adds a show to section with one episode per entry of watched.
func (c *Catalog) AddShow(section, title string, watched ...bool) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	show := &Item{catalog: c, key: c.newKey(), title: title}
	for i, w := range watched {
		show.episodes = append(show.episodes, &Item{
			catalog: c,
			key:     fmt.Sprintf("%s/e%02d", show.key, i+1),
			title:   fmt.Sprintf("%s - E%02d", title, i+1),
			watched: w,
		})
	}
	c.sections[section] = append(c.sections[section], show)
	return show
}

// FailResolve makes Resolve of selector return err.
func (c *Catalog) FailResolve(selector string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveErrs[selector] = err
}

// SetUnwatchedHours sets the value reported by UnwatchedHours for section.
func (c *Catalog) SetUnwatchedHours(section string, hours float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unwatchedHours[section] = hours
}

// Connects returns how many sessions were opened.
func (c *Catalog) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Marked returns the keys passed to MarkUnwatched, in call order, including
// calls that failed.
func (c *Catalog) Marked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.marked...)
}

// MarkCalls returns the number of mutating calls made.
func (c *Catalog) MarkCalls() int {
	return len(c.Marked())
}

// Item returns the movie, show or episode with key, or nil.
func (c *Catalog) Item(key string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, items := range c.sections {
		for _, it := range items {
			if it.key == key {
				return it
			}
			for _, ep := range it.episodes {
				if ep.key == key {
					return ep
				}
			}
		}
	}
	return nil
}

// Connect implements catalog.Client.
func (c *Catalog) Connect(ctx context.Context) (catalog.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connects++
	if c.ConnectErr != nil {
		return nil, &catalog.ConnectionError{Server: "fake", Err: c.ConnectErr}
	}
	if err := ctx.Err(); err != nil {
		return nil, &catalog.ConnectionError{Server: "fake", Err: err}
	}
	return &session{catalog: c}, nil
}

func (c *Catalog) newKey() string {
	c.nextKey++
	return fmt.Sprintf("%d", 1000+c.nextKey)
}

type session struct {
	catalog *Catalog
}

// Resolve implements catalog.Session.
func (s *session) Resolve(ctx context.Context, section, selector string) (catalog.Item, error) {
	c := s.catalog
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.resolveErrs[selector]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &catalog.ConnectionError{Server: "fake", Err: err}
	}

	items, ok := c.sections[section]
	if !ok {
		return nil, &catalog.NotFoundError{Section: section, Selector: selector, Reason: "section not found"}
	}

	sel, err := action.ParseSelector(selector)
	if err != nil {
		return nil, &catalog.NotFoundError{Section: section, Selector: selector, Reason: err.Error()}
	}

	var matches []*Item
	for _, it := range items {
		switch {
		case sel.Key != "":
			if it.key == sel.Key {
				matches = append(matches, it)
			}
		case sel.MatchesTitle(it.title) && (sel.Year == 0 || sel.Year == it.year):
			matches = append(matches, it)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &catalog.NotFoundError{Section: section, Selector: selector}
	case 1:
		if matches[0].episodes != nil {
			return &show{matches[0]}, nil
		}
		return matches[0], nil
	default:
		return nil, &catalog.NotFoundError{
			Section:  section,
			Selector: selector,
			Reason:   fmt.Sprintf("ambiguous, %d items match", len(matches)),
		}
	}
}

// UnwatchedHours implements catalog.UnwatchedReporter.
func (s *session) UnwatchedHours(ctx context.Context, section string) (float64, error) {
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()
	return s.catalog.unwatchedHours[section], nil
}

// FailWith makes subsequent MarkUnwatched calls on the item fail with err.
func (i *Item) FailWith(err error) {
	i.catalog.mu.Lock()
	defer i.catalog.mu.Unlock()
	i.failWith = err
}

// SetWatched marks the item, or every episode of a show, as watched or not
// without recording a remote call.
func (i *Item) SetWatched(watched bool) {
	i.catalog.mu.Lock()
	defer i.catalog.mu.Unlock()

	i.watched = watched
	for _, ep := range i.episodes {
		ep.watched = watched
	}
}

// Episode returns the n-th (1-based) episode of a show.
func (i *Item) Episode(n int) *Item {
	return i.episodes[n-1]
}

// Key implements catalog.Item.
func (i *Item) Key() string { return i.key }

// Title implements catalog.Item.
func (i *Item) Title() string { return i.title }

// Watched implements catalog.Item.
func (i *Item) Watched() bool {
	i.catalog.mu.Lock()
	defer i.catalog.mu.Unlock()
	return i.watchedLocked()
}

func (i *Item) watchedLocked() bool {
	if i.episodes == nil {
		return i.watched
	}
	for _, ep := range i.episodes {
		if !ep.watched {
			return false
		}
	}
	return true
}

// MarkUnwatched implements catalog.Item.
func (i *Item) MarkUnwatched(ctx context.Context) error {
	i.catalog.mu.Lock()
	defer i.catalog.mu.Unlock()

	i.catalog.marked = append(i.catalog.marked, i.key)
	if i.failWith != nil {
		return &catalog.RemoteOperationError{Op: "unscrobble", Key: i.key, Err: i.failWith}
	}
	if err := ctx.Err(); err != nil {
		return &catalog.RemoteOperationError{Op: "unscrobble", Key: i.key, Err: err}
	}

	i.watched = false
	for _, ep := range i.episodes {
		ep.watched = false
	}
	return nil
}

// show exposes the Series capability only for items with episodes.
type show struct {
	*Item
}

// Episodes implements catalog.Series.
func (s *show) Episodes(ctx context.Context) ([]catalog.Item, error) {
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()

	eps := make([]catalog.Item, len(s.episodes))
	for i, ep := range s.episodes {
		eps[i] = ep
	}
	return eps, nil
}
