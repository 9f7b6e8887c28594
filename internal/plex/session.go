package plex

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog"
)

// Session is a connection to one Plex Media Server.
// Implements catalog.Session and catalog.UnwatchedReporter.
type Session struct {
	client    *Client
	baseURL   string
	token     string
	machineID string

	mu       sync.Mutex
	sections []section
}

// section is a library section (Directory) of the server.
type section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// metadata is the subset of a Metadata entry the scheduler reads.
type metadata struct {
	RatingKey        string `json:"ratingKey"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparentTitle"`
	Year             int    `json:"year"`
	Index            int    `json:"index"`
	ParentIndex      int    `json:"parentIndex"`
	ViewCount        int    `json:"viewCount"`
	LeafCount        int    `json:"leafCount"`
	ViewedLeafCount  int    `json:"viewedLeafCount"`
	Duration         int64  `json:"duration"`
	LibrarySectionID int    `json:"librarySectionID"`
}

type mediaContainer struct {
	MediaContainer struct {
		Size      int        `json:"size"`
		Directory []section  `json:"Directory"`
		Metadata  []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

// MachineID returns the server's machine identifier.
func (s *Session) MachineID() string { return s.machineID }

// BaseURL returns the address the session is bound to.
func (s *Session) BaseURL() string { return s.baseURL }

func (s *Session) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := s.client.newRequest(ctx, http.MethodGet, s.baseURL+path, query, s.token)
	if err != nil {
		return err
	}
	return s.client.do(req, out)
}

// Sections returns the library sections, fetched once per session.
func (s *Session) Sections(ctx context.Context) ([]string, error) {
	secs, err := s.librarySections(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(secs))
	for i, sec := range secs {
		titles[i] = sec.Title
	}
	return titles, nil
}

func (s *Session) librarySections(ctx context.Context) ([]section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sections != nil {
		return s.sections, nil
	}

	var resp mediaContainer
	if err := s.get(ctx, "/library/sections", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list sections")
	}
	s.sections = append([]section{}, resp.MediaContainer.Directory...)
	return s.sections, nil
}

func (s *Session) findSection(ctx context.Context, title string) (section, error) {
	secs, err := s.librarySections(ctx)
	if err != nil {
		return section{}, s.classify("list sections", "", err)
	}
	for _, sec := range secs {
		if sec.Title == title {
			return sec, nil
		}
	}
	return section{}, &catalog.NotFoundError{Section: title, Reason: "section not found"}
}

// Resolve implements catalog.Session.
func (s *Session) Resolve(ctx context.Context, sectionTitle, selector string) (catalog.Item, error) {
	sel, err := action.ParseSelector(selector)
	if err != nil {
		return nil, &catalog.NotFoundError{Section: sectionTitle, Selector: selector, Reason: err.Error()}
	}

	sec, err := s.findSection(ctx, sectionTitle)
	if err != nil {
		var nf *catalog.NotFoundError
		if errors.As(err, &nf) {
			nf.Selector = selector
		}
		return nil, err
	}

	var candidates []metadata
	if sel.Key != "" {
		var resp mediaContainer
		err := s.get(ctx, "/library/metadata/"+url.PathEscape(sel.Key), nil, &resp)
		if IsStatus(err, http.StatusNotFound) {
			return nil, &catalog.NotFoundError{Section: sectionTitle, Selector: selector}
		}
		if err != nil {
			return nil, s.classify("resolve", sel.Key, err)
		}
		for _, md := range resp.MediaContainer.Metadata {
			if md.LibrarySectionID == 0 || strconv.Itoa(md.LibrarySectionID) == sec.Key {
				candidates = append(candidates, md)
			}
		}
	} else {
		var resp mediaContainer
		q := url.Values{"title": {sel.Title}}
		if err := s.get(ctx, "/library/sections/"+url.PathEscape(sec.Key)+"/all", q, &resp); err != nil {
			return nil, s.classify("resolve", "", err)
		}
		// The title filter matches substrings; keep exact matches only.
		for _, md := range resp.MediaContainer.Metadata {
			if sel.MatchesTitle(md.Title) && (sel.Year == 0 || sel.Year == md.Year) {
				candidates = append(candidates, md)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil, &catalog.NotFoundError{Section: sectionTitle, Selector: selector}
	case 1:
		return s.newItem(candidates[0]), nil
	default:
		return nil, &catalog.NotFoundError{
			Section:  sectionTitle,
			Selector: selector,
			Reason:   "ambiguous, " + strconv.Itoa(len(candidates)) + " items match",
		}
	}
}

// UnwatchedHours implements catalog.UnwatchedReporter. It sums the
// durations of unwatched episodes in the section.
func (s *Session) UnwatchedHours(ctx context.Context, sectionTitle string) (float64, error) {
	sec, err := s.findSection(ctx, sectionTitle)
	if err != nil {
		return 0, err
	}

	var resp mediaContainer
	q := url.Values{"type": {"4"}, "unwatched": {"1"}}
	if err := s.get(ctx, "/library/sections/"+url.PathEscape(sec.Key)+"/all", q, &resp); err != nil {
		return 0, s.classify("unwatched episodes", "", err)
	}

	var ms int64
	for _, md := range resp.MediaContainer.Metadata {
		if md.ViewCount == 0 {
			ms += md.Duration
		}
	}
	return float64(ms) / float64(3600*1000), nil
}

// classify maps a transport or status failure onto the catalog taxonomy:
// HTTP status errors are remote operation failures, everything else means
// the server could not be reached.
func (s *Session) classify(op, key string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return &catalog.RemoteOperationError{Op: op, Key: key, Err: err}
	}
	return &catalog.ConnectionError{Server: s.baseURL, Err: err}
}

func (s *Session) newItem(md metadata) catalog.Item {
	it := &Item{session: s, md: md}
	if md.Type == "show" || md.Type == "season" {
		return &Show{Item: it}
	}
	return it
}

// Item is a movie or episode on the server. Implements catalog.Item.
type Item struct {
	session *Session
	md      metadata
}

// Key implements catalog.Item.
func (i *Item) Key() string { return i.md.RatingKey }

// Title implements catalog.Item.
func (i *Item) Title() string {
	if i.md.Type == "episode" && i.md.GrandparentTitle != "" {
		return i.md.GrandparentTitle + " - " + i.md.Title
	}
	return i.md.Title
}

// Watched implements catalog.Item. A show or season is watched when all of
// its episodes are.
func (i *Item) Watched() bool {
	if i.md.LeafCount > 0 {
		return i.md.ViewedLeafCount >= i.md.LeafCount
	}
	return i.md.ViewCount > 0
}

// MarkUnwatched implements catalog.Item. On a show it clears every episode.
func (i *Item) MarkUnwatched(ctx context.Context) error {
	q := url.Values{"key": {i.md.RatingKey}, "identifier": {libraryIdentifier}}
	if err := i.session.get(ctx, "/:/unscrobble", q, nil); err != nil {
		return &catalog.RemoteOperationError{Op: "unscrobble", Key: i.md.RatingKey, Err: err}
	}

	i.md.ViewCount = 0
	i.md.ViewedLeafCount = 0
	i.session.client.logger.Debug("marked unwatched", "key", i.md.RatingKey, "title", i.Title())
	return nil
}

// Show is a show or season. Implements catalog.Series.
type Show struct {
	*Item
}

// Episodes implements catalog.Series, ordered by season then episode.
func (s *Show) Episodes(ctx context.Context) ([]catalog.Item, error) {
	var resp mediaContainer
	path := "/library/metadata/" + url.PathEscape(s.md.RatingKey) + "/allLeaves"
	if err := s.session.get(ctx, path, nil, &resp); err != nil {
		return nil, s.session.classify("episodes", s.md.RatingKey, err)
	}

	eps := append([]metadata{}, resp.MediaContainer.Metadata...)
	sort.SliceStable(eps, func(i, j int) bool {
		if eps[i].ParentIndex != eps[j].ParentIndex {
			return eps[i].ParentIndex < eps[j].ParentIndex
		}
		return eps[i].Index < eps[j].Index
	})

	items := make([]catalog.Item, len(eps))
	for i, md := range eps {
		items[i] = &Item{session: s.session, md: md}
	}
	return items, nil
}
