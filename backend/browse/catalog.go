// Package browse serves the media tree shown on car displays: a root with
// the library and the recently played list, both published by the host.
package browse

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/strcase"
	"github.com/deluan/sanitize"
	"github.com/rezon/mediasession/sharedutil"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	RootID       = "root"
	AudiobooksID = "audiobooks"
	RecentID     = "recent"

	NoBooksID  = "no_books"
	NoRecentID = "no_recent"

	DefaultMaxRecent = 20
)

var ErrUnknownParent = errors.New("unknown browse parent")

// Item is a node of the browse tree.
type Item struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	ArtworkRef string `json:"artworkRef,omitempty"`
	Browsable  bool   `json:"browsable,omitempty"`
	Playable   bool   `json:"playable,omitempty"`
}

var (
	rootChildren = []Item{
		{ID: AudiobooksID, Title: "Audiobooks", Browsable: true},
		{ID: RecentID, Title: "Recently Played", Browsable: true},
	}
	noBooksItem  = Item{ID: NoBooksID, Title: "Open Rezon App", Subtitle: "Add audiobooks to see them here"}
	noRecentItem = Item{ID: NoRecentID, Title: "No Recent Books", Subtitle: "Start listening to see recent books"}
)

// Catalog holds the browsable items. It is safe for concurrent use.
type Catalog struct {
	MaxRecent int

	mu         sync.RWMutex
	audiobooks []Item
	recent     []Item
}

func NewCatalog() *Catalog {
	return &Catalog{MaxRecent: DefaultMaxRecent}
}

// SetItems replaces the published library and recent list.
// Library items are sorted by title; recent items keep the host's order.
func (c *Catalog) SetItems(audiobooks, recent []Item) {
	books := sharedutil.FilterMapSlice(audiobooks, normalizeItem)
	coll := collate.New(language.English, collate.Loose)
	slices.SortStableFunc(books, func(a, b Item) int {
		return coll.CompareString(a.Title, b.Title)
	})
	rec := sharedutil.FilterMapSlice(recent, normalizeItem)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.audiobooks = books
	c.recent = c.trimRecent(rec)
}

// Children lists the items under parentID. Empty folders return a single
// non-playable placeholder.
func (c *Catalog) Children(parentID string) ([]Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch parentID {
	case RootID:
		return slices.Clone(rootChildren), nil
	case AudiobooksID:
		if len(c.audiobooks) == 0 {
			return []Item{noBooksItem}, nil
		}
		return slices.Clone(c.audiobooks), nil
	case RecentID:
		if len(c.recent) == 0 {
			return []Item{noRecentItem}, nil
		}
		return slices.Clone(c.recent), nil
	}
	return nil, ErrUnknownParent
}

// Lookup finds a published item by ID.
func (c *Catalog) Lookup(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := slices.IndexFunc(c.recent, byID(id)); i >= 0 {
		return c.recent[i], true
	}
	if i := slices.IndexFunc(c.audiobooks, byID(id)); i >= 0 {
		return c.audiobooks[i], true
	}
	return Item{}, false
}

// IsPlayable reports whether id names a playable published item.
// Folders and placeholders are not playable.
func (c *Catalog) IsPlayable(id string) bool {
	it, ok := c.Lookup(id)
	return ok && it.Playable
}

// MarkPlayed moves the item to the top of the recent list.
func (c *Catalog) MarkPlayed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.IndexFunc(c.recent, byID(id)); i >= 0 {
		c.recent = sharedutil.ReorderItems(c.recent, []int{i}, 0)
		return
	}
	if i := slices.IndexFunc(c.audiobooks, byID(id)); i >= 0 {
		c.recent = c.trimRecent(append([]Item{c.audiobooks[i]}, c.recent...))
	}
}

// Search returns the playable items whose title or subtitle contain every
// term of query, ignoring case and accents. Items matching the whole query
// in their title rank first.
func (c *Catalog) Search(query string) []Item {
	q := strings.TrimSpace(sanitize.Accents(query))
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return nil
	}

	c.mu.RLock()
	candidates := slices.Clone(c.audiobooks)
	inLibrary := sharedutil.ToSet(sharedutil.MapSlice(c.audiobooks, func(it Item) string { return it.ID }))
	for _, r := range c.recent {
		if _, ok := inLibrary[r.ID]; !ok {
			candidates = append(candidates, r)
		}
	}
	c.mu.RUnlock()

	results := sharedutil.FilterSlice(candidates, func(it Item) bool {
		if !it.Playable {
			return false
		}
		text := sanitize.Accents(it.Title + " " + it.Subtitle)
		for _, t := range terms {
			if !strcase.Contains(text, t) {
				return false
			}
		}
		return true
	})
	slices.SortStableFunc(results, func(a, b Item) int {
		ma := strcase.Contains(sanitize.Accents(a.Title), q)
		mb := strcase.Contains(sanitize.Accents(b.Title), q)
		switch {
		case ma && !mb:
			return -1
		case mb && !ma:
			return 1
		}
		return 0
	})
	return results
}

// must be called with mu held
func (c *Catalog) trimRecent(items []Item) []Item {
	if c.MaxRecent > 0 && len(items) > c.MaxRecent {
		return items[:c.MaxRecent]
	}
	return items
}

func normalizeItem(it Item) (Item, bool) {
	it.ID = strings.TrimSpace(it.ID)
	switch it.ID {
	case "", RootID, AudiobooksID, RecentID, NoBooksID, NoRecentID:
		return it, false
	}
	if strings.TrimSpace(it.Title) == "" {
		it.Title = it.ID
	}
	// published items are leaves
	it.Browsable = false
	it.Playable = true
	return it, true
}

func byID(id string) func(Item) bool {
	return func(it Item) bool { return it.ID == id }
}
