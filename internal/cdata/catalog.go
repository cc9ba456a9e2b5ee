package cdata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/apexstats/apex-tracker/internal/network/encoding"
)

var (
	ErrLoadCatalog   = errors.New("failed to load cdata catalog")
	ErrEmptyCatalog  = errors.New("cdata catalog has no entries")
	ErrUnknownCode   = errors.New("unknown cdata code")
	ErrNotCharacter  = errors.New("cdata code is not a character")
	ErrNotTracker    = errors.New("cdata code is not a tracker")
	ErrUnknownLegend = errors.New("character does not resolve to a known legend")
)

// Entry is a single classified catalog record.
type Entry struct {
	Code     int
	Name     string
	Key      string
	Category Category
	Legend   Legend
	Grouping Grouping
	Mode     Mode
}

// File is the on-disk catalog format. Entries map the decimal code to a [name, key] pair, which
// is the same shape the community cdata dumps use.
type File struct {
	Version string              `json:"version"`
	Entries map[string][]string `json:"entries"`
}

// Catalog is an immutable lookup table of classified entries. It is built once at startup and
// shared by pointer between the pollers and the reconstructor without locking.
type Catalog struct {
	version string
	entries map[int]Entry
}

// New builds a catalog from raw code -> [name, key] pairs. Malformed rows are skipped with a warning.
func New(version string, raw map[string][]string) (*Catalog, error) {
	catalog := &Catalog{version: version, entries: make(map[int]Entry, len(raw))}

	for codeStr, pair := range raw {
		code, errCode := strconv.Atoi(strings.TrimSpace(codeStr))
		if errCode != nil || len(pair) < 2 {
			slog.Warn("Skipping malformed cdata row", slog.String("code", codeStr))

			continue
		}

		catalog.entries[code] = NewEntry(code, pair[0], pair[1])
	}

	if len(catalog.entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	return catalog, nil
}

// NewEntry classifies key and returns the resulting entry.
func NewEntry(code int, name string, key string) Entry {
	class := Classify(key)

	return Entry{
		Code:     code,
		Name:     name,
		Key:      key,
		Category: class.Category,
		Legend:   class.Legend,
		Grouping: class.Grouping,
		Mode:     class.Mode,
	}
}

// Load reads a versioned catalog File.
func Load(reader io.Reader) (*Catalog, error) {
	file, errDecode := encoding.UnmarshalJSON[File](reader)
	if errDecode != nil {
		return nil, errors.Join(errDecode, ErrLoadCatalog)
	}

	catalog, errNew := New(file.Version, file.Entries)
	if errNew != nil {
		return nil, errors.Join(errNew, ErrLoadCatalog)
	}

	return catalog, nil
}

func LoadFile(path string) (*Catalog, error) {
	handle, errOpen := os.Open(path)
	if errOpen != nil {
		return nil, errors.Join(errOpen, ErrLoadCatalog)
	}

	defer func() {
		if err := handle.Close(); err != nil {
			slog.Error("Failed to close catalog file", slog.String("error", err.Error()))
		}
	}()

	return Load(handle)
}

func (c *Catalog) Version() string {
	return c.version
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Lookup(code int) (Entry, bool) {
	entry, found := c.entries[code]

	return entry, found
}

// Entries returns all entries ordered by code.
func (c *Catalog) Entries() []Entry {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a Entry, b Entry) int {
		return a.Code - b.Code
	})

	return entries
}

// Tracker returns the entry for a banner tracker code.
func (c *Catalog) Tracker(code int) (Entry, error) {
	entry, found := c.entries[code]
	if !found {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}

	if entry.Category != CategoryTracker {
		return entry, fmt.Errorf("%w: %d (%s)", ErrNotTracker, code, entry.Key)
	}

	return entry, nil
}

// Legend resolves a selected character code to its legend. Unlike Classify this fails closed:
// the code must exist, be a character, and name a known legend.
func (c *Catalog) Legend(code int) (Legend, error) {
	entry, found := c.entries[code]
	if !found {
		return LegendNone, fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}

	if entry.Category != CategoryCharacter {
		return LegendNone, fmt.Errorf("%w: %d (%s)", ErrNotCharacter, code, entry.Key)
	}

	if entry.Legend != LegendNone {
		return entry.Legend, nil
	}

	// Plain character keys look like "character_wraith" and carry no trailing underscore.
	name, _, _ := strings.Cut(strings.TrimPrefix(entry.Key, "character_"), "_")
	if legend := ParseLegend(name); legend != LegendNone {
		return legend, nil
	}

	return LegendNone, fmt.Errorf("%w: %d (%s)", ErrUnknownLegend, code, entry.Key)
}
