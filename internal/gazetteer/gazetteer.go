// Package gazetteer builds the process-wide name-to-geometry index from
// Natural Earth vector data. The index is constructed once at startup and
// is read-only afterward, so any number of resolvers may share it without
// locking.
package gazetteer

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/seaward-systems/marinecast/internal/region"
)

// Entry is one named geographic feature: a sea, country, or lake.
type Entry struct {
	Name    string
	Kind    string
	Box     region.BoundingBox
	Polygon *geom.MultiPolygon
}

type record struct {
	entry      Entry
	normalized string
}

// Index maps normalized feature names to their geometry. Duplicate names
// keep the first-registered entry; later registrations are dropped (known
// limitation, logged at debug).
type Index struct {
	records []*record
	byName  map[string]*record
	aliases map[string]string
}

// Option customizes index construction.
type Option func(*Index)

// WithAliases installs alternate spellings: alias name → canonical name.
// Both sides are normalized before use.
func WithAliases(aliases map[string]string) Option {
	return func(ix *Index) {
		for alias, canonical := range aliases {
			ix.aliases[normalizeName(alias)] = normalizeName(canonical)
		}
	}
}

func newIndex(opts ...Option) *Index {
	ix := &Index{
		byName:  make(map[string]*record),
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// LoadAliases reads an alias YAML file of the form `alias: canonical`.
func LoadAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: read alias file %s", path)
	}
	var aliases map[string]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, eris.Wrapf(err, "gazetteer: parse alias file %s", path)
	}
	return aliases, nil
}

func (ix *Index) register(e Entry) {
	n := normalizeName(e.Name)
	if n == "" {
		return
	}
	if _, exists := ix.byName[n]; exists {
		// First-registered wins.
		zap.L().Debug("gazetteer: duplicate name skipped", zap.String("name", e.Name))
		return
	}
	rec := &record{entry: e, normalized: n}
	ix.records = append(ix.records, rec)
	ix.byName[n] = rec
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int { return len(ix.records) }

// Names returns indexed display names in registration order.
func (ix *Index) Names() []string {
	out := make([]string, len(ix.records))
	for i, rec := range ix.records {
		out[i] = rec.entry.Name
	}
	return out
}

// minSubstringLen guards the fallback scan against one- and two-letter
// queries that would match half the index.
const minSubstringLen = 3

// Lookup finds an entry case-insensitively: alias expansion, then exact
// match, then a substring fallback that succeeds only when the match is
// unambiguous. Ambiguity is reported as not-found rather than guessed at.
func (ix *Index) Lookup(name string) (region.Entry, bool) {
	n := normalizeName(name)
	if n == "" {
		return region.Entry{}, false
	}
	if canonical, ok := ix.aliases[n]; ok {
		n = canonical
	}

	if rec, ok := ix.byName[n]; ok {
		return rec.asRegionEntry(), true
	}

	if len(n) < minSubstringLen {
		return region.Entry{}, false
	}
	var hit *record
	for _, rec := range ix.records {
		if strings.Contains(rec.normalized, n) {
			if hit != nil {
				return region.Entry{}, false
			}
			hit = rec
		}
	}
	if hit == nil {
		return region.Entry{}, false
	}
	return hit.asRegionEntry(), true
}

// Entry returns the full gazetteer record for a name, using the same
// matching rules as Lookup.
func (ix *Index) Entry(name string) (Entry, bool) {
	re, ok := ix.Lookup(name)
	if !ok {
		return Entry{}, false
	}
	rec := ix.byName[normalizeName(re.Name)]
	return rec.entry, true
}

func (r *record) asRegionEntry() region.Entry {
	return region.Entry{
		Name:    r.entry.Name,
		Box:     r.entry.Box,
		Polygon: r.entry.Polygon,
	}
}

// nameFolder strips diacritics so "Río de la Plata" matches "Rio de la Plata".
var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeName(s string) string {
	folded, _, err := transform.String(nameFolder, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(folded)), " ")
}
