// Package flattener turns nested JSON documents into flat rows.
//
// Nested objects collapse into keys joined with "__". Arrays whose first
// element is an object are spread over indexed keys (items__0__id) and then
// expanded into one row per element; any other array is kept as its JSON
// text in a single field.
package flattener

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mcncl/jsonflat/internal/formatter"
	"github.com/mcncl/jsonflat/internal/models"
)

// arrayKeyPattern finds the shortest prefix followed by an index segment.
var arrayKeyPattern = regexp.MustCompile(`^(.*?)__\d+__`)

// ProgressFunc receives the number of processed top-level elements.
type ProgressFunc func(done, total int)

// Option configures Expand.
type Option func(*options)

type options struct {
	progress ProgressFunc
}

// WithProgress reports progress after each top-level element.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Flattener collapses JSON values into FlatRows
type Flattener struct {
	formatter *formatter.Formatter
}

// NewFlattener creates a new Flattener instance
func NewFlattener() *Flattener {
	return &Flattener{formatter: formatter.NewFormatter()}
}

// Flatten collapses value into a single row of scalar fields, prefixing
// every key with prefix. Anything but an object yields an empty row.
func (f *Flattener) Flatten(value models.JSONValue, prefix string) (*models.FlatRow, error) {
	row := models.NewFlatRow()
	if err := f.flattenInto(row, value, prefix); err != nil {
		return nil, err
	}
	return row, nil
}

func (f *Flattener) flattenInto(row *models.FlatRow, value models.JSONValue, prefix string) error {
	obj, ok := value.(*models.JSONObject)
	if !ok {
		return nil
	}

	for _, m := range obj.Members() {
		key := joinKey(prefix, m.Key)
		switch v := m.Value.(type) {
		case *models.JSONObject:
			if err := f.flattenInto(row, v, key); err != nil {
				return err
			}
		case models.JSONArray:
			if !startsWithObject(v) {
				text, err := f.formatter.JSON(v)
				if err != nil {
					return err
				}
				row.Set(key, text)
				continue
			}
			// Only the first element decides; later non-objects add nothing.
			for i, item := range v {
				if err := f.flattenInto(row, item, key+models.KeySeparator+strconv.Itoa(i)); err != nil {
					return err
				}
			}
		default:
			row.Set(key, v)
		}
	}
	return nil
}

// Expand flattens every element and spreads expanded arrays of objects
// over separate rows. Each detected array contributes one row per element;
// several arrays in one element are expanded independently, not crossed.
func (f *Flattener) Expand(values []models.JSONValue, opts ...Option) (models.RowSet, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rows := models.RowSet{}
	for i, value := range values {
		flat, err := f.Flatten(value, "")
		if err != nil {
			return nil, err
		}
		rows = append(rows, expandRow(flat)...)

		if o.progress != nil {
			o.progress(i+1, len(values))
		}
	}
	return rows, nil
}

// arrayGroup collects the per-index fields of one expanded array.
type arrayGroup struct {
	key   string
	items map[int]*models.FlatRow
}

func (g *arrayGroup) indices() []int {
	indices := make([]int, 0, len(g.items))
	for i := range g.items {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

func expandRow(flat *models.FlatRow) models.RowSet {
	groups := detectGroups(flat)
	if len(groups) == 0 {
		return models.RowSet{flat}
	}

	base := flat.Clone()
	for _, key := range flat.Keys() {
		for _, g := range groups {
			if strings.HasPrefix(key, g.key+models.KeySeparator) {
				base.Delete(key)
				break
			}
		}
	}

	var rows models.RowSet
	for _, g := range groups {
		// Missing indices are skipped rather than emitted as empty rows.
		for _, i := range g.indices() {
			row := base.Clone()
			item := g.items[i]
			for _, field := range item.Keys() {
				v, _ := item.Get(field)
				row.Set(field, v)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// detectGroups returns the expanded arrays of flat in discovery order.
func detectGroups(flat *models.FlatRow) []*arrayGroup {
	var groups []*arrayGroup
	seen := make(map[string]bool)
	for _, key := range flat.Keys() {
		match := arrayKeyPattern.FindStringSubmatch(key)
		if match == nil || seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		groups = append(groups, &arrayGroup{key: match[1], items: make(map[int]*models.FlatRow)})
	}

	for _, g := range groups {
		prefix := g.key + models.KeySeparator
		for _, key := range flat.Keys() {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			index, field, ok := splitIndexed(key[len(prefix):])
			if !ok {
				continue
			}
			item, exists := g.items[index]
			if !exists {
				item = models.NewFlatRow()
				g.items[index] = item
			}
			v, _ := flat.Get(key)
			item.Set(field, v)
		}
	}
	return groups
}

// splitIndexed splits "<digits>__<field>" into its index and field.
func splitIndexed(rest string) (int, string, bool) {
	digits, field, found := strings.Cut(rest, models.KeySeparator)
	if !found || digits == "" {
		return 0, "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, "", false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", false
	}
	return index, field, true
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + models.KeySeparator + key
}

func startsWithObject(arr models.JSONArray) bool {
	if len(arr) == 0 {
		return false
	}
	_, ok := arr[0].(*models.JSONObject)
	return ok
}
