// Package states maps U.S. state and territory names to the numeric
// identifiers expected by the CMS coverage APIs.
package states

import (
	"strings"

	"github.com/wramirez09/langchain-agent-sub000/model"
)

// entireStateSuffix marks the whole-state entry of states that CMS splits
// into contractor regions.
const entireStateSuffix = " - Entire State"

var defaultEntries = []model.StateRef{
	{StateID: 1, Description: "Alabama"},
	{StateID: 2, Description: "Alaska"},
	{StateID: 3, Description: "Arizona"},
	{StateID: 4, Description: "Arkansas"},
	{StateID: 5, Description: "California - Entire State"},
	{StateID: 6, Description: "California - Northern"},
	{StateID: 7, Description: "California - Southern"},
	{StateID: 8, Description: "Colorado"},
	{StateID: 9, Description: "Connecticut"},
	{StateID: 10, Description: "Delaware"},
	{StateID: 11, Description: "District of Columbia"},
	{StateID: 12, Description: "Florida"},
	{StateID: 13, Description: "Georgia"},
	{StateID: 14, Description: "Hawaii"},
	{StateID: 15, Description: "Idaho"},
	{StateID: 16, Description: "Illinois"},
	{StateID: 17, Description: "Indiana"},
	{StateID: 18, Description: "Iowa"},
	{StateID: 19, Description: "Kansas"},
	{StateID: 20, Description: "Kentucky"},
	{StateID: 21, Description: "Louisiana"},
	{StateID: 22, Description: "Maine"},
	{StateID: 23, Description: "Maryland"},
	{StateID: 24, Description: "Massachusetts"},
	{StateID: 25, Description: "Michigan"},
	{StateID: 26, Description: "Minnesota"},
	{StateID: 27, Description: "Mississippi"},
	{StateID: 28, Description: "Missouri - Entire State"},
	{StateID: 29, Description: "Missouri - Eastern"},
	{StateID: 30, Description: "Missouri - Western"},
	{StateID: 31, Description: "Montana"},
	{StateID: 32, Description: "Nebraska"},
	{StateID: 33, Description: "Nevada"},
	{StateID: 34, Description: "New Hampshire"},
	{StateID: 35, Description: "New Jersey"},
	{StateID: 36, Description: "New Mexico"},
	{StateID: 37, Description: "New York - Entire State"},
	{StateID: 38, Description: "New York - Downstate"},
	{StateID: 39, Description: "New York - Queens"},
	{StateID: 40, Description: "New York - Upstate"},
	{StateID: 41, Description: "North Carolina"},
	{StateID: 42, Description: "North Dakota"},
	{StateID: 43, Description: "Ohio"},
	{StateID: 44, Description: "Oklahoma"},
	{StateID: 45, Description: "Oregon"},
	{StateID: 46, Description: "Pennsylvania"},
	{StateID: 47, Description: "Rhode Island"},
	{StateID: 48, Description: "South Carolina"},
	{StateID: 49, Description: "South Dakota"},
	{StateID: 50, Description: "Tennessee"},
	{StateID: 51, Description: "Texas"},
	{StateID: 52, Description: "Utah"},
	{StateID: 53, Description: "Vermont"},
	{StateID: 54, Description: "Virginia"},
	{StateID: 55, Description: "Washington"},
	{StateID: 56, Description: "West Virginia"},
	{StateID: 57, Description: "Wisconsin"},
	{StateID: 58, Description: "Wyoming"},
	{StateID: 59, Description: "American Samoa"},
	{StateID: 60, Description: "Guam"},
	{StateID: 61, Description: "Northern Mariana Islands"},
	{StateID: 62, Description: "Puerto Rico"},
	{StateID: 63, Description: "Virgin Islands"},
}

// Directory is an immutable lookup table. Safe for concurrent use.
type Directory struct {
	entries []model.StateRef
	byName  map[string]model.StateRef
}

// New returns the directory of CMS state identifiers.
func New() *Directory {
	return NewFromEntries(defaultEntries)
}

// NewFromEntries builds a directory from a custom table.
func NewFromEntries(entries []model.StateRef) *Directory {
	d := &Directory{
		entries: append([]model.StateRef(nil), entries...),
		byName:  make(map[string]model.StateRef, len(entries)),
	}
	for _, e := range d.entries {
		d.byName[normalize(e.Description)] = e
	}
	return d
}

// Lookup resolves a state by case-insensitive exact description match.
// A bare name such as "New York" also resolves to its "- Entire State" entry.
func (d *Directory) Lookup(name string) (model.StateRef, bool) {
	key := normalize(name)
	if key == "" {
		return model.StateRef{}, false
	}
	if s, ok := d.byName[key]; ok {
		return s, true
	}
	s, ok := d.byName[key+strings.ToLower(entireStateSuffix)]
	return s, ok
}

// ID resolves a state name to its numeric identifier.
func (d *Directory) ID(name string) (int, bool) {
	s, ok := d.Lookup(name)
	return s.StateID, ok
}

// All returns a copy of every entry in identifier order.
func (d *Directory) All() []model.StateRef {
	return append([]model.StateRef(nil), d.entries...)
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	return len(d.entries)
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
