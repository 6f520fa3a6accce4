package dataset

import (
	"sort"

	roaring "github.com/RoaringBitmap/roaring"
)

// TagIndex holds one bitmap of listing positions per tag.
// Position i refers to the i-th dataset passed to Add.
type TagIndex struct {
	tags map[string]*roaring.Bitmap
	n    uint32
}

func NewTagIndex() *TagIndex {
	return &TagIndex{tags: make(map[string]*roaring.Bitmap)}
}

// Add appends a dataset carrying tags and returns its position
func (ti *TagIndex) Add(tags ...string) uint32 {
	pos := ti.n
	ti.n++
	for _, tag := range tags {
		bm, ok := ti.tags[tag]
		if !ok {
			bm = roaring.New()
			ti.tags[tag] = bm
		}
		bm.Add(pos)
	}
	return pos
}

// Len is the number of positions added
func (ti *TagIndex) Len() int {
	return int(ti.n)
}

// Tags returns the known tags, sorted
func (ti *TagIndex) Tags() []string {
	out := make([]string, 0, len(ti.tags))
	for t := range ti.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of positions carrying tag
func (ti *TagIndex) Count(tag string) uint64 {
	bm, ok := ti.tags[tag]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Filter returns the positions carrying all tags in ascending order.
// Without tags every position matches.
func (ti *TagIndex) Filter(tags ...string) []uint32 {
	if len(tags) == 0 {
		all := roaring.New()
		all.AddRange(0, uint64(ti.n))
		return all.ToArray()
	}
	res := ti.clone(ti.tags[tags[0]])
	for _, tag := range tags[1:] {
		bm, ok := ti.tags[tag]
		if !ok {
			return []uint32{}
		}
		res.And(bm)
	}
	return res.ToArray()
}

func (ti *TagIndex) clone(b *roaring.Bitmap) *roaring.Bitmap {
	c := roaring.New()
	if b != nil {
		c.Or(b)
	}
	return c
}

// IndexTags builds a TagIndex over datasets in order
func IndexTags(datasets []Dataset, tagsOf func(Dataset) []string) *TagIndex {
	ti := NewTagIndex()
	for _, ds := range datasets {
		ti.Add(tagsOf(ds)...)
	}
	return ti
}
