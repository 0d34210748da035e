// Package match filters and ranks workspace records against search terms.
//
// A record matches when every term occurs, case-insensitively, in its display
// name or its percent-decoded URI. Records whose name contains all terms rank
// above records that only match through their path. Within a group, terms
// found close to the end of the URI score higher, since the rightmost path
// segments are the most specific.
//
// Proximity is relative to the URI length, (offset of the rightmost hit + 1)
// divided by the length, not a count of segments to the leaf. A hit two
// segments above the leaf of a long path can therefore outrank a hit one
// segment above the leaf of a short path.
package match

import (
	"sort"
	"strings"

	"github.com/runger/wsprovider/internal/storage"
)

// nameBonus lifts name matches above every path match. Path scores are a
// mean of proximities in (0, 1], so any name match wins.
const nameBonus = 1.0

// Locus says where a record matched.
type Locus int

const (
	LocusPath Locus = iota
	LocusName
)

func (l Locus) String() string {
	if l == LocusName {
		return "name"
	}
	return "path"
}

// Match is a record that satisfied all terms.
type Match struct {
	Record storage.Record
	Score  float64
	Locus  Locus
	// Positions holds, per term, the byte offset of its rightmost occurrence
	// in the lower-cased decoded URI, or -1.
	Positions []int
	// Order is the record's position in the ranked input.
	Order int
}

// Terms normalizes raw search terms: lower-cased, trimmed, split on
// whitespace, empty terms dropped.
func Terms(raw []string) []string {
	terms := make([]string, 0, len(raw))
	for _, r := range raw {
		terms = append(terms, strings.Fields(strings.ToLower(r))...)
	}
	return terms
}

// Rank returns the records matching all terms, best first. Ties keep the
// input order. No terms match nothing.
func Rank(records []storage.Record, terms []string) []Match {
	terms = Terms(terms)
	if len(terms) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(records))
	for i, r := range records {
		if m, ok := score(r, terms); ok {
			m.Order = i
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	return matches
}

func score(r storage.Record, terms []string) (Match, bool) {
	name := strings.ToLower(r.Name)
	uri := strings.ToLower(storage.DecodedURI(r.URI))

	inName := true
	sum := 0.0
	positions := make([]int, len(terms))

	for i, term := range terms {
		nameHit := strings.Contains(name, term)
		pos := strings.LastIndex(uri, term)
		positions[i] = pos

		switch {
		case pos >= 0:
			sum += float64(pos+1) / float64(len(uri))
		case nameHit:
			// Only a label carries the term; treat it as a leaf hit.
			sum += 1
		default:
			return Match{}, false
		}
		inName = inName && nameHit
	}

	m := Match{
		Record:    r,
		Score:     sum / float64(len(terms)),
		Locus:     LocusPath,
		Positions: positions,
	}
	if inName {
		m.Locus = LocusName
		m.Score += nameBonus
	}
	return m, true
}

// IDs returns the record ids of matches, at most limit of them when limit is
// positive.
func IDs(matches []Match, limit int) []string {
	n := len(matches)
	if limit > 0 && limit < n {
		n = limit
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = matches[i].Record.ID
	}
	return ids
}
