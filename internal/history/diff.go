package history

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Identity decides when two records are the same item.
type Identity int

const (
	// IdentityByID matches records by ID and compares content separately, so an
	// edited record is reported as changed.
	IdentityByID Identity = iota
	// IdentityByContent matches records whose image, result and date are equal,
	// ignoring IDs. Records with identical content are interchangeable and an
	// edit looks like a removal plus an insertion.
	IdentityByContent
)

func ParseIdentity(s string) (Identity, error) {
	switch s {
	case "", "id":
		return IdentityByID, nil
	case "content":
		return IdentityByContent, nil
	default:
		return IdentityByID, fmt.Errorf("invalid history diff mode '%s'", s)
	}
}

func (i Identity) String() string {
	if i == IdentityByContent {
		return "content"
	}
	return "id"
}

// Changes lists what differs between two snapshots of the history list.
// Removed holds positions in the old list; Inserted and Changed hold positions
// in the new list. All are ascending.
type Changes struct {
	Inserted []int `json:"inserted"`
	Removed  []int `json:"removed"`
	Changed  []int `json:"changed"`
}

func (c Changes) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Positions returns the positions in the new list that need to be redrawn.
func (c Changes) Positions() []int {
	positions := make([]int, 0, len(c.Inserted)+len(c.Changed))
	positions = append(positions, c.Inserted...)
	positions = append(positions, c.Changed...)
	sort.Ints(positions)
	return positions
}

// maxAlignCells bounds the alignment table built when records are compared by
// content. Larger inputs are still diffed, but the unmatched middle is reported
// as removed and inserted rather than aligned.
const maxAlignCells = 4_000_000

// Diff aligns before and after with a longest common subsequence over the identity
// relation. Unmatched records in before are removed, unmatched records in after are
// inserted, and matched pairs whose content differs are changed.
func Diff(before, after []Record, mode Identity) Changes {
	if mode == IdentityByID {
		return diffByID(before, after)
	}
	return diffByContent(before, after)
}

// diffByID relies on IDs being unique: the common subsequence is the longest
// run of matched records whose positions increase in both lists.
func diffByID(before, after []Record) Changes {
	index := make(map[uuid.UUID]int, len(before))
	for i, record := range before {
		if _, ok := index[record.ID]; !ok {
			index[record.ID] = i
		}
	}

	type pair struct{ i, j int }
	var matches []pair
	for j, record := range after {
		if i, ok := index[record.ID]; ok {
			matches = append(matches, pair{i: i, j: j})
		}
	}

	// patience sort over before positions, in after order
	tails := make([]int, 0, len(matches))
	prev := make([]int, len(matches))
	for k, m := range matches {
		pos := sort.Search(len(tails), func(x int) bool { return matches[tails[x]].i >= m.i })
		prev[k] = -1
		if pos > 0 {
			prev[k] = tails[pos-1]
		}
		if pos == len(tails) {
			tails = append(tails, k)
		} else {
			tails[pos] = k
		}
	}

	keptBefore := make([]bool, len(before))
	keptAfter := make([]bool, len(after))
	var changes Changes
	if len(tails) > 0 {
		for k := tails[len(tails)-1]; k >= 0; k = prev[k] {
			m := matches[k]
			keptBefore[m.i] = true
			keptAfter[m.j] = true
		}
	}

	for i, kept := range keptBefore {
		if !kept {
			changes.Removed = append(changes.Removed, i)
		}
	}
	for j, kept := range keptAfter {
		if !kept {
			changes.Inserted = append(changes.Inserted, j)
		} else if !sameContent(before[index[after[j].ID]], after[j]) {
			changes.Changed = append(changes.Changed, j)
		}
	}
	return changes
}

func diffByContent(before, after []Record) Changes {
	var changes Changes

	start := 0
	for start < len(before) && start < len(after) && sameContent(before[start], after[start]) {
		start++
	}
	endB, endA := len(before), len(after)
	for endB > start && endA > start && sameContent(before[endB-1], after[endA-1]) {
		endB--
		endA--
	}

	n, m := endB-start, endA-start
	if n == 0 || m == 0 || (n+1)*(m+1) > maxAlignCells {
		for i := start; i < endB; i++ {
			changes.Removed = append(changes.Removed, i)
		}
		for j := start; j < endA; j++ {
			changes.Inserted = append(changes.Inserted, j)
		}
		return changes
	}

	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if sameContent(before[start+i], after[start+j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case sameContent(before[start+i], after[start+j]):
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			changes.Removed = append(changes.Removed, start+i)
			i++
		default:
			changes.Inserted = append(changes.Inserted, start+j)
			j++
		}
	}
	for ; i < n; i++ {
		changes.Removed = append(changes.Removed, start+i)
	}
	for ; j < m; j++ {
		changes.Inserted = append(changes.Inserted, start+j)
	}

	return changes
}
