// Package merge reconciles an edited cell list with the previous one so
// that cells the user did not touch keep their id, outputs and execution
// count.
package merge

import (
	"encoding/json"
	"maps"

	"github.com/starford/juv/internal/models"
)

// DefaultMinSimilarity is the score a previous cell must exceed to be
// matched with an edited cell.
const DefaultMinSimilarity = 0.8

// Similarity returns 2*LCS/(len(a)+len(b)) over the runes of a and b.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(total)
}

// Stats counts how the edited cells were resolved.
type Stats struct {
	Matched int
	Created int
	Dropped int
}

// Cells returns edited with state carried over from matching cells of prev.
//
// Each edited cell is compared against every previous cell not yet
// consumed. An exact match is taken immediately; otherwise the best scorer
// is taken when its score is above minSimilarity. A matched cell inherits
// the previous id, metadata, outputs and execution count. Unmatched edited
// cells get a fresh id and no outputs. Unmatched previous cells are
// dropped.
func Cells(prev, edited []*models.Cell, minSimilarity float64) ([]*models.Cell, Stats) {
	var st Stats
	consumed := make([]bool, len(prev))
	out := make([]*models.Cell, 0, len(edited))

	for _, cell := range edited {
		text := cell.Text()
		best, bestScore := -1, -1.0
		for i, p := range prev {
			if consumed[i] {
				continue
			}
			score := Similarity(text, p.Text())
			if score == 1 {
				best, bestScore = i, score
				break
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		merged := &models.Cell{
			ID:       models.NewCellID(),
			Type:     cell.Type,
			Source:   cell.Source,
			Metadata: map[string]any{},
		}
		if cell.Type == models.CellCode {
			merged.Outputs = []json.RawMessage{}
		}
		if best >= 0 && (bestScore == 1 || bestScore > minSimilarity) {
			consumed[best] = true
			carry(merged, prev[best])
			st.Matched++
		} else {
			st.Created++
		}
		out = append(out, merged)
	}

	for _, c := range consumed {
		if !c {
			st.Dropped++
		}
	}
	return out, st
}

func carry(dst, src *models.Cell) {
	dst.ID = src.ID
	if src.Metadata != nil {
		dst.Metadata = maps.Clone(src.Metadata)
	}
	if dst.Type == models.CellCode && src.Type == models.CellCode {
		if src.Outputs != nil {
			dst.Outputs = src.Outputs
		}
		dst.ExecutionCount = src.ExecutionCount
	}
	if dst.Type != models.CellCode && src.Type != models.CellCode {
		dst.Attachments = src.Attachments
	}
}

// Notebook replaces the cells of nb with the merge of its cells and
// edited. Document metadata is left alone.
func Notebook(nb *models.Notebook, edited []*models.Cell, minSimilarity float64) Stats {
	cells, st := Cells(nb.Cells, edited, minSimilarity)
	nb.Cells = cells
	return st
}
