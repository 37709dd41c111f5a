package segment

import (
	"sort"
)

const maxLabels = 26

// readingOrder sorts regions left-to-right within rows, rows top-to-bottom.
// A region joins the current row when its top edge lies above the vertical
// centre of the row's first region.
func readingOrder(regions []Region) []Region {
	out := append([]Region(nil), regions...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Rect.Min, out[j].Rect.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	var rows [][]Region
	for _, r := range out {
		n := len(rows)
		if n > 0 {
			head := rows[n-1][0].Rect
			centre := head.Min.Y + head.Dy()/2
			if r.Rect.Min.Y < centre {
				rows[n-1] = append(rows[n-1], r)
				continue
			}
		}
		rows = append(rows, []Region{r})
	}

	ordered := make([]Region, 0, len(out))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			a, b := row[i].Rect.Min, row[j].Rect.Min
			if a.X != b.X {
				return a.X < b.X
			}
			return a.Y < b.Y
		})
		ordered = append(ordered, row...)
	}
	return ordered
}

// letter returns the sub-label for the i-th region: a, b, c, ...
func letter(i int) string {
	return string(rune('a' + i))
}
