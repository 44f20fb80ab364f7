package cube

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseFragmentIDSet decodes the compact fragment ordinal encoding used by the
// catalog, e.g. "1-4;7;9-10". Commas are accepted as separators too. The
// result is sorted and free of duplicates.
func ParseFragmentIDSet(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	seen := make(map[int64]struct{})
	var ids []int64
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.Index(part, "-"); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		a, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fragment id %q: %w", part, err)
		}
		b, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fragment id %q: %w", part, err)
		}
		if b < a {
			return nil, fmt.Errorf("invalid fragment range %q", part)
		}
		for id := a; id <= b; id++ {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// FormatFragmentIDSet is the inverse of ParseFragmentIDSet for sorted input.
func FormatFragmentIDSet(ids []int64) string {
	var b strings.Builder
	for i := 0; i < len(ids); {
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		if j == i {
			fmt.Fprintf(&b, "%d", ids[i])
		} else {
			fmt.Fprintf(&b, "%d-%d", ids[i], ids[j])
		}
		i = j + 1
	}
	return b.String()
}
