package bookmark

import "fmt"

// SortOrder selects the ordering of listed bookmarks.
type SortOrder int

const (
	SortNewest SortOrder = iota
	SortOldest
	SortTitleAsc
	SortTitleDesc
)

var sortNames = map[SortOrder]string{
	SortNewest:    "newest",
	SortOldest:    "oldest",
	SortTitleAsc:  "title-asc",
	SortTitleDesc: "title-desc",
}

func (s SortOrder) String() string {
	if n, ok := sortNames[s]; ok {
		return n
	}

	return fmt.Sprintf("SortOrder(%d)", int(s))
}

// ParseSortOrder parses a sort name as written in the config file or on the
// command line.
func ParseSortOrder(s string) (SortOrder, error) {
	for k, v := range sortNames {
		if v == s {
			return k, nil
		}
	}

	return SortNewest, fmt.Errorf("%w: %q", ErrUnknownSort, s)
}
