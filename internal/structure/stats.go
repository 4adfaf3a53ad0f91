package structure

// Stats summarises a structure tree.
type Stats struct {
	Files       int `json:"files"`
	Directories int `json:"directories"`
	MaxDepth    int `json:"max_depth"`
}

// ComputeStats counts files, directories, and maximum nesting depth in a
// single depth-first walk. Entries directly under root are at depth 1.
func ComputeStats(root *Node) Stats {
	var s Stats
	countInto(root, 1, &s)
	return s
}

func countInto(dir *Node, depth int, s *Stats) {
	if dir.Len() > 0 && depth > s.MaxDepth {
		s.MaxDepth = depth
	}
	dir.Each(func(_ string, child *Node) {
		if child.IsDir() {
			s.Directories++
			if child.Len() > 0 {
				countInto(child, depth+1, s)
			}
		} else {
			s.Files++
		}
	})
}
