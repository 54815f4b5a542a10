package reconcile

// Bridge maps retired filer codes to their surviving successors. After a
// merger or absorption the retired code keeps appearing in venue data and
// old documents; the bridge folds those references into the surviving
// entity instead of resurrecting the retired one.
type Bridge struct {
	successor map[string]string
}

// NewBridge creates a bridge from a retired-to-surviving filer code map.
func NewBridge(mappings map[string]string) *Bridge {
	successor := make(map[string]string, len(mappings))
	for retired, surviving := range mappings {
		successor[retired] = surviving
	}
	return &Bridge{successor: successor}
}

// Resolve follows the successor chain to the terminal surviving code.
// A code with no mapping resolves to itself. Cycles stop at the first
// revisited code so a bad mapping cannot hang the merge.
func (b *Bridge) Resolve(filerCode string) (string, bool) {
	if filerCode == "" {
		return "", false
	}
	visited := map[string]bool{filerCode: true}
	current := filerCode
	bridged := false
	for {
		next, ok := b.successor[current]
		if !ok || visited[next] {
			return current, bridged
		}
		visited[next] = true
		current = next
		bridged = true
	}
}

// Retired reports whether the filer code has a successor.
func (b *Bridge) Retired(filerCode string) bool {
	_, ok := b.successor[filerCode]
	return ok
}

// Len returns the number of retired codes in the bridge.
func (b *Bridge) Len() int {
	return len(b.successor)
}
