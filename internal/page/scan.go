package page

// Node types whose props reference another page by id. A page containing
// one of these embeds that page when rendered, which makes the target a
// preload candidate during navigation.
var nestedContainerTypes = map[string]bool{
	"nested-page": true,
	"page-ref":    true,
	"sub-page":    true,
}

// IsNestedContainer reports whether a node type embeds another page.
func IsNestedContainer(nodeType string) bool {
	return nestedContainerTypes[nodeType]
}

// NestedPageIDs walks the tree depth-first and returns the ids of pages
// referenced by nested-container nodes, deduplicated in discovery order.
func NestedPageIDs(root *Node) []string {
	if root == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	root.Walk(func(n *Node) bool {
		if !nestedContainerTypes[n.Type] {
			return true
		}
		id, _ := n.Props["pageId"].(string)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return true
	})
	return ids
}
