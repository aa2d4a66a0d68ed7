package tree

import "sync"

// FindNode busca el nodo con el id dado en orden de documento
// (profundidad primero, hijos en orden). Primera coincidencia gana si
// hubiera ids duplicados. Retorna nil si no está.
func FindNode(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.ID == id {
			return n
		}
		// push en reversa para visitar los hijos en orden
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, &n.Children[i])
		}
	}
	return nil
}

// ReplaceSubtree devuelve una copia del árbol donde los hijos del nodo
// id fueron reemplazados por children. Los demás atributos del nodo y
// sus hermanos quedan intactos. Si el id no existe, la copia es
// idéntica al original (no-op). El árbol de entrada nunca se muta.
func ReplaceSubtree(root Node, id string, children []Node) Node {
	out := root.Clone()
	target := FindNode(&out, id)
	if target == nil {
		return out
	}
	cloned := make([]Node, len(children))
	for i := range children {
		cloned[i] = children[i].Clone()
	}
	target.Children = cloned
	return out
}

// BranchPoints es el set de nodos marcados como punto de branching.
// Aditivo: una vez marcado, un nodo no se desmarca. Seguro para uso
// concurrente.
type BranchPoints struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

func NewBranchPoints() *BranchPoints {
	return &BranchPoints{set: make(map[string]struct{})}
}

// Mark marca un nodo como punto de branching.
func (b *BranchPoints) Mark(nodeID string) {
	b.mu.Lock()
	b.set[nodeID] = struct{}{}
	b.mu.Unlock()
}

// Has indica si el nodo está marcado.
func (b *BranchPoints) Has(nodeID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.set[nodeID]
	return ok
}

// List devuelve los nodos marcados (orden no definido).
func (b *BranchPoints) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.set))
	for id := range b.set {
		out = append(out, id)
	}
	return out
}
