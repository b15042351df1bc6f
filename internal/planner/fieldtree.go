package planner

import (
	"github.com/graphql-go/graphql/language/ast"
)

// FieldTree is the set of requested fields for one object, with nested
// selections for object-valued fields. Order follows the request.
type FieldTree struct {
	Name     string
	Children []*FieldTree
}

// NewFieldTree builds a tree by hand. Mostly useful in tests.
func NewFieldTree(name string, children ...*FieldTree) *FieldTree {
	return &FieldTree{Name: name, Children: children}
}

// FieldTreeFromAST flattens a field's selection set into a FieldTree.
// Inline fragments and named fragment spreads are expanded in place,
// repeated fields are merged and __typename is dropped.
func FieldTreeFromAST(field *ast.Field, fragments map[string]ast.Definition) *FieldTree {
	return FieldTreeFromASTs([]*ast.Field{field}, fragments)
}

// FieldTreeFromASTs merges several occurrences of the same field, as
// graphql-go passes them in ResolveInfo.FieldASTs, into one tree.
func FieldTreeFromASTs(fields []*ast.Field, fragments map[string]ast.Definition) *FieldTree {
	tree := &FieldTree{}
	for _, field := range fields {
		if field == nil || field.Name == nil {
			continue
		}
		if tree.Name == "" {
			tree.Name = field.Name.Value
		}
		if field.SelectionSet != nil {
			collectSelections(tree, field.SelectionSet.Selections, fragments, map[string]struct{}{})
		}
	}
	return tree
}

func collectSelections(parent *FieldTree, selections []ast.Selection, fragments map[string]ast.Definition, visited map[string]struct{}) {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == nil {
				continue
			}
			name := sel.Name.Value
			if name == "__typename" {
				continue
			}
			child := parent.Child(name)
			if child == nil {
				child = &FieldTree{Name: name}
				parent.Children = append(parent.Children, child)
			}
			if sel.SelectionSet != nil {
				collectSelections(child, sel.SelectionSet.Selections, fragments, visited)
			}
		case *ast.InlineFragment:
			if sel.SelectionSet != nil {
				collectSelections(parent, sel.SelectionSet.Selections, fragments, visited)
			}
		case *ast.FragmentSpread:
			if fragments == nil || sel.Name == nil {
				continue
			}
			fragmentName := sel.Name.Value
			if _, seen := visited[fragmentName]; seen {
				continue
			}
			def, ok := fragments[fragmentName]
			if !ok {
				continue
			}
			fragment, ok := def.(*ast.FragmentDefinition)
			if !ok || fragment.SelectionSet == nil {
				continue
			}
			visited[fragmentName] = struct{}{}
			collectSelections(parent, fragment.SelectionSet.Selections, fragments, visited)
			delete(visited, fragmentName)
		}
	}
}

// Child returns the direct child with the given name, or nil.
func (t *FieldTree) Child(name string) *FieldTree {
	if t == nil {
		return nil
	}
	for _, c := range t.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Has reports whether name is requested anywhere below t.
func (t *FieldTree) Has(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Children {
		if c.Name == name || c.Has(name) {
			return true
		}
	}
	return false
}

// Names returns the direct child names in request order.
func (t *FieldTree) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Children))
	for i, c := range t.Children {
		names[i] = c.Name
	}
	return names
}
