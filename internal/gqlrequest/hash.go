package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// operationHash fingerprints the printed operation plus the fragments it
// uses, so formatting differences in the request do not change it.
func operationHash(op *ast.OperationDefinition, fragments map[string]ast.Definition) string {
	used := map[string]*ast.FragmentDefinition{}
	collectFragments(op.SelectionSet, fragments, used)

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := make([]ast.Node, 0, 1+len(names))
	definitions = append(definitions, op)
	for _, name := range names {
		definitions = append(definitions, used[name])
	}

	printed, _ := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)

	h := sha256.New()
	for _, part := range []string{printed, operationName(op)} {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func collectFragments(set *ast.SelectionSet, fragments map[string]ast.Definition, used map[string]*ast.FragmentDefinition) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.InlineFragment:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.FragmentSpread:
			if sel.Name == nil {
				continue
			}
			if _, seen := used[sel.Name.Value]; seen {
				continue
			}
			fragment, ok := fragments[sel.Name.Value].(*ast.FragmentDefinition)
			if !ok {
				continue
			}
			used[sel.Name.Value] = fragment
			collectFragments(fragment.SelectionSet, fragments, used)
		}
	}
}

func operationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}
