package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"eventgraph/internal/planner"
)

// Analysis holds what was learned about a request before execution.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Operation *ast.OperationDefinition

	// OperationName is the executed operation's name, or "<anonymous>".
	OperationName string
	OperationType string
	VariableCount int

	// Selection is the operation's selection set with fragments expanded.
	// Its children are the requested root fields.
	Selection  *planner.FieldTree
	FieldCount int
	Depth      int

	OperationHash string

	DecodeError    error
	ParseError     error
	SelectionError error
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(env)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses the query and selects the operation that will run.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{Envelope: env}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc

	op, fragments, err := selectOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = operationName(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	root := &ast.Field{
		Name:         ast.NewName(&ast.Name{Value: analysis.OperationType}),
		SelectionSet: op.SelectionSet,
	}
	analysis.Selection = planner.FieldTreeFromAST(root, fragments)
	analysis.FieldCount = countFields(analysis.Selection)
	analysis.Depth = depth(analysis.Selection)
	analysis.OperationHash = operationHash(op, fragments)

	return analysis
}

// Err returns the first problem found while analyzing, if any.
func (a *Analysis) Err() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.DecodeError, a.ParseError, a.SelectionError)
}

// RootFields returns the requested top-level field names in request order.
func (a *Analysis) RootFields() []string {
	if a == nil {
		return nil
	}
	return a.Selection.Names()
}

// RelationRequested reports whether any root field selects the partOf relation.
func (a *Analysis) RelationRequested() bool {
	if a == nil {
		return false
	}
	return a.Selection.Has(planner.RelationField)
}

func selectOperation(doc *ast.Document, name string) (*ast.OperationDefinition, map[string]ast.Definition, error) {
	fragments := make(map[string]ast.Definition)
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil && d.Name.Value != "" {
				fragments[d.Name.Value] = d
			}
		}
	}

	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, fragments, nil
			}
		}
		return nil, nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], fragments, nil
	default:
		return nil, nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

func countFields(t *planner.FieldTree) int {
	if t == nil {
		return 0
	}
	n := len(t.Children)
	for _, c := range t.Children {
		n += countFields(c)
	}
	return n
}

func depth(t *planner.FieldTree) int {
	if t == nil || len(t.Children) == 0 {
		return 0
	}
	deepest := 0
	for _, c := range t.Children {
		if d := depth(c); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
