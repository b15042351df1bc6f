package gqlrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnvelope_Metadata(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		operationName string
		wantType      string
		wantName      string
		wantRoots     []string
		wantFields    int
		wantDepth     int
		wantVars      int
		wantRelation  bool
	}{
		{
			name:       "series list",
			query:      `{ series { id name } }`,
			wantType:   "query",
			wantName:   "<anonymous>",
			wantRoots:  []string{"series"},
			wantFields: 3,
			wantDepth:  2,
		},
		{
			name: "events with relation through a fragment",
			query: `query Events {
				event { id ...Owner }
			}
			fragment Owner on Event { partOf { name } }`,
			operationName: "Events",
			wantType:      "query",
			wantName:      "Events",
			wantRoots:     []string{"event"},
			wantFields:    4,
			wantDepth:     3,
			wantRelation:  true,
		},
		{
			name:       "several roots",
			query:      `query V($x: Int) { apiVersion series { id } event { title } }`,
			wantType:   "query",
			wantName:   "V",
			wantRoots:  []string{"apiVersion", "series", "event"},
			wantFields: 5,
			wantDepth:  2,
			wantVars:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeEnvelope(Envelope{Query: tt.query, OperationName: tt.operationName})
			require.NoError(t, a.Err())

			assert.Equal(t, tt.wantType, a.OperationType)
			assert.Equal(t, tt.wantName, a.OperationName)
			assert.Equal(t, tt.wantRoots, a.RootFields())
			assert.Equal(t, tt.wantFields, a.FieldCount)
			assert.Equal(t, tt.wantDepth, a.Depth)
			assert.Equal(t, tt.wantVars, a.VariableCount)
			assert.Equal(t, tt.wantRelation, a.RelationRequested())
			assert.Len(t, a.OperationHash, 64)
		})
	}
}

func TestAnalyzeEnvelope_Errors(t *testing.T) {
	t.Run("malformed query", func(t *testing.T) {
		a := AnalyzeEnvelope(Envelope{Query: `{ series { `})
		assert.Error(t, a.ParseError)
		assert.Error(t, a.Err())
		assert.Nil(t, a.Operation)
	})

	t.Run("multiple operations need a name", func(t *testing.T) {
		a := AnalyzeEnvelope(Envelope{Query: `query A { series { id } } query B { event { id } }`})
		assert.Error(t, a.SelectionError)
	})

	t.Run("unknown operation name", func(t *testing.T) {
		a := AnalyzeEnvelope(Envelope{Query: `query A { series { id } }`, OperationName: "B"})
		assert.ErrorContains(t, a.SelectionError, `"B"`)
	})

	t.Run("empty query", func(t *testing.T) {
		a := AnalyzeEnvelope(Envelope{})
		assert.NoError(t, a.Err())
		assert.Empty(t, a.RootFields())
		assert.False(t, a.RelationRequested())
	})
}

func TestOperationHash_IgnoresFormatting(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `query Q { event { id partOf { name } } }`})
	b := AnalyzeEnvelope(Envelope{Query: "query Q {\n  event {\n    id\n    partOf { name }\n  }\n}"})
	c := AnalyzeEnvelope(Envelope{Query: `query Q { event { id } }`})

	assert.Equal(t, a.OperationHash, b.OperationHash)
	assert.NotEqual(t, a.OperationHash, c.OperationHash)
}

func TestAnalysis_NilSafe(t *testing.T) {
	var a *Analysis
	assert.NoError(t, a.Err())
	assert.Nil(t, a.RootFields())
	assert.False(t, a.RelationRequested())
}
