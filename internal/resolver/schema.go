package resolver

import (
	"context"

	"eventgraph/internal/planner"

	"github.com/graphql-go/graphql"
)

// BuildGraphQLSchema constructs the read-only schema:
//
//	type Query  { apiVersion: String!  series: [Series!]  event: [Event!] }
//	type Series { id: Int!  name: String!  description: String }
//	type Event  { id: Int!  title: String!  partOf: Series }
//
// The list fields are nullable so that one failing field does not null out
// its siblings.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	seriesType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Series",
		Description: "A named group of events.",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
		},
	})

	eventType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Event",
		Description: "A single event, optionally part of a series.",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"title": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			planner.RelationField: &graphql.Field{
				Type:        seriesType,
				Description: "The series this event belongs to, or null.",
			},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"apiVersion": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return r.APIVersion(), nil
				},
			},
			fieldSeries: &graphql.Field{
				Type:    graphql.NewList(graphql.NewNonNull(seriesType)),
				Resolve: r.resolveSeriesField,
			},
			fieldEvent: &graphql.Field{
				Type:    graphql.NewList(graphql.NewNonNull(eventType)),
				Resolve: r.resolveEventField,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func (r *Resolver) resolveSeriesField(p graphql.ResolveParams) (interface{}, error) {
	series, err := r.ResolveSeriesList(paramsContext(p), fieldTreeFromParams(p))
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(series))
	for i := range series {
		out[i] = series[i].GraphQL()
	}
	return out, nil
}

func (r *Resolver) resolveEventField(p graphql.ResolveParams) (interface{}, error) {
	events, err := r.ResolveEventList(paramsContext(p), fieldTreeFromParams(p))
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(events))
	for i := range events {
		out[i] = events[i].GraphQL()
	}
	return out, nil
}

func fieldTreeFromParams(p graphql.ResolveParams) *planner.FieldTree {
	tree := planner.FieldTreeFromASTs(p.Info.FieldASTs, p.Info.Fragments)
	if tree.Name == "" {
		tree.Name = p.Info.FieldName
	}
	return tree
}

func paramsContext(p graphql.ResolveParams) context.Context {
	if p.Context == nil {
		return context.Background()
	}
	return p.Context
}
