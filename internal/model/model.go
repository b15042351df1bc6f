// Package model defines the read-only entities served by the GraphQL API.
package model

// Series groups related events.
type Series struct {
	ID          int64
	Name        string
	Description *string
}

// Event is a single occurrence, optionally part of a Series.
type Event struct {
	ID    int64
	Title string
	// PartOf is nil when the event has no series or the relation was not requested.
	PartOf *Series
}

// GraphQL converts the series to the map shape consumed by graphql-go resolvers.
func (s *Series) GraphQL() map[string]interface{} {
	if s == nil {
		return nil
	}
	out := map[string]interface{}{
		"id":          s.ID,
		"name":        s.Name,
		"description": nil,
	}
	if s.Description != nil {
		out["description"] = *s.Description
	}
	return out
}

// GraphQL converts the event to the map shape consumed by graphql-go resolvers.
func (e *Event) GraphQL() map[string]interface{} {
	out := map[string]interface{}{
		"id":     e.ID,
		"title":  e.Title,
		"partOf": nil,
	}
	if e.PartOf != nil {
		out["partOf"] = e.PartOf.GraphQL()
	}
	return out
}
