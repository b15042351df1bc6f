// Package rowmap converts scanned database rows into model entities.
//
// Rows are addressed by column alias rather than ordinal position. The
// planner builds its select lists from the Column definitions in this file,
// and the mapper checks the result set against them before scanning, so the
// statement text and the mapping code cannot drift apart silently.
package rowmap

// ContractVersion identifies the current alias layout. Bump it whenever an
// alias is renamed or removed.
const ContractVersion = 1

const (
	SeriesTable = "series"
	EventsTable = "events"
)

// Column binds a table column to the alias the mapper reads it by.
type Column struct {
	Table string
	Name  string
	Alias string
}

var (
	EventID    = Column{Table: EventsTable, Name: "id", Alias: "event_id"}
	EventTitle = Column{Table: EventsTable, Name: "title", Alias: "event_title"}
	// EventPartOf is the foreign key used for the join condition. It is never selected.
	EventPartOf = Column{Table: EventsTable, Name: "part_of", Alias: "event_part_of"}

	SeriesID          = Column{Table: SeriesTable, Name: "id", Alias: "series_id"}
	SeriesName        = Column{Table: SeriesTable, Name: "name", Alias: "series_name"}
	SeriesDescription = Column{Table: SeriesTable, Name: "description", Alias: "series_description"}
)

// SeriesColumns lists every Series column in select order.
func SeriesColumns() []Column {
	return []Column{SeriesID, SeriesName, SeriesDescription}
}

// EventColumns lists the Event columns selected by the base variant.
func EventColumns() []Column {
	return []Column{EventID, EventTitle}
}

// JoinedEventColumns lists the columns selected by the join variant.
func JoinedEventColumns() []Column {
	return append(EventColumns(), SeriesColumns()...)
}

// Aliases returns the alias of each column, preserving order.
func Aliases(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Alias
	}
	return out
}
