package rowmap

import (
	"database/sql"
	"fmt"
	"strings"

	"eventgraph/internal/model"
)

// StructScanner is satisfied by *sqlx.Rows and the pool's row stream.
type StructScanner interface {
	StructScan(dest interface{}) error
}

// SeriesRow holds the series_* columns of one result row.
type SeriesRow struct {
	ID          sql.NullInt64  `db:"series_id"`
	Name        sql.NullString `db:"series_name"`
	Description sql.NullString `db:"series_description"`
}

// EventRow holds one event row. The embedded SeriesRow is only populated by
// the join variant.
type EventRow struct {
	ID    sql.NullInt64  `db:"event_id"`
	Title sql.NullString `db:"event_title"`
	SeriesRow
}

// CheckColumns verifies that a result set carries exactly the expected aliases in order.
func CheckColumns(expected, actual []string) error {
	if len(expected) != len(actual) {
		return &MalformedRowError{
			Entity: "result",
			Reason: fmt.Sprintf("contract v%d expects columns [%s], got [%s]",
				ContractVersion, strings.Join(expected, ", "), strings.Join(actual, ", ")),
		}
	}
	for i := range expected {
		if !strings.EqualFold(expected[i], actual[i]) {
			return &MalformedRowError{
				Entity: "result",
				Column: actual[i],
				Reason: fmt.Sprintf("contract v%d expects %s at position %d", ContractVersion, expected[i], i),
			}
		}
	}
	return nil
}

// MapSeries builds a Series from the series_* columns of a row.
func MapSeries(row SeriesRow) (model.Series, error) {
	if !row.ID.Valid {
		return model.Series{}, malformed("series", SeriesID.Alias, "identifier is null")
	}
	if !row.Name.Valid {
		return model.Series{}, malformed("series", SeriesName.Alias, "name is null")
	}
	s := model.Series{ID: row.ID.Int64, Name: row.Name.String}
	if row.Description.Valid {
		desc := row.Description.String
		s.Description = &desc
	}
	return s, nil
}

// MapSeriesIdentifier builds a Series from a row that carries only series_id.
func MapSeriesIdentifier(row SeriesRow) (model.Series, error) {
	if !row.ID.Valid {
		return model.Series{}, malformed("series", SeriesID.Alias, "identifier is null")
	}
	return model.Series{ID: row.ID.Int64}, nil
}

// MapEvent builds an Event. With includeRelation the nested Series is read
// from the same row; a null series_id leaves PartOf nil. Without it the
// relation columns are ignored.
func MapEvent(row EventRow, includeRelation bool) (model.Event, error) {
	if !row.ID.Valid {
		return model.Event{}, malformed("event", EventID.Alias, "identifier is null")
	}
	if !row.Title.Valid {
		return model.Event{}, malformed("event", EventTitle.Alias, "title is null")
	}
	ev := model.Event{ID: row.ID.Int64, Title: row.Title.String}
	if !includeRelation || !row.SeriesRow.ID.Valid {
		return ev, nil
	}
	series, err := MapSeries(row.SeriesRow)
	if err != nil {
		return model.Event{}, err
	}
	ev.PartOf = &series
	return ev, nil
}

// MapEventIdentifier builds an Event from a row that carries only event_id.
func MapEventIdentifier(row EventRow) (model.Event, error) {
	if !row.ID.Valid {
		return model.Event{}, malformed("event", EventID.Alias, "identifier is null")
	}
	return model.Event{ID: row.ID.Int64}, nil
}

// ScanSeries scans the current row and maps it.
func ScanSeries(s StructScanner) (model.Series, error) {
	var row SeriesRow
	if err := s.StructScan(&row); err != nil {
		return model.Series{}, &MalformedRowError{Entity: "series", Err: err}
	}
	return MapSeries(row)
}

// ScanEvent scans the current row and maps it.
func ScanEvent(s StructScanner, includeRelation bool) (model.Event, error) {
	var row EventRow
	if err := s.StructScan(&row); err != nil {
		return model.Event{}, &MalformedRowError{Entity: "event", Err: err}
	}
	return MapEvent(row, includeRelation)
}

// ScanSeriesIdentifier scans an identifiers-only row.
func ScanSeriesIdentifier(s StructScanner) (model.Series, error) {
	var row SeriesRow
	if err := s.StructScan(&row); err != nil {
		return model.Series{}, &MalformedRowError{Entity: "series", Err: err}
	}
	return MapSeriesIdentifier(row)
}

// ScanEventIdentifier scans an identifiers-only row.
func ScanEventIdentifier(s StructScanner) (model.Event, error) {
	var row EventRow
	if err := s.StructScan(&row); err != nil {
		return model.Event{}, &MalformedRowError{Entity: "event", Err: err}
	}
	return MapEventIdentifier(row)
}
