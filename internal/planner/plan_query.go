package planner

import (
	"errors"

	"eventgraph/internal/rowmap"
	"eventgraph/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// ErrUnplannableRequest marks a field tree with no recognized fields. Planning
// still succeeds with an identifiers-only statement.
var ErrUnplannableRequest = errors.New("unplannable request: no recognized fields")

// RelationField is the Event field that triggers the join variant.
const RelationField = "partOf"

var (
	seriesFields = map[string]struct{}{"id": {}, "name": {}, "description": {}}
	eventFields  = map[string]struct{}{"id": {}, "title": {}, RelationField: {}}
)

// Variant names the statement shape chosen for a request.
type Variant string

const (
	VariantBase        Variant = "base"
	VariantJoin        Variant = "join"
	VariantIdentifiers Variant = "identifiers"
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// Plan is a statement plus the column contract the mapper checks it against.
type Plan struct {
	Query   SQLQuery
	Columns []string
	Variant Variant
	// IncludeRelation tells the mapper to read the joined series columns.
	IncludeRelation bool
	// Fallback is set when the request had no recognized fields.
	Fallback bool
}

type planOptions struct {
	dialect sqlutil.Dialect
}

// PlanOption customizes planning.
type PlanOption func(*planOptions)

// WithDialect selects identifier quoting and placeholders. Defaults to Postgres.
func WithDialect(d sqlutil.Dialect) PlanOption {
	return func(o *planOptions) {
		o.dialect = d
	}
}

func buildOptions(opts []PlanOption) planOptions {
	options := planOptions{dialect: sqlutil.DialectPostgres}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// PlanSeriesQuery plans the series list. Series has no relations, so every
// recognized request gets the same statement selecting all series columns.
func PlanSeriesQuery(tree *FieldTree, opts ...PlanOption) (*Plan, error) {
	o := buildOptions(opts)
	if !recognizes(tree, seriesFields) {
		return identifiersPlan(o.dialect, rowmap.SeriesID)
	}
	cols := rowmap.SeriesColumns()
	query, args, err := selectFrom(o.dialect, cols, rowmap.SeriesID).ToSql()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Query:   SQLQuery{SQL: query, Args: args},
		Columns: rowmap.Aliases(cols),
		Variant: VariantBase,
	}, nil
}

// PlanEventQuery plans the event list, joining series only when partOf is requested.
func PlanEventQuery(tree *FieldTree, opts ...PlanOption) (*Plan, error) {
	o := buildOptions(opts)
	if !recognizes(tree, eventFields) {
		return identifiersPlan(o.dialect, rowmap.EventID)
	}

	if !tree.Has(RelationField) {
		cols := rowmap.EventColumns()
		query, args, err := selectFrom(o.dialect, cols, rowmap.EventID).ToSql()
		if err != nil {
			return nil, err
		}
		return &Plan{
			Query:   SQLQuery{SQL: query, Args: args},
			Columns: rowmap.Aliases(cols),
			Variant: VariantBase,
		}, nil
	}

	cols := rowmap.JoinedEventColumns()
	d := o.dialect
	join := d.QuoteIdentifier(rowmap.SeriesTable) + " ON " +
		d.Qualified(rowmap.EventPartOf.Table, rowmap.EventPartOf.Name) + " = " +
		d.Qualified(rowmap.SeriesID.Table, rowmap.SeriesID.Name)
	query, args, err := selectFrom(d, cols, rowmap.EventID).LeftJoin(join).ToSql()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Query:           SQLQuery{SQL: query, Args: args},
		Columns:         rowmap.Aliases(cols),
		Variant:         VariantJoin,
		IncludeRelation: true,
	}, nil
}

func identifiersPlan(d sqlutil.Dialect, id rowmap.Column) (*Plan, error) {
	cols := []rowmap.Column{id}
	query, args, err := selectFrom(d, cols, id).ToSql()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Query:    SQLQuery{SQL: query, Args: args},
		Columns:  rowmap.Aliases(cols),
		Variant:  VariantIdentifiers,
		Fallback: true,
	}, nil
}

// selectFrom builds SELECT <cols> FROM <table of orderBy> ORDER BY <orderBy> ASC.
func selectFrom(d sqlutil.Dialect, cols []rowmap.Column, orderBy rowmap.Column) sq.SelectBuilder {
	return sq.Select(columnExprs(d, cols)...).
		From(d.QuoteIdentifier(orderBy.Table)).
		OrderBy(d.Qualified(orderBy.Table, orderBy.Name) + " ASC").
		PlaceholderFormat(d.Placeholder())
}

func columnExprs(d sqlutil.Dialect, cols []rowmap.Column) []string {
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = d.Qualified(c.Table, c.Name) + " AS " + d.QuoteIdentifier(c.Alias)
	}
	return exprs
}

func recognizes(tree *FieldTree, known map[string]struct{}) bool {
	if tree == nil {
		return false
	}
	for _, c := range tree.Children {
		if _, ok := known[c.Name]; ok {
			return true
		}
	}
	return false
}
