// Package planner converts the requested GraphQL field tree into a single
// parameterized SQL statement per top-level field.
//
// Event resolution has two statement shapes. The base variant reads only the
// events table. The join variant adds every series column through a LEFT JOIN,
// and is chosen whenever partOf appears anywhere in the request. There is no
// per-column pruning inside the join.
package planner
