// Package relation implements the tabular core shared by both portals:
// typed cell values, an immutable column-indexed table, and the
// operations the reporting views are assembled from.
//
// # Architecture
//
// The package is organized around a small set of composable pieces:
//   - Value: a single typed cell (null, text, or number)
//   - Relation: an ordered set of uniquely named columns plus rows of cells
//   - Build: turns a raw worksheet grid into a Relation
//   - LeftJoin, SumBy, DetectDuplicates, FindOne: the view-building operations
//
// # Data Flow
//
// Raw worksheet cells arrive as strings. Build normalizes the header row
// (trimming, naming blanks, suffixing duplicates), pads or truncates data
// rows to the header width, converts empty cells to null, and coerces the
// requested columns to numbers. Every operation returns a new Relation;
// nothing mutates in place, so derived views can be cached and shared
// freely across sessions.
//
// # Usage
//
//	rel := relation.Build(grid[0], grid[1:], "Hr")
//	view := rel.Project("Date", "Student ID", "Hr").SortBy("Date", "Student ID")
//	hours := relation.SumBy(view, []string{"Student ID"}, "Hr")
package relation
