// Package sheets reads worksheet grids out of Google Sheets.
//
// # Architecture
//
// Source is the single fetch abstraction: given a spreadsheet ID and a
// worksheet title it returns the raw cell grid as strings. GoogleSource
// implements it over the Sheets API using a service account;
// CachedSource wraps any Source with a memo Cache so each worksheet is
// fetched at most once until the cache is explicitly invalidated.
//
// Service-account credentials come either from a JSON file on disk or
// from an encrypted payload embedded at build time, see LoadCredentials.
//
// # Usage
//
//	creds, _ := sheets.LoadCredentials(cfg)
//	src, _ := sheets.NewGoogleSource(ctx, creds, logger)
//	cached := sheets.NewCachedSource(src, sheets.NewCache(), logger)
//	grid, err := cached.Fetch(ctx, spreadsheetID, "Student class details")
package sheets
