// Package sheets fetches the published outings sheet as CSV and maps its rows
// into location records.
//
// The sheet must be shared as "anyone with the link can view". A private sheet
// answers the export URL with a sign-in page, which the loader reports as a
// [DataLoadError] wrapping [ErrHTMLResponse].
//
// Rows are mapped positionally:
//
//	id, name, url, latitude, longitude, category, subcategory, description
//
// The first row is a header and is always discarded. Rows with fewer than five
// columns or an empty id are dropped before any numeric parsing, and rows whose
// coordinates are both zero are dropped afterwards. Dropped rows are counted
// in a [LoadReport] and never cause an error.
package sheets
