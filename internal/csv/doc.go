// Package csv parses the comma-separated export of a published sheet.
//
// The parser is deliberately forgiving: it never returns an error for
// malformed text. Unbalanced quotes simply run to the end of the input and
// whatever fields were assembled are returned. Quoted fields may contain
// commas, doubled quotes and line breaks.
//
// The reader helpers in this package normalise a fetched body before it is
// parsed: a UTF-8 byte order mark is removed and invalid UTF-8 sequences are
// replaced, so the parser always works on clean text.
package csv
