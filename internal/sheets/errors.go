package sheets

import (
	"errors"
	"fmt"
)

// ErrHTMLResponse is wrapped when the export URL answers with an HTML page
// instead of CSV, which is what Google returns for sheets that are not public.
var ErrHTMLResponse = errors.New("sheet returned an html page instead of csv")

// DataLoadError reports that the sheet could not be fetched.
type DataLoadError struct {
	SheetID    string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *DataLoadError) Error() string {
	msg := "failed to fetch data from Google Sheets, make sure the sheet is publicly accessible"
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DataLoadError) Unwrap() error { return e.Err }
