package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sheetCSV = "id,name,url,lat,lng,category,subcategory,description\n" +
	"1,Big Basin,,37.17,-122.22,Camping,Car camping,Redwoods\n" +
	"2,Pinnacles,https://example.com,36.49,-121.18,Climbing,,\n" +
	"3,Nowhere,,0,0,Camping,,\n" +
	"4,Mercury Mine,,37.20,-121.85,Caves & Mines,,\n"

func sheetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/sheet-123") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sheetCSV))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchJSON(t *testing.T) {
	srv := sheetServer(t)

	out, err := run(t, "fetch", "--sheet", "sheet-123", "--export-url", srv.URL+"/{sheetId}.csv", "--format", "json")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var result LocationsResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Count != 3 || result.Total != 3 || result.SheetID != "sheet-123" {
		t.Errorf("result = %+v", result)
	}
}

func TestFetchFilters(t *testing.T) {
	srv := sheetServer(t)
	exportURL := srv.URL + "/{sheetId}.csv"

	tests := []struct {
		name    string
		args    []string
		wantIDs []string
	}{
		{"category", []string{"--category", "Climbing"}, []string{"2"}},
		{"two categories", []string{"--category", "Climbing", "--category", "Camping"}, []string{"1", "2"}},
		{"search", []string{"--search", "REDWOOD"}, []string{"1"}},
		{"pin", []string{"--lat", "37.2", "--lng", "-121.85"}, []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"fetch", "--sheet", "sheet-123", "--export-url", exportURL, "--format", "json"}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			var result LocationsResult
			if err := json.Unmarshal([]byte(out), &result); err != nil {
				t.Fatalf("decode: %v", err)
			}
			var ids []string
			for _, r := range result.Locations {
				ids = append(ids, r.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestFetchText(t *testing.T) {
	srv := sheetServer(t)

	out, err := run(t, "fetch", "--sheet", "sheet-123", "--export-url", srv.URL+"/{sheetId}.csv")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, want := range []string{"1 [Camping] Big Basin (37.1700, -122.2200)", "Type: Car camping", "Showing 3 of 3 locations"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFetchErrors(t *testing.T) {
	srv := sheetServer(t)
	exportURL := srv.URL + "/{sheetId}.csv"

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad format", []string{"--sheet", "sheet-123", "--export-url", exportURL, "--format", "xml"}, "invalid format"},
		{"lone lat", []string{"--sheet", "sheet-123", "--export-url", exportURL, "--lat", "1"}, "--lat and --lng"},
		{"missing sheet", []string{"--sheet", "other", "--export-url", exportURL}, "Google Sheets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"fetch"}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	srv := sheetServer(t)

	_, err := run(t, "fetch", "--sheet", "other", "--export-url", srv.URL+"/{sheetId}.csv")
	if err == nil {
		t.Fatal("fetch of a missing sheet succeeded")
	}
	msg := errorMessage(err)
	if !strings.Contains(msg, "(Code: SHEET") || !strings.Contains(msg, "try again") {
		t.Errorf("errorMessage = %q, want mapped user message with code and action", msg)
	}

	plain := errors.New(`invalid format "xml": want text or json`)
	if got := errorMessage(plain); got != plain.Error() {
		t.Errorf("errorMessage(%v) = %q, want the error unchanged", plain, got)
	}
}

func TestCategories(t *testing.T) {
	srv := sheetServer(t)

	out, err := run(t, "categories", "--sheet", "sheet-123", "--export-url", srv.URL+"/{sheetId}.csv", "--format", "json")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	var cats []CategorySummary
	if err := json.Unmarshal([]byte(out), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("categories = %+v", cats)
	}
	if cats[0].Name != "Camping" || cats[0].Count != 1 || cats[0].Color != "#FF69B4" {
		t.Errorf("camping = %+v", cats[0])
	}
	if len(cats[0].Subcategories) != 1 || cats[0].Subcategories[0] != "Car camping" {
		t.Errorf("subcategories = %v", cats[0].Subcategories)
	}

	out, err = run(t, "categories", "--sheet", "sheet-123", "--export-url", srv.URL+"/{sheetId}.csv")
	if err != nil {
		t.Fatalf("categories text: %v", err)
	}
	if !strings.Contains(out, "🏕️ Camping (1) #FF69B4") || !strings.Contains(out, "• Car camping") {
		t.Errorf("text output:\n%s", out)
	}
}
