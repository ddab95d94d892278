package templates

import (
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// AppTitle is the document title on every page.
const AppTitle = "SVMBC Scout Outings"

type navItem struct {
	id, label, icon, target string
}

var navItems = []navItem{
	{PageMap, "Map", "🗺️", ""},
	{PageCategories, "Categories", "📋", "categories?category=all"},
	{PageAbout, "About", "ℹ️", "about"},
}

func documentTitle(page Page) string {
	if page.Title == "" {
		return AppTitle
	}
	return page.Title + " · " + AppTitle
}

// link joins the base path with a relative target ("categories", "about").
func link(base, target string) string {
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(target, "/")
}

// CategoryLink opens the categories page on one category.
func CategoryLink(base, category string) string {
	return link(base, "categories?category="+url.QueryEscape(category))
}

// SearchLink opens the categories page searching for term.
func SearchLink(base, term string) string {
	return link(base, "categories?search="+url.QueryEscape(term))
}

// searchAction keeps the search on the current page; the about page sends it
// to the categories browser.
func searchAction(page Page) string {
	if page.Active == PageMap {
		return link(page.BasePath, "")
	}
	return link(page.BasePath, "categories")
}

// externalURL passes http(s) links through and neutralizes anything else.
func externalURL(raw string) string {
	return string(templ.URL(raw))
}

// mapDataScript embeds the marker document for static/app.js. The JSON comes
// from encoding/json, which escapes <, > and &, so it cannot close the
// script element early.
func mapDataScript(markersJSON []byte) templ.Component {
	return templ.Raw(`<script type="application/json" id="map-data">` + string(markersJSON) + `</script>`)
}
