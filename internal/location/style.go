package location

// Style is the presentation attached to a category: marker colour, a light
// tint for cards, and an emoji for the sidebar.
type Style struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Tint  string `json:"tint"`
	Emoji string `json:"emoji"`
}

// FallbackStyle is used for any category missing from the style table.
var FallbackStyle = Style{
	Label: "Other",
	Color: "#9932CC",
	Tint:  "#DDA0DD",
	Emoji: "📍",
}

// categoryStyles is the single palette shared by markers, cards and sidebar.
var categoryStyles = map[string]Style{
	"Camping":              {Label: "Camping", Color: "#FF69B4", Tint: "#FFB6C1", Emoji: "🏕️"},
	"Caves & Mines":        {Label: "Caves & Mines", Color: "#00FFFF", Tint: "#B0E0E6", Emoji: "🕳️"},
	"Backpacking":          {Label: "Backpacking", Color: "#FFFF00", Tint: "#FFFACD", Emoji: "🎒"},
	"Auto/Aviation/Trains": {Label: "Auto/Aviation/Trains", Color: "#9932CC", Tint: "#DDA0DD", Emoji: "🚂"},
	"Climbing":             {Label: "Climbing", Color: "#E6E6FA", Tint: "#E6E6FA", Emoji: "🧗"},
}

// StyleFor returns the style for a category. Unknown categories get
// FallbackStyle with the category name as label.
func StyleFor(category string) Style {
	if s, ok := categoryStyles[category]; ok {
		return s
	}
	s := FallbackStyle
	if category != "" {
		s.Label = category
	}
	return s
}
