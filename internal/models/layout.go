package models

// HeaderSettings holds dashboard branding. Broadcast merges for this section
// are one level deep: fields omitted from a partial broadcast keep their
// local values (see layout.DocumentStore).
type HeaderSettings struct {
	Title           string `json:"title,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	ShowClock       bool   `json:"showClock,omitempty"`
}

// LogoWidget is the floating logo overlay. Merged one level deep like the
// header.
type LogoWidget struct {
	URL     string  `json:"url,omitempty"`
	Visible bool    `json:"visible,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	W       float64 `json:"w,omitempty"`
	H       float64 `json:"h,omitempty"`
}

// WindowGeometry is one floating content window on the kiosk canvas.
type WindowGeometry struct {
	ID    string  `json:"id"`
	Title string  `json:"title,omitempty"`
	Kind  string  `json:"kind,omitempty"` // "media", "web", "announcement"
	URL   string  `json:"url,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Z     int     `json:"z,omitempty"`
}

// MediaItem is one entry in a playlist or ticker rotation.
type MediaItem struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Kind            string `json:"kind,omitempty"` // "image", "video", "text"
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Playlist is a named ordered media rotation.
type Playlist struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Items []MediaItem `json:"items,omitempty"`
}

// TickerSettings drives the scrolling announcement bar.
type TickerSettings struct {
	Enabled         bool     `json:"enabled"`
	Messages        []string `json:"messages,omitempty"`
	IntervalSeconds int      `json:"intervalSeconds,omitempty"`
}

// PartySettings drives the celebration overlay (shift records, milestones).
type PartySettings struct {
	Enabled bool   `json:"enabled"`
	Theme   string `json:"theme,omitempty"`
	Message string `json:"message,omitempty"`
}

// LayoutDocument is the shared, broadcast, persisted dashboard configuration.
// Exactly one authoritative copy lives server-side; clients hold replicas
// that are either under an exclusively held edit lock or passive mirrors.
type LayoutDocument struct {
	Header     HeaderSettings   `json:"header"`
	LogoWidget LogoWidget       `json:"logoWidget"`
	Windows    []WindowGeometry `json:"windows,omitempty"`
	Ticker     TickerSettings   `json:"ticker"`
	Party      PartySettings    `json:"party"`
	Lines      []LineConfig     `json:"lines,omitempty"`
	Playlists  []Playlist       `json:"playlists,omitempty"`
}

// Line returns the line config with the given id, or nil.
func (d *LayoutDocument) Line(id string) *LineConfig {
	for i := range d.Lines {
		if d.Lines[i].ID == id {
			return &d.Lines[i]
		}
	}
	return nil
}

// ResolveLine finds a line by telemetry resolution key: id first, then topic.
func (d *LayoutDocument) ResolveLine(id, topic string) *LineConfig {
	if id != "" {
		if lc := d.Line(id); lc != nil {
			return lc
		}
	}
	if topic != "" {
		for i := range d.Lines {
			if d.Lines[i].Topic == topic {
				return &d.Lines[i]
			}
		}
	}
	return nil
}
