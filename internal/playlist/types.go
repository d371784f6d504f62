package playlist

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDuration is how long an item is shown when its duration is
// absent or not positive.
const DefaultDuration = 10 * time.Second

// MaxDuration caps a single item's display time.
const MaxDuration = 24 * time.Hour

// Playlist is the document stored per location.
type Playlist struct {
	Name    string `json:"name" yaml:"name"`
	Content []Item `json:"content" yaml:"content"`
}

// Len returns the number of items.
func (p Playlist) Len() int {
	return len(p.Content)
}

// Clone returns a deep copy. The scheduler owns its copy so that later
// changes to a decoded document never reach the playing rotation.
func (p Playlist) Clone() Playlist {
	cpy := Playlist{Name: p.Name}
	if p.Content != nil {
		cpy.Content = make([]Item, len(p.Content))
		for i := range p.Content {
			cpy.Content[i] = p.Content[i].Clone()
		}
	}
	return cpy
}

// ItemType is the kind of content an item carries.
type ItemType string

// Known item types. Any other value is scheduled normally and renders blank.
const (
	TypeImage     ItemType = "image"
	TypeVideo     ItemType = "video"
	TypePDF       ItemType = "pdf"
	TypeQR        ItemType = "widget_qr"
	TypeCountdown ItemType = "widget_countdown"
	TypeWeather   ItemType = "widget_weather"
	TypeTicker    ItemType = "widget_ticker"
)

// AllItemTypes returns every known item type.
func AllItemTypes() []ItemType {
	return []ItemType{TypeImage, TypeVideo, TypePDF, TypeQR, TypeCountdown, TypeWeather, TypeTicker}
}

// Known reports whether t is one of the known item types.
func (t ItemType) Known() bool {
	return t.Render() != RenderBlank
}

// RenderKind tells the renderer which view to use for an item.
type RenderKind string

// Render kinds.
const (
	RenderImage     RenderKind = "image"
	RenderVideo     RenderKind = "video"
	RenderDocument  RenderKind = "document"
	RenderQR        RenderKind = "qr"
	RenderCountdown RenderKind = "countdown"
	RenderWeather   RenderKind = "weather"
	RenderTicker    RenderKind = "ticker"
	RenderBlank     RenderKind = "blank"
)

// Render maps an item type to its render kind. Unknown types render blank.
func (t ItemType) Render() RenderKind {
	switch t {
	case TypeImage:
		return RenderImage
	case TypeVideo:
		return RenderVideo
	case TypePDF:
		return RenderDocument
	case TypeQR:
		return RenderQR
	case TypeCountdown:
		return RenderCountdown
	case TypeWeather:
		return RenderWeather
	case TypeTicker:
		return RenderTicker
	default:
		return RenderBlank
	}
}

// Item is one schedulable piece of content.
type Item struct {
	ID   string   `json:"id" yaml:"id"`
	Type ItemType `json:"type" yaml:"type"`

	// Active is nil when the field is absent, which counts as true.
	Active   *bool    `json:"active,omitempty" yaml:"active,omitempty"`
	Duration Duration `json:"duration" yaml:"duration"`

	// ScheduleDays maps mon..sun to whether the item may play that day.
	ScheduleDays  map[string]bool `json:"scheduleDays,omitempty" yaml:"scheduleDays,omitempty"`
	ScheduleStart string          `json:"scheduleStart,omitempty" yaml:"scheduleStart,omitempty"`
	ScheduleEnd   string          `json:"scheduleEnd,omitempty" yaml:"scheduleEnd,omitempty"`

	URL              string `json:"url,omitempty" yaml:"url,omitempty"`
	StoragePath      string `json:"storagePath,omitempty" yaml:"storagePath,omitempty"`
	Text             string `json:"text,omitempty" yaml:"text,omitempty"`
	SubText          string `json:"subText,omitempty" yaml:"subText,omitempty"`
	QRLink           string `json:"qrLink,omitempty" yaml:"qrLink,omitempty"`
	TargetDate       string `json:"targetDate,omitempty" yaml:"targetDate,omitempty"`
	WeatherCondition string `json:"weatherCondition,omitempty" yaml:"weatherCondition,omitempty"`

	// Styles holds presentation attributes. They are passed to the
	// renderer untouched and never affect scheduling.
	Styles map[string]any `json:"styles,omitempty" yaml:"styles,omitempty"`
}

// IsActive reports the active flag, treating absence as true.
func (it Item) IsActive() bool {
	return it.Active == nil || *it.Active
}

// DisplayDuration returns how long the item stays on screen, rounded to
// whole seconds and capped at MaxDuration. Values under one second use
// fallback; a zero fallback means DefaultDuration.
func (it Item) DisplayDuration(fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = DefaultDuration
	}
	if !it.Duration.Valid() {
		return fallback
	}

	secs := math.Round(it.Duration.Seconds)
	switch {
	case secs < 1:
		return fallback
	case secs >= MaxDuration.Seconds():
		return MaxDuration
	default:
		return time.Duration(secs) * time.Second
	}
}

// Clone returns a deep copy of the item. Styles are copied one level
// deep; nested values are shared.
func (it Item) Clone() Item {
	cpy := it
	if it.Active != nil {
		v := *it.Active
		cpy.Active = &v
	}
	if it.ScheduleDays != nil {
		cpy.ScheduleDays = make(map[string]bool, len(it.ScheduleDays))
		for k, v := range it.ScheduleDays {
			cpy.ScheduleDays[k] = v
		}
	}
	if it.Styles != nil {
		cpy.Styles = make(map[string]any, len(it.Styles))
		for k, v := range it.Styles {
			cpy.Styles[k] = v
		}
	}
	return cpy
}

// Bool returns a pointer to v, for building items in code.
func Bool(v bool) *bool {
	return &v
}

// Decode parses a JSON playlist document and normalises it.
func Decode(data []byte) (Playlist, error) {
	var p Playlist
	if err := json.Unmarshal(data, &p); err != nil {
		return Playlist{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return Normalize(p), nil
}

// DecodeYAML parses a YAML playlist file, as used by the standalone
// store and the publishing CLI, and normalises it.
func DecodeYAML(data []byte) (Playlist, error) {
	var p Playlist
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Playlist{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return Normalize(p), nil
}

// Normalize returns a deep copy of p in which every item has an id.
// Items without one get "item-N" from their 1-based position.
func Normalize(p Playlist) Playlist {
	out := p.Clone()
	for i := range out.Content {
		if out.Content[i].ID == "" {
			out.Content[i].ID = fmt.Sprintf("item-%d", i+1)
		}
	}
	return out
}
