package radar

// DefaultColors are the series colours in assignment order.
var DefaultColors = []string{"#4F46E5", "#10B981", "#8B5CF6", "#F97316"}

// Palette picks a series colour.
type Palette interface {
	Color(index int, name string) string
}

// IndexPalette colours series by their position in the current selection,
// so removing a player shifts the colours of everyone after it.
type IndexPalette struct {
	Colors []string
}

// Color implements Palette.
func (p IndexPalette) Color(index int, _ string) string {
	colors := p.Colors
	if len(colors) == 0 {
		colors = DefaultColors
	}
	if index < 0 {
		index = -index
	}
	return colors[index%len(colors)]
}

// StablePalette colours series by the colour slot each player was given
// when it joined the selection. Players unknown to the palette fall back to
// index colouring.
type StablePalette struct {
	Colors []string
	Slots  map[string]int
}

// NewStablePalette returns a StablePalette over the default colours.
func NewStablePalette(slots map[string]int) StablePalette {
	return StablePalette{Colors: DefaultColors, Slots: slots}
}

// Color implements Palette.
func (p StablePalette) Color(index int, name string) string {
	colors := p.Colors
	if len(colors) == 0 {
		colors = DefaultColors
	}
	if slot, ok := p.Slots[name]; ok {
		return IndexPalette{Colors: colors}.Color(slot, name)
	}
	return IndexPalette{Colors: colors}.Color(index, name)
}
