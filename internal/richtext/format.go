package richtext

// Format is the bitmask of inline formats stored on text nodes.
type Format uint8

const (
	FormatBold          Format = 1 << 0
	FormatItalic        Format = 1 << 1
	FormatStrikethrough Format = 1 << 2
	FormatUnderline     Format = 1 << 3
	FormatCode          Format = 1 << 4

	knownFormats = FormatBold | FormatItalic | FormatStrikethrough | FormatUnderline | FormatCode
)

// Has reports whether every bit of flag is set.
func (f Format) Has(flag Format) bool {
	return flag != 0 && f&flag == flag
}

// formatFromInt keeps the known bits of a stored format value. The editor uses
// higher bits for formats this renderer does not draw.
func formatFromInt(v int) Format {
	if v <= 0 {
		return 0
	}
	return Format(v) & knownFormats
}
