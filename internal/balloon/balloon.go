// Package balloon assigns the reward color a problem earns when it is
// solved. Colors are chosen deterministically from the problem id so every
// device agrees on the color without coordination.
package balloon

// Palette is the fixed ordered set of balloon colors.
var Palette = []string{
	"#4CAF50", // Green
	"#2196F3", // Blue
	"#F44336", // Red
	"#FFC107", // Yellow
	"#9C27B0", // Purple
	"#FF5722", // Orange
	"#E91E63", // Pink
	"#00BCD4", // Cyan
	"#FF9800", // Orange
	"#8BC34A", // Light Green
	"#3F51B5", // Indigo
	"#795548", // Brown
	"#3F51B5", // Indigo
	"#00BCD4", // Cyan
	"#00BFA5", // Teal
	"#FF9800", // Orange
	"#8BC34A", // Lime
}

// ColorFor maps seed to a palette entry. The hash is the classic
// 31-multiplier string hash truncated to a signed 32-bit integer, so the
// result is stable for a given seed and palette.
func ColorFor(seed string, palette []string) string {
	if len(palette) == 0 {
		return ""
	}
	var hash int32
	for _, r := range seed {
		hash = hash*31 + int32(r)
	}
	// Widen before negating: abs of math.MinInt32 overflows in 32 bits.
	idx := int64(hash)
	if idx < 0 {
		idx = -idx
	}
	return palette[idx%int64(len(palette))]
}
