package bitmap

// Palette holds the color table of a paletted bitmap in file order
// (blue, green, red, reserved).
type Palette [][4]byte

// ToGray maps a height byte to the gray level it is displayed as.
func ToGray(height byte) byte {
	return byte((int(height) + 128) % 256)
}

// FromGray maps a gray level back to its height byte. It is the inverse of
// ToGray, and the same function.
func FromGray(gray byte) byte {
	return byte((int(gray) + 128) % 256)
}

// CanonicalPalette returns the palette written by Encode: entry i is the
// gray level ToGray(i), so a pixel index equals its height byte.
func CanonicalPalette() Palette {
	p := make(Palette, 256)
	for i := range p {
		g := ToGray(byte(i))
		p[i] = [4]byte{g, g, g, 0}
	}
	return p
}
