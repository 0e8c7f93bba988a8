package overlay

import (
	"github.com/skip2/go-qrcode"
)

// Generator renders the QR code shown on the stream overlay so viewers
// can open the public queue page from their phones.
type Generator struct {
	publicURL string
}

func NewGenerator(publicURL string) *Generator {
	return &Generator{publicURL: publicURL}
}

// QueuePNG returns the queue-page QR code as a PNG of the given size.
func (g *Generator) QueuePNG(size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(g.publicURL, qrcode.Medium, size)
}

// URL is the target the QR code encodes.
func (g *Generator) URL() string {
	return g.publicURL
}
