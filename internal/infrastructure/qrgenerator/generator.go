package qrgenerator

import (
	"errors"

	qr "github.com/skip2/go-qrcode"
)

var ErrEmptyContent = errors.New("qr content is empty")

type Generator struct {
	size int
}

func NewGenerator(size int) *Generator {
	return &Generator{size: size}
}

// Generate renders content as a PNG QR code.
func (g *Generator) Generate(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	return qr.Encode(content, qr.Medium, g.size)
}
