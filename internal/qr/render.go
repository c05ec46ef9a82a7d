package qr

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Renderer turns a scan payload into a PNG image.
type Renderer interface {
	Render(payload []byte) ([]byte, error)
}

type PNGRenderer struct {
	Size int
}

func NewPNGRenderer(size int) *PNGRenderer {
	if size <= 0 {
		size = defaultSize
	}
	return &PNGRenderer{Size: size}
}

func (r *PNGRenderer) Render(payload []byte) ([]byte, error) {
	png, err := qrcode.Encode(string(payload), qrcode.Medium, r.Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

type scanPayload struct {
	ID string `json:"id"`
}

// Payload is what a scanner decodes before calling the scan endpoint.
func Payload(documentID string) []byte {
	b, _ := json.Marshal(scanPayload{ID: documentID})
	return b
}

func ParsePayload(raw []byte) (string, error) {
	var p scanPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("decode qr payload: %w", err)
	}
	if p.ID == "" {
		return "", fmt.Errorf("qr payload missing id")
	}
	return p.ID, nil
}
