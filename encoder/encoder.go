// Package encoder canonicalizes decoded images and prompt turns into the
// wire representations the inference backends send.
package encoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const (
	// MIMEType is the media type every backend reports for encoded images.
	MIMEType = "image/png"

	// Trigger is the fixed user-turn instruction sent with every image.
	// The actual tagging instructions travel in the system turn.
	Trigger = "Analyze this image and follow the instructions provided."
)

// PNG re-encodes img as an opaque truecolor PNG so that every backend sees
// identical bytes for the same pixels, whatever format the file arrived in.
// Alpha is dropped; premultiplied channels flatten transparent pixels
// toward black.
func PNG(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// A fully opaque RGBA canvas makes the png encoder emit color type 2
	// (truecolor, no alpha channel).
	flat := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			flat.Set(x, y, color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI wraps encoded PNG bytes as a base64 data URI for the
// OpenAI-compatible APIs.
func DataURI(data []byte) string {
	base64Data := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", MIMEType, base64Data)
}

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// ChatMessages assembles the OpenAI-style message list for one image
// request: an optional system turn followed by exactly one user turn
// holding the image and the user instruction. There is no conversation
// history; every request is a single independent exchange.
func ChatMessages(systemPrompt, imageURI, userText string) []Message {
	imagePart := ImageContent{
		Type: "image_url",
		ImageURL: ImageURL{
			URL: imageURI,
		},
	}

	textPart := TextContent{
		Type: "text",
		Text: userText,
	}

	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{
			Role:    "system",
			Content: systemPrompt,
		})
	}
	messages = append(messages, Message{
		Role: "user",
		Content: []any{
			imagePart,
			textPart,
		},
	})

	return messages
}
