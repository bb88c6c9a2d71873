package encoder

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(40 * y), B: 200, A: 255})
		}
	}
	return img
}

func TestPNGProducesTruecolorWithoutAlpha(t *testing.T) {
	data, err := PNG(testImage())
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}

	// IHDR layout: 8 signature bytes, 8 chunk header bytes, then 13 data
	// bytes of which the tenth is the color type. Type 2 is truecolor
	// without an alpha channel.
	const colorTypeOffset = 8 + 8 + 9
	if len(data) <= colorTypeOffset {
		t.Fatalf("PNG() returned %d bytes, too short for a PNG header", len(data))
	}
	if got := data[colorTypeOffset]; got != 2 {
		t.Errorf("PNG() color type = %d, want 2 (truecolor)", got)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding PNG() output: %v", err)
	}
	if got, want := decoded.Bounds(), image.Rect(0, 0, 4, 4); got != want {
		t.Errorf("decoded bounds = %v, want %v", got, want)
	}
}

func TestPNGPreservesOpaquePixels(t *testing.T) {
	src := testImage()
	data, err := PNG(src)
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding PNG() output: %v", err)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			wr, wg, wb, _ := src.At(x, y).RGBA()
			gr, gg, gb, ga := decoded.At(x, y).RGBA()
			if gr != wr || gg != wg || gb != wb {
				t.Errorf("pixel (%d,%d) = (%d,%d,%d), want (%d,%d,%d)", x, y, gr, gg, gb, wr, wg, wb)
			}
			if ga != 0xffff {
				t.Errorf("pixel (%d,%d) alpha = %d, want opaque", x, y, ga)
			}
		}
	}
}

func TestPNGIsDeterministic(t *testing.T) {
	first, err := PNG(testImage())
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}
	second, err := PNG(testImage())
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("PNG() produced different bytes for identical input")
	}
}

func TestPNGFlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 0})

	data, err := PNG(img)
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding PNG() output: %v", err)
	}
	_, _, _, a := decoded.At(0, 0).RGBA()
	if a != 0xffff {
		t.Errorf("flattened pixel alpha = %d, want opaque", a)
	}
}

func TestDataURI(t *testing.T) {
	payload := []byte("fake png bytes")
	uri := DataURI(payload)

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("DataURI() = %q, want prefix %q", uri, prefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("decoding data URI payload: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("DataURI() payload = %q, want %q", decoded, payload)
	}
}

func TestChatMessagesWithSystemPrompt(t *testing.T) {
	messages := ChatMessages("You are a tagger.", "data:image/png;base64,AAAA", Trigger)

	if len(messages) != 2 {
		t.Fatalf("ChatMessages() returned %d messages, want 2", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want %q", messages[0].Role, "system")
	}
	if messages[0].Content != "You are a tagger." {
		t.Errorf("messages[0].Content = %v, want system prompt text", messages[0].Content)
	}
	if messages[1].Role != "user" {
		t.Errorf("messages[1].Role = %q, want %q", messages[1].Role, "user")
	}

	parts, ok := messages[1].Content.([]any)
	if !ok {
		t.Fatalf("user content is %T, want []any", messages[1].Content)
	}
	if len(parts) != 2 {
		t.Fatalf("user content has %d parts, want 2", len(parts))
	}

	imagePart, ok := parts[0].(ImageContent)
	if !ok {
		t.Fatalf("parts[0] is %T, want ImageContent", parts[0])
	}
	if imagePart.Type != "image_url" {
		t.Errorf("image part type = %q, want %q", imagePart.Type, "image_url")
	}
	if imagePart.ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("image part URL = %q, want the data URI", imagePart.ImageURL.URL)
	}

	textPart, ok := parts[1].(TextContent)
	if !ok {
		t.Fatalf("parts[1] is %T, want TextContent", parts[1])
	}
	if textPart.Text != Trigger {
		t.Errorf("user text = %q, want %q", textPart.Text, Trigger)
	}
}

func TestChatMessagesWithoutSystemPrompt(t *testing.T) {
	messages := ChatMessages("", "data:image/png;base64,AAAA", Trigger)

	if len(messages) != 1 {
		t.Fatalf("ChatMessages() returned %d messages, want 1", len(messages))
	}
	if messages[0].Role != "user" {
		t.Errorf("messages[0].Role = %q, want %q", messages[0].Role, "user")
	}
}
