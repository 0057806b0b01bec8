package detector

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const maxOverlayEntries = 6

func classColor(className string) color.RGBA {
	name := strings.ToLower(className)
	switch {
	case strings.Contains(name, "battery"):
		return color.RGBA{255, 165, 0, 255}
	case strings.Contains(name, "ssd") || strings.Contains(name, "storage") || strings.Contains(name, "drive"):
		return color.RGBA{0, 255, 0, 255}
	case strings.Contains(name, "screw"):
		return color.RGBA{255, 255, 0, 255}
	case strings.Contains(name, "ram") || strings.Contains(name, "memory"):
		return color.RGBA{0, 100, 255, 255}
	case strings.Contains(name, "wifi") || strings.Contains(name, "nic") ||
		strings.Contains(name, "network") || strings.Contains(name, "card"):
		return color.RGBA{255, 0, 255, 255}
	case strings.Contains(name, "motherboard") || strings.Contains(name, "board"):
		return color.RGBA{0, 255, 255, 255}
	case strings.Contains(name, "fan") || strings.Contains(name, "cooling") || strings.Contains(name, "cooler"):
		return color.RGBA{128, 0, 255, 255}
	case strings.Contains(name, "cable") || strings.Contains(name, "wire") || strings.Contains(name, "connector"):
		return color.RGBA{255, 128, 0, 255}
	default:
		return color.RGBA{180, 180, 180, 255}
	}
}

// annotate renders the detection overlay onto a copy of the source image and
// returns it as JPEG bytes. The overlay lists at most six components along
// the bottom edge.
func annotate(src image.Image, detections []Detection) ([]byte, error) {
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	width := bounds.Dx()
	height := bounds.Dy()

	overlayHeight := height * 3 / 10
	if overlayHeight > 250 {
		overlayHeight = 250
	}
	overlayTop := bounds.Max.Y - overlayHeight
	overlayRect := image.Rect(bounds.Min.X, overlayTop, bounds.Max.X, bounds.Max.Y)
	draw.DrawMask(canvas, overlayRect,
		image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{},
		image.NewUniform(color.Alpha{200}), image.Point{}, draw.Over)

	plural := "s"
	if len(detections) == 1 {
		plural = ""
	}
	title := fmt.Sprintf("Detected %d Component%s", len(detections), plural)
	drawText(canvas, bounds.Min.X+15, overlayTop+22, title, color.White)

	y := overlayTop + 45
	shown := detections
	if len(shown) > maxOverlayEntries {
		shown = shown[:maxOverlayEntries]
	}
	for _, det := range shown {
		label := det.Class
		if det.Type != "" && det.Type != "Unknown" {
			label += " (" + det.Type + ")"
		}
		if det.Position != "" && det.Position != "Unknown" {
			label += " - " + det.Position
		}
		drawDot(canvas, bounds.Min.X+14, y, 5, classColor(det.Class))
		drawText(canvas, bounds.Min.X+25, y+4, label, color.White)
		y += 25
	}
	if len(detections) > maxOverlayEntries {
		more := fmt.Sprintf("... and %d more", len(detections)-maxOverlayEntries)
		drawText(canvas, bounds.Min.X+25, y+4, more, color.RGBA{160, 160, 160, 255})
	}

	watermark := "Analyzed by Gemini Vision AI"
	drawText(canvas, bounds.Min.X+width-230, bounds.Min.Y+20, watermark, color.RGBA{255, 255, 255, 180})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(dst *image.RGBA, x, y int, text string, col color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawDot(dst *image.RGBA, cx, cy, r int, col color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				dst.Set(cx+dx, cy+dy, col)
			}
		}
	}
}
