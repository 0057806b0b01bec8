package detector

import (
	"regexp"
	"strings"
)

var (
	componentRe = regexp.MustCompile(`(?i)COMPONENT:\s*([^\n]+)`)
	typeRe      = regexp.MustCompile(`(?i)TYPE:\s*([^\n]+)`)
	positionRe  = regexp.MustCompile(`(?i)POSITION:\s*([^\n]+)`)
	sizeRe      = regexp.MustCompile(`(?i)SIZE:\s*([^\n]+)`)
	detailsRe   = regexp.MustCompile(`(?i)DETAILS:\s*([^\n]+)`)
)

// parseDetections extracts component blocks from the model's free-text
// response. Blocks are separated by "---"; a block without a COMPONENT line
// is skipped, every other field has a lenient default. Confidence is higher
// when the model bothered to fill in DETAILS.
func parseDetections(text string) []Detection {
	var detections []Detection

	for _, block := range strings.Split(text, "---") {
		if strings.TrimSpace(block) == "" {
			continue
		}

		m := componentRe.FindStringSubmatch(block)
		if m == nil {
			continue
		}

		det := Detection{
			Class:    strings.TrimSpace(m[1]),
			Type:     "Unknown",
			Position: "Unknown",
			Size:     "Medium",
		}
		if m := typeRe.FindStringSubmatch(block); m != nil {
			det.Type = strings.TrimSpace(m[1])
		}
		if m := positionRe.FindStringSubmatch(block); m != nil {
			det.Position = strings.TrimSpace(m[1])
		}
		if m := sizeRe.FindStringSubmatch(block); m != nil {
			det.Size = strings.TrimSpace(m[1])
		}
		if m := detailsRe.FindStringSubmatch(block); m != nil {
			det.Details = strings.TrimSpace(m[1])
		}

		if det.Details != "" {
			det.Confidence = 0.9
		} else {
			det.Confidence = 0.7
		}

		detections = append(detections, det)
	}

	return detections
}
