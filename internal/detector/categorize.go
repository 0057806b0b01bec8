package detector

import (
	"fmt"
	"strings"
)

const (
	CategoryRAM      = "RAM_UPGRADE"
	CategoryBattery  = "BATTERY_REPLACEMENT"
	CategorySSD      = "SSD_UPGRADE"
	CategoryWiFi     = "WIFI_CARD_REPLACEMENT"
	CategoryFastener = "FASTENER"
	CategoryOther    = "OTHER_COMPONENT"
)

func categorize(componentName string) string {
	name := strings.ToLower(componentName)
	switch {
	case strings.Contains(name, "ram") || strings.Contains(name, "memory"):
		return CategoryRAM
	case strings.Contains(name, "battery"):
		return CategoryBattery
	case strings.Contains(name, "ssd") || strings.Contains(name, "storage") || strings.Contains(name, "drive"):
		return CategorySSD
	case strings.Contains(name, "wifi") || strings.Contains(name, "nic") || strings.Contains(name, "network"):
		return CategoryWiFi
	case strings.Contains(name, "screw"):
		return CategoryFastener
	default:
		return CategoryOther
	}
}

// Describe summarizes detections as a single sentence, listing at most three
// components by name.
func Describe(detections []Detection) string {
	if len(detections) == 0 {
		return "No hardware components detected in the image."
	}

	parts := make([]string, 0, len(detections))
	for _, det := range detections {
		if det.Type != "" && det.Type != "Unknown" {
			parts = append(parts, fmt.Sprintf("%s (%s)", det.Class, det.Type))
		} else {
			parts = append(parts, det.Class)
		}
	}

	if len(parts) <= 3 {
		return "I identified: " + strings.Join(parts, ", ") + "."
	}
	return fmt.Sprintf("I identified %d components: %s, and %d more.",
		len(parts), strings.Join(parts[:3], ", "), len(parts)-3)
}

// StructuredInstructions turns detections into machine-usable guidance for
// the conversation agent: numbered components with upgrade categories plus
// per-category next steps.
func StructuredInstructions(detections []Detection) StructuredData {
	if len(detections) == 0 {
		return StructuredData{
			Summary:         "No components detected",
			Components:      []Component{},
			Recommendations: []Recommendation{},
		}
	}

	components := make([]Component, 0, len(detections))
	recommendations := make([]Recommendation, 0, len(detections))

	for i, det := range detections {
		position := det.Position
		if position == "" {
			position = "Unknown location"
		}
		components = append(components, Component{
			ID:              i + 1,
			Name:            det.Class,
			Type:            det.Type,
			Position:        position,
			Size:            det.Size,
			Details:         det.Details,
			UpgradeCategory: categorize(det.Class),
		})

		if rec, ok := recommend(det.Class, position); ok {
			recommendations = append(recommendations, rec)
		}
	}

	return StructuredData{
		Summary:         fmt.Sprintf("Detected %d hardware component(s)", len(detections)),
		Components:      components,
		Recommendations: recommendations,
		TotalCount:      len(detections),
	}
}

func recommend(componentName, position string) (Recommendation, bool) {
	switch categorize(componentName) {
	case CategoryRAM:
		return Recommendation{
			Component: componentName,
			Action:    "upgrade_available",
			Message:   fmt.Sprintf("I can help you upgrade this RAM module. Located at: %s.", position),
			NextSteps: []string{
				"Identify exact RAM type (DDR3/DDR4/DDR5)",
				"Check motherboard compatibility",
				"Follow RAM installation procedure",
			},
		}, true
	case CategoryBattery:
		return Recommendation{
			Component: componentName,
			Action:    "replacement_available",
			Message:   fmt.Sprintf("I can guide you through battery replacement. Located at: %s.", position),
			NextSteps: []string{
				"Power off and unplug device",
				"Disconnect battery cable",
				"Remove battery carefully",
				"Install new battery",
			},
		}, true
	case CategorySSD:
		return Recommendation{
			Component: componentName,
			Action:    "upgrade_available",
			Message:   fmt.Sprintf("I can help you upgrade this storage drive. Located at: %s.", position),
			NextSteps: []string{
				"Identify SSD form factor (M.2/2.5\"/etc)",
				"Check interface type (SATA/NVMe)",
				"Follow SSD installation procedure",
			},
		}, true
	case CategoryWiFi:
		return Recommendation{
			Component: componentName,
			Action:    "upgrade_available",
			Message:   fmt.Sprintf("I can help you upgrade this WiFi card. Located at: %s.", position),
			NextSteps: []string{
				"Identify card form factor (M.2/Mini PCIe)",
				"Disconnect antenna cables carefully",
				"Follow WiFi card replacement procedure",
			},
		}, true
	case CategoryFastener:
		return Recommendation{
			Component: componentName,
			Action:    "tool_required",
			Message:   fmt.Sprintf("Screw identified at: %s. Ensure you have the right screwdriver.", position),
			NextSteps: []string{
				"Use appropriate screwdriver size",
				"Remove screw carefully",
				"Store screw safely for reassembly",
			},
		}, true
	}
	return Recommendation{}, false
}
