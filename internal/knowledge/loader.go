package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const promptHeader = "## HARDWARE UPGRADE KNOWLEDGE BASE"

const promptDescription = `### Critical Instructions for Hardware Assistance
YOU ARE A HARDWARE UPGRADE ASSISTANT. Your role is to guide users through RAM, battery, SSD, and WiFi card upgrades with EXTREME PRECISION.

**Interaction Rules:**
1. ALWAYS present ONE step at a time — never list multiple steps in advance
2. WAIT for user confirmation ("yes", "done") before proceeding to next step
3. Use EXACT physical descriptions: "remove the screw on the LEFT side", "press clips OUTWARD"
4. Give clear INSTRUCTIONS by default — users can follow text directions
5. Accept photos when user provides them, but DON'T ask for photos unless user is stuck or confused
6. Prioritize safety: remind about power-off, grounding, and anti-static precautions

**Response Style:**
- **Instruction mode (default):** Provide clear text instructions with precise physical directions
- **Visual mode (when user sends photo):** Describe what you see and give next steps based on the image
- Trust the user to follow instructions — only suggest photo if they say "I'm not sure" or "I don't see it"

**Image Analysis Integration:**
- When users upload component images, you receive STRUCTURED DATA with:
  - components[]: Array of detected hardware (id, name, type, position, size, details, upgrade_category)
  - recommendations[]: Array with specific next steps for each component
  - summary: Detection overview
- Use this structured data to give PRECISE instructions referencing the detected components
- Reference component IDs from structured_data when guiding through multi-component upgrades

**When answering:**
- Reference the exact procedure from the UPGRADE PROCEDURES knowledge
- If user reports a problem, consult the TROUBLESHOOTING GUIDE
- Before any upgrade, confirm compatibility using the VISUAL REFERENCE knowledge
- Always verify user has the correct tools and workspace setup
- When structured data is available, use it to personalize instructions`

const sectionSeparator = "\n\n---\n\n"

// domains in the order sections appear in the formatted block.
var domains = []string{"dashboard", "export", "permissions", "tools", "safety", "advanced"}

var domainLabels = map[string]string{
	"dashboard":   "UPGRADE PROCEDURES",
	"export":      "TROUBLESHOOTING GUIDE",
	"permissions": "VISUAL REFERENCE & COMPATIBILITY",
	"tools":       "TOOLS & EQUIPMENT GUIDE",
	"safety":      "SAFETY PROCEDURES & WARNINGS",
	"advanced":    "ADVANCED PROCEDURES & POST-INSTALLATION",
}

// Base holds the knowledge block assembled once at startup. It never
// reloads; missing files contribute empty sections instead of errors.
type Base struct {
	content   map[string]string
	formatted string
}

func Load(dir string, log *slog.Logger) *Base {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "knowledge")

	content := make(map[string]string, len(domains))
	for _, domain := range domains {
		path := filepath.Join(dir, domain+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug("knowledge file missing", "domain", domain, "path", path)
			content[domain] = ""
			continue
		}
		content[domain] = sanitizeUTF8(data)
	}

	b := &Base{content: content}
	b.formatted = b.format()
	log.Info("knowledge base loaded", "sections", len(domains), "bytes", len(b.formatted))
	return b
}

// Format returns the prompt block: header, description, then each non-empty
// section under its human-readable label.
func (b *Base) Format() string {
	return b.formatted
}

func (b *Base) Section(domain string) string {
	return b.content[domain]
}

func (b *Base) format() string {
	parts := []string{promptHeader, promptDescription}
	for _, domain := range domains {
		content := b.content[domain]
		if strings.TrimSpace(content) == "" {
			continue
		}
		label, ok := domainLabels[domain]
		if !ok {
			label = strings.ToUpper(domain)
		}
		parts = append(parts, "### "+label+"\n\n"+content)
	}
	return strings.Join(parts, sectionSeparator)
}

// sanitizeUTF8 decodes bytes as UTF-8, replacing undecodable sequences so a
// badly encoded file never fails startup.
func sanitizeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
