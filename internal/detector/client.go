package detector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/harithebeast/multimodal-ai/internal/shared"
)

const detectionPrompt = `List all hardware components visible. For each, output a block:
COMPONENT: [name]
TYPE: [details]
POSITION: [location]
SIZE: [small/medium/large]
DETAILS: [model numbers, form factor, condition]
Separate blocks with ---`

type Config struct {
	ProjectID string
	Location  string
	Model     string
	APIKey    string
}

// Detector identifies hardware components in still images through the Gemini
// vision API. A Detector built without credentials stays disabled and every
// Detect call returns shared.ErrUnavailable.
type Detector struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	log       *slog.Logger
}

func New(ctx context.Context, cfg Config, log *slog.Logger) (*Detector, error) {
	log = log.With("component", "detector")

	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}

	d := &Detector{modelName: cfg.Model, log: log}

	if cfg.ProjectID == "" && cfg.APIKey == "" {
		log.Warn("vision credentials missing, component detection disabled")
		return d, nil
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	d.client = client
	d.model = client.GenerativeModel(cfg.Model)
	log.Info("vision model loaded", "model", cfg.Model)
	return d, nil
}

func (d *Detector) Enabled() bool { return d.model != nil }

func (d *Detector) ModelName() string { return d.modelName }

func (d *Detector) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Detect runs the component detection pass over one uploaded image and
// returns parsed detections plus the annotated JPEG.
func (d *Detector) Detect(ctx context.Context, imageData []byte) (Result, error) {
	if d.model == nil {
		return Result{}, shared.ErrUnavailable
	}

	src, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	resp, err := d.model.GenerateContent(ctx,
		genai.Text(detectionPrompt),
		genai.ImageData(format, imageData),
	)
	if err != nil {
		if IsQuotaError(err) {
			return Result{}, &QuotaError{Detail: err.Error()}
		}
		return Result{}, fmt.Errorf("vision generation: %w", err)
	}

	text := responseText(resp)
	detections := parseDetections(text)
	d.log.Info("detection pass complete", "components", len(detections))

	annotated, err := annotate(src, detections)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Detections:      detections,
		AnnotatedImage:  annotated,
		ModelUsed:       d.modelName,
		TotalComponents: len(detections),
	}, nil
}

// DetailedAnalysis asks the vision model for upgrade guidance grounded on
// the already-detected component names.
func (d *Detector) DetailedAnalysis(ctx context.Context, imageData []byte, detections []Detection) (string, error) {
	if d.model == nil {
		return "", shared.ErrUnavailable
	}

	_, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	names := "none"
	if len(detections) > 0 {
		parts := make([]string, 0, len(detections))
		for _, det := range detections {
			parts = append(parts, det.Class)
		}
		names = strings.Join(parts, ", ")
	}

	prompt := fmt.Sprintf(`You are a hardware upgrade expert assistant.

I detected these components: %s

Now provide detailed information:
1. Confirm component identifications
2. Specify exact types/form factors (DDR4/DDR5, M.2 2280, SO-DIMM, etc.)
3. Any visible model numbers or brand names
4. Compatibility notes and upgrade recommendations
5. Condition assessment

Keep response clear and helpful.`, names)

	resp, err := d.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData(format, imageData),
	)
	if err != nil {
		if IsQuotaError(err) {
			return "", &QuotaError{Detail: err.Error()}
		}
		return "", fmt.Errorf("detailed analysis: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}
