package diagnosis

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const promptTemplate = `You are an expert ophthalmologist AI assistant. Analyze the following information and provide a preliminary eye health assessment.

IMPORTANT: This is for educational purposes only and should not replace professional medical advice.

Medical History: %s
Current Symptoms: %s

Please provide:
1. Possible conditions based on the symptoms
2. Severity assessment (mild, moderate, severe)
3. Recommended next steps
4. When to seek immediate medical attention

Keep the response clear, professional, and easy to understand.`

const imageNote = "\n\nAn image of the eye has been provided. Please analyze it for any visible conditions."

const notProvided = "Not provided"

const defaultImageMIME = "image/jpeg"

// Image is an inline image attached to the prompt.
type Image struct {
	MIME string
	Data []byte
}

// Prompt is what is sent to the model.
type Prompt struct {
	Text  string
	Image *Image
}

// BuildPrompt validates a request and renders the model prompt.
func BuildPrompt(req Request) (Prompt, error) {
	history := strings.TrimSpace(req.MedicalHistory)
	symptoms := strings.TrimSpace(req.Symptoms)
	if history == "" && symptoms == "" {
		return Prompt{}, ErrMissingInput
	}
	if history == "" {
		history = notProvided
	}
	if symptoms == "" {
		symptoms = notProvided
	}

	p := Prompt{Text: fmt.Sprintf(promptTemplate, history, symptoms)}
	if strings.TrimSpace(req.Image) != "" {
		img, err := ParseDataURL(req.Image)
		if err != nil {
			return Prompt{}, err
		}
		p.Image = &img
		p.Text += imageNote
	}
	return p, nil
}

// ParseDataURL decodes a base64 data URL such as
// "data:image/png;base64,iVBOR...". A missing media type means image/jpeg.
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return Image{}, fmt.Errorf("%w: not a data URL", ErrInvalidImage)
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Image{}, fmt.Errorf("%w: payload is not base64", ErrInvalidImage)
	}
	if mime == "" {
		mime = defaultImageMIME
	}
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("%w: media type %q", ErrInvalidImage, mime)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return Image{MIME: mime, Data: data}, nil
}
