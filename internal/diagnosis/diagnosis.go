// Package diagnosis forwards a free-text history, symptoms and an optional
// eye photo to a generative model and returns its assessment.
//
// Exactly one upstream call is made per request. There is no retry.
package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMissingInput  = errors.New("medical history or symptoms required")
	ErrInvalidImage  = errors.New("image must be a base64 data URL")
	ErrNotConfigured = errors.New("gemini api key is not configured")
	ErrUpstream      = errors.New("gemini api error")
)

// Texts shown to the diagnosis view.
const (
	NoticeMissingInput  = "Please provide medical history or symptoms"
	NoticeNotConfigured = "GEMINI_API_KEY is not configured"
	NoticeUpstream      = "Gemini API error"
)

// UpstreamError is a failed model call. Code is the HTTP status the model
// answered with, or 0 when the call never got a response.
type UpstreamError struct {
	Code int
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%v: %d", ErrUpstream, e.Code)
	}
	return fmt.Sprintf("%v: %v", ErrUpstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Fallback is returned when the model answers without any text.
const Fallback = "Unable to generate diagnosis. Please try again."

// Request is the body the diagnosis view posts.
type Request struct {
	MedicalHistory string `json:"medicalHistory"`
	Symptoms       string `json:"symptoms"`
	Image          string `json:"image,omitempty"`
}

// Response carries the model text.
type Response struct {
	Diagnosis string `json:"diagnosis"`
}

// Generator runs a prompt through a model. An empty string with a nil error
// means the model produced no text.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Service validates requests, calls the Generator and audit-logs each call.
// Medical text never reaches the log; only its length and a digest do.
type Service struct {
	gen Generator
	log *zap.Logger
}

func NewService(gen Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{gen: gen, log: log}
}

// Diagnose answers one request.
func (s *Service) Diagnose(ctx context.Context, req Request) (Response, error) {
	fields := []zap.Field{
		zap.Int("history_len", len(req.MedicalHistory)),
		zap.Int("symptoms_len", len(req.Symptoms)),
		zap.Bool("has_image", req.Image != ""),
		zap.String("digest", digest(req)),
	}

	p, err := BuildPrompt(req)
	if err != nil {
		s.log.Info("diagnosis_rejected", append(fields, zap.Error(err))...)
		return Response{}, err
	}

	start := time.Now()
	s.log.Info("diagnosis_request", fields...)
	text, err := s.gen.Generate(ctx, p)
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	if err != nil {
		s.log.Error("diagnosis_failed", append(fields, zap.Error(err))...)
		return Response{}, err
	}
	if text == "" {
		text = Fallback
	}
	s.log.Info("diagnosis_completed", append(fields, zap.Int("response_len", len(text)))...)
	return Response{Diagnosis: text}, nil
}

// digest is a short fingerprint that lets repeated requests be correlated
// without storing their content.
func digest(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.MedicalHistory))
	h.Write([]byte{0})
	h.Write([]byte(req.Symptoms))
	h.Write([]byte{0})
	h.Write([]byte(req.Image))
	return hex.EncodeToString(h.Sum(nil))[:12]
}
