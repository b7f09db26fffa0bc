package recognition

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"
	"unicode"
)

const (
	invalidNameChars    = `<>:"/\|?*`
	enrollmentStampForm = "20060102_150405"
)

// SkippedImage reports a batch image that was not enrolled. Index is 1-based.
type SkippedImage struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type EnrollmentOutcome struct {
	Name          string         `json:"name"`
	TotalImages   int            `json:"total_images"`
	ValidFaces    int            `json:"valid_faces"`
	DetectionRate float64        `json:"detection_rate"`
	Skipped       []SkippedImage `json:"skipped,omitempty"`
}

// FormattedDetectionRate renders the rate the way clients display it, e.g. "66.7%".
func (o EnrollmentOutcome) FormattedDetectionRate() string {
	return fmt.Sprintf("%.1f%%", o.DetectionRate)
}

// SanitizeName strips characters that are unsafe in a storage location name.
func SanitizeName(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(invalidNameChars, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", ErrInvalidName
	}
	return cleaned, nil
}

type enrollCandidate struct {
	img    image.Image
	reason string
}

// Enroll validates a new identity against the provider, stores its accepted
// images and rebuilds the gallery. On any failure after the first write the
// identity's storage location is removed again, so the gallery and source
// stay as they were before the call.
func (s *Service) Enroll(ctx context.Context, rawName string, images [][]byte) (EnrollmentOutcome, error) {
	if err := s.ready(); err != nil {
		return EnrollmentOutcome{}, err
	}
	name, err := SanitizeName(rawName)
	if err != nil {
		return EnrollmentOutcome{}, err
	}
	if len(images) == 0 {
		return EnrollmentOutcome{Name: name}, ErrNoImages
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.index.Snapshot().Has(name) {
		return EnrollmentOutcome{Name: name}, &DuplicateIdentityError{Name: name}
	}
	exists, err := s.source.HasIdentity(name)
	if err != nil {
		return EnrollmentOutcome{Name: name}, fmt.Errorf("failed to check storage for '%s': %w", name, err)
	}
	if exists {
		return EnrollmentOutcome{Name: name}, &DuplicateIdentityError{Name: name}
	}

	candidates := make([]enrollCandidate, len(images))
	tasks := make([]func(ctx context.Context), 0, len(images))
	for i, data := range images {
		c := &candidates[i]
		tasks = append(tasks, func(ctx context.Context) {
			c.img, c.reason = s.validateImage(ctx, data)
		})
	}
	if err := s.runner.Run(ctx, tasks); err != nil {
		return EnrollmentOutcome{Name: name}, fmt.Errorf("enrollment of '%s' aborted: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return EnrollmentOutcome{Name: name}, fmt.Errorf("enrollment of '%s' aborted: %w", name, err)
	}

	outcome := EnrollmentOutcome{Name: name, TotalImages: len(images)}
	stamp := s.now().Format(enrollmentStampForm)
	for i, c := range candidates {
		if c.img == nil {
			log.Printf("enroll: Skipping image %d for %s: %s", i+1, name, c.reason)
			outcome.Skipped = append(outcome.Skipped, SkippedImage{Index: i + 1, Reason: c.reason})
			continue
		}
		if err := ctx.Err(); err != nil {
			s.rollback(name)
			return outcome, fmt.Errorf("enrollment of '%s' aborted: %w", name, err)
		}
		fileName := fmt.Sprintf("%s_%s_%02d.jpg", name, stamp, i+1)
		if err := s.source.WriteImage(name, fileName, c.img); err != nil {
			s.rollback(name)
			return outcome, fmt.Errorf("failed to store image %d for '%s': %w", i+1, name, err)
		}
		outcome.ValidFaces++
	}

	if outcome.ValidFaces == 0 {
		s.rollback(name)
		return outcome, ErrNoValidFaces
	}
	outcome.DetectionRate = float64(outcome.ValidFaces) / float64(outcome.TotalImages) * 100

	g, err := s.builder.Build(ctx)
	if err != nil {
		s.rollback(name)
		return outcome, fmt.Errorf("gallery rebuild after enrolling '%s' failed: %w", name, err)
	}
	// stored copies are re-encoded JPEGs and may no longer yield a face
	if !g.Has(name) {
		log.Printf("enroll: No usable faces in stored images for %s, rolling back", name)
		s.rollback(name)
		outcome.ValidFaces = 0
		outcome.DetectionRate = 0
		return outcome, ErrNoValidFaces
	}
	s.index.Swap(g)

	log.Printf("enroll: Registered %s with %d/%d images (%s)", name, outcome.ValidFaces, outcome.TotalImages, outcome.FormattedDetectionRate())
	return outcome, nil
}

// validateImage returns the decoded image when it holds a face, otherwise
// the reason it was rejected.
func (s *Service) validateImage(ctx context.Context, data []byte) (image.Image, string) {
	if ctx.Err() != nil {
		return nil, "enrollment cancelled"
	}
	img, err := s.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Sprintf("could not decode image: %v", err)
	}
	_, found, err := s.provider.Embed(ctx, img)
	if err != nil {
		return nil, fmt.Sprintf("face analysis failed: %v", err)
	}
	if !found {
		return nil, "no face detected"
	}
	return img, ""
}

func (s *Service) rollback(name string) {
	if err := s.source.DeleteIdentity(name); err != nil {
		log.Printf("enroll: ERROR rolling back storage for %s: %v", name, err)
	}
	if s.cache != nil {
		if err := s.cache.ForgetIdentity(name); err != nil {
			log.Printf("enroll: Warning - failed to clear cached embeddings for %s: %v", name, err)
		}
	}
}
