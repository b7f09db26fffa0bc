// Package recognition holds the face gallery, the matcher and the enrollment
// pipeline. Collaborators (image decoding, embedding computation, enrolled
// image storage, the attendance ledger) are reached through interfaces.
package recognition

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/camden-git/faceattend/attendance"
)

// AttendanceNotifier is told about every committed attendance record.
type AttendanceNotifier interface {
	NotifyAttendance(rec attendance.Record)
}

// Dependencies wires a Service. Source, Decoder, Provider and Ledger are
// required for any operation; the rest are optional.
type Dependencies struct {
	Source   ImageSource
	Decoder  Decoder
	Provider EmbeddingProvider
	Ledger   *attendance.Ledger
	Cache    EmbeddingCache
	Runner   Runner
	Notifier AttendanceNotifier
	Clock    func() time.Time
}

// Service is the entry point used by handlers and commands. Matching reads
// a gallery snapshot without locking; enrollment and reload are serialized
// by writeMu.
type Service struct {
	index    *Index
	builder  *Builder
	source   ImageSource
	decoder  Decoder
	provider EmbeddingProvider
	cache    EmbeddingCache
	runner   Runner
	ledger   *attendance.Ledger
	notifier AttendanceNotifier
	now      func() time.Time

	writeMu sync.Mutex
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		index:    NewIndex(),
		source:   deps.Source,
		decoder:  deps.Decoder,
		provider: deps.Provider,
		cache:    deps.Cache,
		runner:   deps.Runner,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		now:      deps.Clock,
	}
	if s.runner == nil {
		s.runner = sequentialRunner{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.builder = NewBuilder(deps.Source, deps.Decoder, deps.Provider, WithCache(deps.Cache), WithRunner(s.runner))
	return s
}

// Ready reports whether the service can match and enroll.
func (s *Service) Ready() bool {
	return s.ready() == nil
}

func (s *Service) ready() error {
	if s == nil || s.source == nil || s.decoder == nil || s.provider == nil || s.ledger == nil {
		return ErrNotInitialized
	}
	return nil
}

// Recognition is a MatchResult plus what happened to its attendance record.
type Recognition struct {
	MatchResult
	Timestamp        time.Time
	Tolerance        float64
	AttendanceLogged bool
	AttendanceError  string
}

// Recognize matches the face in an image payload and records attendance for
// a confident match. A ledger failure is returned as an error wrapping
// attendance.ErrLedgerWrite alongside the otherwise complete Recognition.
func (s *Service) Recognize(ctx context.Context, data []byte, tolerance float64) (Recognition, error) {
	if err := s.ready(); err != nil {
		return Recognition{}, err
	}
	if !(tolerance > 0) || math.IsInf(tolerance, 1) {
		return Recognition{}, ErrInvalidTolerance
	}

	rec := Recognition{Timestamp: s.now(), Tolerance: tolerance}

	img, err := s.decoder.Decode(data)
	if err != nil {
		rec.MatchResult = MatchResult{Kind: NoFaceDetected, Diagnostic: fmt.Sprintf("could not decode image: %v", err)}
		return rec, nil
	}

	probe, found, err := s.provider.Embed(ctx, img)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, ctxErr
		}
		log.Printf("recognition: Face analysis failed: %v", err)
		rec.MatchResult = MatchResult{Kind: NoFaceDetected, Diagnostic: fmt.Sprintf("face analysis failed: %v", err)}
		return rec, nil
	}
	if !found {
		rec.MatchResult = MatchResult{Kind: NoFaceDetected}
		return rec, nil
	}

	rec.MatchResult = Match(s.index.Snapshot(), probe, tolerance)
	if rec.Kind != Matched {
		return rec, nil
	}

	entry, err := s.ledger.Append(rec.Identity, rec.Timestamp, rec.Confidence)
	if err != nil {
		log.Printf("recognition: ERROR logging attendance for %s: %v", rec.Identity, err)
		rec.AttendanceError = err.Error()
		return rec, err
	}
	rec.Timestamp = entry.Timestamp
	rec.AttendanceLogged = true
	s.notify(entry)
	return rec, nil
}

// Reload rebuilds the gallery from the image source and publishes it. The
// previous gallery stays in place if the build fails.
func (s *Service) Reload(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	g, err := s.builder.Build(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload known faces: %w", err)
	}
	s.index.Swap(g)
	return g.Len(), nil
}

// Gallery returns the currently published gallery.
func (s *Service) Gallery() *Gallery {
	return s.index.Snapshot()
}

// ListIdentities maps each enrolled identity to its embedding count.
func (s *Service) ListIdentities() map[string]int {
	return s.index.Snapshot().Counts()
}

// LogAttendance appends a record stamped with the current time.
func (s *Service) LogAttendance(name string, confidence float64) (attendance.Record, error) {
	if s == nil || s.ledger == nil {
		return attendance.Record{}, ErrNotInitialized
	}
	entry, err := s.ledger.Append(name, s.now(), confidence)
	if err != nil {
		return attendance.Record{}, err
	}
	s.notify(entry)
	return entry, nil
}

func (s *Service) QueryAttendance(filter attendance.Filter) ([]attendance.Record, error) {
	if s == nil || s.ledger == nil {
		return nil, ErrNotInitialized
	}
	return s.ledger.Query(filter)
}

func (s *Service) notify(entry attendance.Record) {
	if s.notifier != nil {
		s.notifier.NotifyAttendance(entry)
	}
}
