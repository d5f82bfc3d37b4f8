package periodontal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
)

// The chart travels inside the patient's opaque periodontalData field, in
// its own versioned envelope.
const schemaVersion = 1

// PatientData is the slice of the patient directory this module needs.
type PatientData interface {
	Get(ctx context.Context, id string) (patients.Patient, error)
	SetPeriodontalData(ctx context.Context, id string, data json.RawMessage) error
}

type Service struct {
	patients PatientData
	codec    recordstore.Codec
	log      logger.Logger
	now      func() time.Time
}

func NewService(p PatientData, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		patients: p,
		codec:    recordstore.NewCodec(schemaVersion, nil),
		log:      log.With(map[string]any{"module": "periodontal"}),
		now:      time.Now,
	}
}

// Get returns the stored chart, or an empty one if none was saved or the
// stored value cannot be read.
func (s *Service) Get(ctx context.Context, patientID string) (Chart, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return Chart{}, ErrNotFound
		}
		return Chart{}, err
	}
	if len(p.PeriodontalData) == 0 {
		return EmptyChart(), nil
	}

	var c Chart
	if err := s.codec.Decode(p.PeriodontalData, &c); err != nil {
		s.log.Warn("malformed periodontal chart ignored", map[string]any{"patient_id": patientID, "error": err})
		return EmptyChart(), nil
	}
	return complete(c), nil
}

func (s *Service) Save(ctx context.Context, patientID string, c Chart) (Chart, error) {
	if err := validate(c); err != nil {
		return Chart{}, err
	}
	c = complete(c)
	c.UpdatedAt = s.now().UTC()

	raw, err := s.codec.Encode(c)
	if err != nil {
		return Chart{}, err
	}
	if err := s.patients.SetPeriodontalData(ctx, patientID, raw); err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return Chart{}, ErrNotFound
		}
		return Chart{}, err
	}
	return c, nil
}

func validate(c Chart) error {
	seen := make(map[int]struct{}, len(c.Teeth))
	for _, t := range c.Teeth {
		if !patients.ValidTooth(t.Number) {
			return ErrInvalidInput
		}
		if _, dup := seen[t.Number]; dup {
			return ErrInvalidInput
		}
		seen[t.Number] = struct{}{}
		for _, site := range t.Sites {
			if site.Depth < 0 || site.Depth > MaxDepth {
				return ErrInvalidInput
			}
		}
	}
	return nil
}

// complete returns the chart with all 32 teeth in chart order, taking the
// given values where present.
func complete(c Chart) Chart {
	byNumber := make(map[int]Tooth, len(c.Teeth))
	for _, t := range c.Teeth {
		byNumber[t.Number] = t
	}
	out := EmptyChart()
	out.UpdatedAt = c.UpdatedAt
	for i, t := range out.Teeth {
		if given, ok := byNumber[t.Number]; ok {
			out.Teeth[i] = given
		}
	}
	return out
}
