package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("image exceeds the size limit")
)

const (
	Source               = "profile"
	schemaVersion        = 1
	DefaultMaxImageBytes = 2 << 20
)

type Service struct {
	value    *recordstore.Value[Profile]
	bus      *eventbus.Bus
	log      logger.Logger
	now      func() time.Time
	maxImage int64

	mu      sync.RWMutex
	current Profile
}

type Options struct {
	Store         recordstore.Store
	OnMalformed   recordstore.MalformedHook
	Bus           *eventbus.Bus
	Logger        logger.Logger
	MaxImageBytes int64
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	max := opts.MaxImageBytes
	if max <= 0 {
		max = DefaultMaxImageBytes
	}
	return &Service{
		value:    recordstore.NewValue[Profile](opts.Store, recordstore.KeyProfile, recordstore.NewCodec(schemaVersion, nil)).OnMalformed(opts.OnMalformed),
		bus:      opts.Bus,
		log:      log.With(map[string]any{"module": "profile"}),
		now:      time.Now,
		maxImage: max,
	}
}

// Start loads the profile and keeps the cached copy fresh: ProfileUpdated
// re-reads it, and a write from another source is announced as
// ProfileUpdated.
func (s *Service) Start(ctx context.Context) error {
	if _, err := eventbus.On(s.bus, "profile.cache", func(ctx context.Context, _ eventbus.ProfileUpdated) error {
		return s.reload(ctx)
	}); err != nil {
		return err
	}
	if _, err := eventbus.On(s.bus, "profile.external", func(ctx context.Context, e eventbus.StoreChanged) error {
		if e.Key == recordstore.KeyProfile && e.Source != Source {
			s.bus.Publish(ctx, eventbus.ProfileUpdated{})
		}
		return nil
	}); err != nil {
		return err
	}
	return s.reload(ctx)
}

func (s *Service) reload(ctx context.Context) error {
	p, _, err := s.value.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

func (s *Service) Get(ctx context.Context) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) Update(ctx context.Context, p Profile) (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Profile{}, ErrInvalidInput
	}
	for _, img := range []string{p.Signature, p.Logo} {
		if err := s.checkImage(img); err != nil {
			return Profile{}, err
		}
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.value.Save(recordstore.WithSource(ctx, Source), p); err != nil {
		return Profile{}, err
	}

	s.log.Info("profile updated", nil)
	s.bus.Publish(ctx, eventbus.ProfileUpdated{})
	return p, nil
}

// checkImage accepts an empty value or a base64 image data URL whose
// decoded payload fits the limit.
func (s *Service) checkImage(dataURL string) error {
	if dataURL == "" {
		return nil
	}
	meta, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
		return ErrInvalidInput
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxImage+2 {
		return ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidInput
	}
	if int64(len(raw)) > s.maxImage {
		return ErrTooLarge
	}
	return nil
}
