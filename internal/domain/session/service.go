// Package session keeps the cosmetic "logged in" flag. No credentials are
// checked anywhere.
package session

import (
	"context"

	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

const Source = "session"

type Service struct {
	flag *recordstore.Value[bool]
	log  logger.Logger
}

func NewService(store recordstore.Store, onMalformed recordstore.MalformedHook, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		flag: recordstore.NewValue[bool](store, recordstore.KeyLoggedIn, recordstore.NewCodec(1, nil)).OnMalformed(onMalformed),
		log:  log.With(map[string]any{"module": "session"}),
	}
}

func (s *Service) Login(ctx context.Context) error {
	s.log.Info("login", nil)
	return s.flag.Save(recordstore.WithSource(ctx, Source), true)
}

func (s *Service) Logout(ctx context.Context) error {
	s.log.Info("logout", nil)
	return s.flag.Drop(recordstore.WithSource(ctx, Source))
}

func (s *Service) LoggedIn(ctx context.Context) (bool, error) {
	v, _, err := s.flag.Load(ctx)
	return v, err
}
