package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dental-clinic/internal/adapters/blobcache"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("document not found")
	ErrUnknownPatient = errors.New("patient not found")
	ErrTooLarge       = errors.New("document exceeds the size limit")
	ErrExpired        = errors.New("document content is no longer available")
)

const (
	Source          = "documents"
	schemaVersion   = 1
	DefaultMaxBytes = 10 << 20
)

type PatientChecker interface {
	Exists(ctx context.Context, id string) bool
}

// ContentStore keeps upload bytes out of the record store.
type ContentStore interface {
	Put(contentType string, data []byte) string
	Get(url string) (blobcache.Blob, bool)
	Revoke(url string)
}

type Service struct {
	list     *recordstore.List[Document]
	blobs    ContentStore
	patients PatientChecker
	bus      *eventbus.Bus
	log      logger.Logger
	now      func() time.Time
	maxBytes int64

	mu sync.Mutex
}

type Options struct {
	Store       recordstore.Store
	OnMalformed recordstore.MalformedHook
	Blobs       ContentStore
	Patients    PatientChecker
	Bus         *eventbus.Bus
	Logger      logger.Logger
	MaxBytes    int64
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	max := opts.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	blobs := opts.Blobs
	if blobs == nil {
		blobs = blobcache.New(0)
	}
	return &Service{
		list: recordstore.NewScopedList[Document](opts.Store, recordstore.PrefixDocuments, recordstore.NewCodec(schemaVersion, nil)).
			OnMalformed(opts.OnMalformed),
		blobs:    blobs,
		patients: opts.Patients,
		bus:      opts.Bus,
		log:      log.With(map[string]any{"module": "documents"}),
		now:      time.Now,
		maxBytes: max,
	}
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Start drops a patient's documents when the patient is deleted.
func (s *Service) Start(ctx context.Context) error {
	_, err := eventbus.On(s.bus, "documents.cleanup", func(ctx context.Context, e eventbus.PatientDeleted) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		docs, err := s.list.Load(ctx, e.PatientID)
		if err != nil {
			return err
		}
		for _, d := range docs {
			s.blobs.Revoke(d.URL)
		}
		if err := s.list.Drop(recordstore.WithSource(ctx, Source), e.PatientID); err != nil {
			return fmt.Errorf("drop documents: %w", err)
		}
		s.log.Debug("documents dropped", map[string]any{"patient_id": e.PatientID, "count": len(docs)})
		return nil
	})
	return err
}

// DropOrphans removes document lists whose patient no longer exists.
func (s *Service) DropOrphans(ctx context.Context) (int, error) {
	if s.patients == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes, err := s.list.Scopes(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range scopes {
		if s.patients.Exists(ctx, id) {
			continue
		}
		docs, err := s.list.Load(ctx, id)
		if err != nil {
			return n, err
		}
		for _, d := range docs {
			s.blobs.Revoke(d.URL)
		}
		if err := s.list.Drop(recordstore.WithSource(ctx, Source), id); err != nil {
			return n, fmt.Errorf("drop orphan documents: %w", err)
		}
		n++
	}
	if n > 0 {
		s.log.Info("orphan documents dropped", map[string]any{"count": n})
	}
	return n, nil
}

type UploadInput struct {
	Name        string
	Category    Category
	ContentType string
	Content     []byte
}

// Upload checks the size limit before anything is written.
func (s *Service) Upload(ctx context.Context, patientID string, in UploadInput) (Document, error) {
	name := strings.TrimSpace(in.Name)
	if strings.TrimSpace(patientID) == "" || name == "" || len(in.Content) == 0 {
		return Document{}, ErrInvalidInput
	}
	if int64(len(in.Content)) > s.maxBytes {
		return Document{}, ErrTooLarge
	}
	cat := in.Category
	if cat == "" {
		cat = CategoryOther
	}
	if !cat.Valid() {
		return Document{}, ErrInvalidInput
	}
	if s.patients != nil && !s.patients.Exists(ctx, patientID) {
		return Document{}, ErrUnknownPatient
	}
	ct := strings.TrimSpace(in.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(in.Content)
	}

	doc := Document{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		Name:        name,
		Category:    cat,
		ContentType: ct,
		Size:        int64(len(in.Content)),
		UploadedAt:  s.now().UTC(),
	}
	doc.URL = s.blobs.Put(ct, in.Content)

	err := s.update(ctx, patientID, func(list []Document) ([]Document, error) {
		return append(list, doc), nil
	})
	if err != nil {
		s.blobs.Revoke(doc.URL)
		return Document{}, err
	}

	s.bus.Publish(ctx, eventbus.Notification{
		Title:       "Documento subido",
		Description: doc.Name,
		Category:    eventbus.CategorySuccess,
	})
	return doc, nil
}

func (s *Service) List(ctx context.Context, patientID string) ([]Document, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.list.Load(ctx, patientID)
}

func (s *Service) Get(ctx context.Context, patientID, id string) (Document, error) {
	docs, err := s.List(ctx, patientID)
	if err != nil {
		return Document{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

// Content resolves the document's URL. Metadata outlives the content.
func (s *Service) Content(ctx context.Context, patientID, id string) (Document, blobcache.Blob, error) {
	doc, err := s.Get(ctx, patientID, id)
	if err != nil {
		return Document{}, blobcache.Blob{}, err
	}
	blob, ok := s.blobs.Get(doc.URL)
	if !ok {
		return doc, blobcache.Blob{}, ErrExpired
	}
	return doc, blob, nil
}

// Delete removes exactly the document with id.
func (s *Service) Delete(ctx context.Context, patientID, id string) error {
	var url string
	err := s.update(ctx, patientID, func(list []Document) ([]Document, error) {
		for i := range list {
			if list[i].ID == id {
				url = list[i].URL
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}
	s.blobs.Revoke(url)
	return nil
}

func (s *Service) update(ctx context.Context, patientID string, fn func([]Document) ([]Document, error)) error {
	if strings.TrimSpace(patientID) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.list.Load(ctx, patientID)
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.list.Save(recordstore.WithSource(ctx, Source), patientID, list)
}
