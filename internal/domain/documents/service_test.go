package documents

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/adapters/blobcache"
	"dental-clinic/internal/adapters/storage/memory"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/recordstore"
)

type fakePatients map[string]bool

func (f fakePatients) Exists(_ context.Context, id string) bool { return f[id] }

func newTestService(t *testing.T, store recordstore.Store, blobs *blobcache.Cache) (*Service, *eventbus.Bus) {
	t.Helper()
	if blobs == nil {
		blobs = blobcache.New(time.Minute)
	}
	bus := eventbus.New(nil, nil)
	svc := NewService(Options{
		Store:    store,
		Blobs:    blobs,
		Patients: fakePatients{"p1": true, "p2": true},
		Bus:      bus,
		MaxBytes: 64,
	})
	svc.now = func() time.Time { return time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.Start(context.Background()))
	return svc, bus
}

func upload(t *testing.T, svc *Service, patientID, name string) Document {
	t.Helper()
	d, err := svc.Upload(context.Background(), patientID, UploadInput{
		Name:     name,
		Category: CategoryXRay,
		Content:  []byte("%PDF-1.4 " + name),
	})
	require.NoError(t, err)
	return d
}

func TestUpload_StoresMetadataAndContent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), blobcache.New(time.Minute))

	d := upload(t, svc, "p1", "panoramica.pdf")
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.EqualValues(t, len("%PDF-1.4 panoramica.pdf"), d.Size)

	got, blob, err := svc.Content(ctx, "p1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "%PDF-1.4 panoramica.pdf", string(blob.Data))
}

func TestUpload_SizeLimitBlocksBeforeWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	blobs := blobcache.New(time.Minute)
	svc, _ := newTestService(t, store, blobs)

	_, err := svc.Upload(ctx, "p1", UploadInput{Name: "big.bin", Content: bytes.Repeat([]byte{1}, 65)})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, ok, err := store.Get(ctx, recordstore.DocumentsKey("p1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, blobs.Len())
}

func TestUpload_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), nil)

	_, err := svc.Upload(ctx, "p1", UploadInput{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Upload(ctx, "p1", UploadInput{Name: "x", Content: []byte("a"), Category: "Factura"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Upload(ctx, "ghost", UploadInput{Name: "x", Content: []byte("a")})
	assert.ErrorIs(t, err, ErrUnknownPatient)
}

func TestContent_ExpiredAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first, _ := newTestService(t, store, blobcache.New(time.Minute))
	d := upload(t, first, "p1", "consent.pdf")

	// A new process has an empty content cache but the same metadata.
	second, _ := newTestService(t, store, blobcache.New(time.Minute))
	meta, _, err := second.Content(ctx, "p1", d.ID)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "consent.pdf", meta.Name)
}

func TestDelete_RemovesExactlyOne(t *testing.T) {
	ctx := context.Background()
	blobs := blobcache.New(time.Minute)
	svc, _ := newTestService(t, memory.NewStore(), blobs)
	a := upload(t, svc, "p1", "a.pdf")
	b := upload(t, svc, "p1", "b.pdf")
	c := upload(t, svc, "p1", "c.pdf")
	other := upload(t, svc, "p2", "a.pdf")

	require.NoError(t, svc.Delete(ctx, "p1", b.ID))

	docs, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)
	assert.Equal(t, c.ID, docs[1].ID)

	_, ok := blobs.Get(b.URL)
	assert.False(t, ok)
	_, err = svc.Get(ctx, "p2", other.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "p1", b.ID), ErrNotFound)
}

func TestPatientDeleted_DropsDocuments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	blobs := blobcache.New(time.Minute)
	svc, bus := newTestService(t, store, blobs)
	d := upload(t, svc, "p1", "a.pdf")
	upload(t, svc, "p2", "b.pdf")

	bus.Publish(ctx, eventbus.PatientDeleted{PatientID: "p1"})

	_, ok, err := store.Get(ctx, recordstore.DocumentsKey("p1"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = blobs.Get(d.URL)
	assert.False(t, ok)
	assert.Equal(t, 1, blobs.Len())
}

func TestDropOrphans_RevokesContent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	blobs := blobcache.New(time.Minute)
	svc, _ := newTestService(t, store, blobs)
	kept := upload(t, svc, "p1", "informe.pdf")

	url := blobs.Put("application/pdf", []byte("%PDF-1.4 huerfano"))
	raw := `[{"id":"d1","patientId":"ghost","name":"x.pdf","url":"` + url + `"}]`
	require.NoError(t, store.Set(ctx, recordstore.DocumentsKey("ghost"), []byte(raw)))

	n, err := svc.DropOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := blobs.Get(url)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, recordstore.DocumentsKey("ghost"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = svc.Content(ctx, "p1", kept.ID)
	assert.NoError(t, err)
}
