package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"dental-clinic/internal/recordstore"
)

// Document is what lives under the patients key.
// RetiredSeeds remembers seed patients that were deleted so the seed merge
// does not bring them back.
type Document struct {
	Patients     []Patient `json:"patients"`
	RetiredSeeds []string  `json:"retiredSeeds,omitempty"`
}

type Repository interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// schemaVersion history:
//
//	0: bare JSON array of patients, ids sometimes numeric
//	1: bare array, ids always strings
//	2: Document object
const schemaVersion = 2

func codec() recordstore.Codec {
	return recordstore.NewCodec(schemaVersion, map[int]recordstore.Migration{
		0: migrateStringIDs,
		1: migrateWrapDocument,
	})
}

func migrateStringIDs(data json.RawMessage) (json.RawMessage, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		switch id := r["id"].(type) {
		case float64:
			r["id"] = strconv.FormatFloat(id, 'f', -1, 64)
		case nil:
			delete(r, "id")
		}
	}
	return json.Marshal(rows)
}

func migrateWrapDocument(data json.RawMessage) (json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"patients": rows})
}

type storeRepo struct {
	value *recordstore.Value[Document]
}

// NewStoreRepository keeps the directory under recordstore.KeyPatients.
func NewStoreRepository(store recordstore.Store, onMalformed recordstore.MalformedHook) Repository {
	return &storeRepo{
		value: recordstore.NewValue[Document](store, recordstore.KeyPatients, codec()).OnMalformed(onMalformed),
	}
}

func (r *storeRepo) Load(ctx context.Context) (Document, error) {
	doc, _, err := r.value.Load(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("load patients: %w", err)
	}
	return doc, nil
}

func (r *storeRepo) Save(ctx context.Context, doc Document) error {
	if doc.Patients == nil {
		doc.Patients = []Patient{}
	}
	return r.value.Save(ctx, doc)
}
