package budgets

import (
	"encoding/json"
	"strconv"

	"dental-clinic/internal/recordstore"
)

// schemaVersion history:
//
//	0: bare array; "number" may be numeric and a redundant "total" is stored
//	1: number is always "P-<n>", no total
const schemaVersion = 1

func codec() recordstore.Codec {
	return recordstore.NewCodec(schemaVersion, map[int]recordstore.Migration{
		0: migrateDropTotal,
	})
}

func migrateDropTotal(data json.RawMessage) (json.RawMessage, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		delete(r, "total")
		if n, ok := r["number"].(float64); ok {
			r["number"] = "P-" + strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return json.Marshal(rows)
}

func newList(store recordstore.Store, onMalformed recordstore.MalformedHook) *recordstore.List[Budget] {
	return recordstore.NewScopedList[Budget](store, recordstore.PrefixBudgets, codec()).OnMalformed(onMalformed)
}
