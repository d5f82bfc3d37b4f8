package recordstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Migration upgrades a payload from version k to k+1.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Codec wraps payloads in a versioned envelope:
//
//	{"version": 2, "data": [...]}
//
// Values written before envelopes existed are read as version 0.
type Codec struct {
	version    int
	migrations map[int]Migration
}

// NewCodec builds a codec for the given current version. migrations[k]
// must upgrade version k to k+1 for every k below version that can still be
// found on disk; missing steps are treated as no-ops.
func NewCodec(version int, migrations map[int]Migration) Codec {
	if migrations == nil {
		migrations = map[int]Migration{}
	}
	return Codec{version: version, migrations: migrations}
}

func (c Codec) Version() int { return c.version }

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func (c Codec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("recordstore: encode: %w", err)
	}
	return json.Marshal(envelope{Version: c.version, Data: data})
}

// Decode unwraps and migrates raw into v. Any failure wraps ErrMalformed.
func (c Codec) Decode(raw []byte, v any) error {
	version, data, err := unwrap(raw)
	if err != nil {
		return err
	}
	if version > c.version {
		return fmt.Errorf("%w: version %d is newer than supported %d", ErrMalformed, version, c.version)
	}

	for ; version < c.version; version++ {
		m, ok := c.migrations[version]
		if !ok {
			continue
		}
		data, err = m(data)
		if err != nil {
			return fmt.Errorf("%w: migrate v%d: %v", ErrMalformed, version, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func unwrap(raw []byte) (int, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return 0, nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	if trimmed[0] != '{' {
		return 0, trimmed, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	_, hasVersion := fields["version"]
	_, hasData := fields["data"]
	if len(fields) != 2 || !hasVersion || !hasData {
		// legacy object written without envelope
		return 0, trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return 0, nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	return env.Version, env.Data, nil
}
