package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HeaderPair is one stored response header. Value is raw bytes so non-UTF8
// header values survive the round trip (encoding/json base64-encodes []byte).
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// HeaderPairs is the flat array-of-pairs column on the idempotency row.
// Order and repeated names round-trip exactly. Stored as jsonb rather than an
// array of a composite type; composite-in-composite decoding is fragile in
// several Postgres drivers and a flat jsonb column sidesteps it.
type HeaderPairs []HeaderPair

func (h HeaderPairs) Value() (driver.Value, error) {
	if h == nil {
		h = HeaderPairs{}
	}
	return json.Marshal(h)
}

func (h *HeaderPairs) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*h = HeaderPairs{}
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("cannot scan %T into HeaderPairs", src)
	}
}

// GormDataType lets AutoMigrate pick jsonb without a type tag per field.
func (HeaderPairs) GormDataType() string { return "jsonb" }

// IdempotencyRecord is one row per (user, idempotency key). A row with a NULL
// response_status_code is a claim held by an in-flight execution; once the
// response columns are populated the row is complete and never mutated again.
type IdempotencyRecord struct {
	UserID             string      `json:"user_id" gorm:"primaryKey;size:36"`
	IdempotencyKey     string      `json:"idempotency_key" gorm:"primaryKey;size:128"`
	ResponseStatusCode *int16      `json:"response_status_code"`
	ResponseHeaders    HeaderPairs `json:"-" gorm:"type:jsonb;not null;default:'[]'"`
	ResponseBody       []byte      `json:"-" gorm:"type:bytea"`
	CreatedAt          time.Time   `json:"created_at" gorm:"not null"`
}

func (IdempotencyRecord) TableName() string { return "idempotency" }

// Complete reports whether the row carries a saved response.
func (r *IdempotencyRecord) Complete() bool { return r.ResponseStatusCode != nil }
