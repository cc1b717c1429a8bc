package models

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ByteSize is an arbitrary-precision byte count. Sizes are stored in exact
// decimal columns and travel over JSON as decimal strings so they are never
// squeezed through a float.
type ByteSize struct {
	value big.Int
}

func NewByteSize(v int64) ByteSize {
	var s ByteSize
	s.value.SetInt64(v)
	return s
}

func ParseByteSize(s string) (ByteSize, error) {
	var out ByteSize
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return out, nil
	}
	if _, ok := out.value.SetString(trimmed, 10); !ok {
		return out, fmt.Errorf("invalid byte size %q", s)
	}
	return out, nil
}

func (s ByteSize) BigInt() *big.Int {
	return new(big.Int).Set(&s.value)
}

func (s ByteSize) String() string {
	return s.value.String()
}

func (s ByteSize) Int64() int64 {
	return s.value.Int64()
}

func (s ByteSize) Sign() int {
	return s.value.Sign()
}

func (s ByteSize) Cmp(other ByteSize) int {
	return s.value.Cmp(&other.value)
}

func (s ByteSize) Add(other ByteSize) ByteSize {
	var out ByteSize
	out.value.Add(&s.value, &other.value)
	return out
}

func (s ByteSize) Sub(other ByteSize) ByteSize {
	var out ByteSize
	out.value.Sub(&s.value, &other.value)
	return out
}

func (s ByteSize) GormDataType() string {
	return "numeric(78,0)"
}

// GormDBDataType picks the column type per dialect. sqlite has no
// arbitrary-precision numeric type and gives numeric columns REAL affinity,
// which rounds large counts through a 64-bit float, so sizes are stored as
// text there.
func (s ByteSize) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "TEXT"
	}
	return "numeric(78,0)"
}

func (s ByteSize) Value() (driver.Value, error) {
	return s.value.String(), nil
}

func (s *ByteSize) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		s.value.SetInt64(0)
		return nil
	case int64:
		s.value.SetInt64(v)
		return nil
	case float64:
		var f big.Float
		f.SetFloat64(v)
		if _, acc := f.Int(&s.value); acc != big.Exact {
			return fmt.Errorf("cannot scan fractional value %v into ByteSize", v)
		}
		return nil
	case []byte:
		return s.setString(string(v))
	case string:
		return s.setString(v)
	default:
		return fmt.Errorf("cannot scan %T into ByteSize", src)
	}
}

func (s *ByteSize) setString(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		s.value.SetInt64(0)
		return nil
	}
	if _, ok := s.value.SetString(trimmed, 10); !ok {
		// float-typed driver values can come back in exponent form
		f, _, err := big.ParseFloat(trimmed, 10, 320, big.ToNearestEven)
		if err != nil || !f.IsInt() {
			return fmt.Errorf("invalid byte size %q", raw)
		}
		f.Int(&s.value)
	}
	return nil
}

func (s ByteSize) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.value.String())), nil
}

func (s *ByteSize) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" {
		s.value.SetInt64(0)
		return nil
	}
	return s.setString(raw)
}
