// Package sqlxrepos implements the domain repositories on PostgreSQL via
// sqlx. Document-shaped child data (lessons, questions, attempt results,
// level records) lives in jsonb columns, mirroring the aggregate shapes of
// the domain model.
package sqlxrepos

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func toJSON(v interface{}) (types.JSONText, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling jsonb column")
	}
	return data, nil
}

func fromJSON(data types.JSONText, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, v), "unmarshaling jsonb column")
}

func intArray(ids []int) driver.Valuer {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

func pqStringArray(strs []string) driver.Valuer {
	return pq.StringArray(strs)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
