package partition

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/toriidata/filermap/pkg/errors"
)

// EncodeRows serializes rows to a parquet blob. Callers sort rows before
// encoding; re-encoding the same sorted rows yields the same blob, which
// keeps idempotent re-merges from churning the repository.
func EncodeRows[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return nil, errors.WrapParse("parquet", "rows", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.WrapParse("parquet", "rows", err)
	}
	return buf.Bytes(), nil
}

// DecodeRows deserializes a parquet blob produced by EncodeRows.
func DecodeRows[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WrapParse("parquet", "rows", err)
	}
	return rows, nil
}

// ShardPath returns the replacement file path for one shard of a master
// table. The layout is a compatibility contract shared with downstream
// readers and must not change.
func ShardPath(table, token string) string {
	return fmt.Sprintf("master/%s/bin=%s/data.parquet", table, token)
}
