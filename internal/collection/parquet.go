package collection

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/log"
)

// ImportParquet reads a Parquet file and creates the collection's table
// with one TEXT column per top-level field in the file's schema. Values are
// matched to columns by leaf column index, so only flat schemas (one leaf
// per top-level field) import correctly; nested groups are not flattened.
// DuckDB's read_parquet has no equivalent in the Go ecosystem pack, so this uses
// github.com/parquet-go/parquet-go directly, an out-of-pack dependency.
func (c *Collection) ImportParquet(path string) error {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("collection: open %s: %w", path, apperr.ErrIO)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("collection: stat %s: %w", path, apperr.ErrIO)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return fmt.Errorf("collection: open parquet %s: %w", path, apperr.ErrProtocol)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}
	if err := c.createTable(columns); err != nil {
		return err
	}

	reader := parquet.NewReader(f, pf.Schema())
	defer reader.Close()

	pending := make([]map[string]any, 0, importFlushSize)
	rowBuf := make([]parquet.Row, importFlushSize)
	var imported int64

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := c.db.Table(quoteIdent(c.config.Name)).Create(&pending).Error; err != nil {
			return fmt.Errorf("collection: insert rows: %w", apperr.ErrIO)
		}
		imported += int64(len(pending))
		pending = pending[:0]
		return nil
	}

	for {
		n, err := reader.ReadRows(rowBuf)
		for i := 0; i < n; i++ {
			pending = append(pending, rowToMap(rowBuf[i], columns))
		}
		if len(pending) >= importFlushSize {
			if flushErr := flush(); flushErr != nil {
				return flushErr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("collection: read parquet %s: %w", path, apperr.ErrProtocol)
		}
		if n == 0 {
			break
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Default().Info("records imported", "collection", c.config.Name, "source", path, "rows", imported, "duration", time.Since(start))
	return nil
}

func rowToMap(row parquet.Row, columns []string) map[string]any {
	out := make(map[string]any, len(columns))
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(columns) {
			continue
		}
		out[columns[idx]] = stringifyParquetValue(v)
	}
	return out
}

func stringifyParquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return fmt.Sprintf("%t", v.Boolean())
	case parquet.Int32:
		return fmt.Sprintf("%d", v.Int32())
	case parquet.Int64:
		return fmt.Sprintf("%d", v.Int64())
	case parquet.Float:
		return fmt.Sprintf("%g", v.Float())
	case parquet.Double:
		return fmt.Sprintf("%g", v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
