package collection

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/log"
)

const importFlushSize = 500

// ImportJSONL reads newline-delimited JSON objects from path and creates
// the collection's table, sniffing the column set from the first non-empty
// line's keys (DuckDB's read_json_auto samples more broadly; one line is
// enough here since letsearch datasets are expected to be uniform).
func (c *Collection) ImportJSONL(path string) error {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("collection: open %s: %w", path, apperr.ErrIO)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var columns []string
	pending := make([]map[string]any, 0, importFlushSize)
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

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return fmt.Errorf("collection: parse jsonl line: %w", apperr.ErrProtocol)
		}

		if columns == nil {
			columns = sortedKeys(row)
			if err := c.createTable(columns); err != nil {
				return err
			}
		}

		pending = append(pending, normalizeRow(row, columns))
		if len(pending) >= importFlushSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("collection: read %s: %w", path, apperr.ErrIO)
	}
	if err := flush(); err != nil {
		return err
	}

	if columns == nil {
		return fmt.Errorf("collection: %s: empty jsonl file: %w", path, apperr.ErrInvalidArgument)
	}

	log.Default().Info("records imported", "collection", c.config.Name, "source", path, "rows", imported, "duration", time.Since(start))
	return nil
}

func (c *Collection) createTable(columns []string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		if !isValidIdentifier(col) {
			return fmt.Errorf("collection: column %q is not a valid identifier: %w", col, apperr.ErrInvalidArgument)
		}
		defs[i] = quoteIdent(col) + " TEXT"
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(c.config.Name), strings.Join(defs, ", "))
	if err := c.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("collection: create table: %w", apperr.ErrIO)
	}
	return nil
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeRow fills every sniffed column for this row (missing keys become
// nil) and stringifies values so every column ends up with a single TEXT
// representation, regardless of how the JSON source typed a given value.
func normalizeRow(row map[string]any, columns []string) map[string]any {
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		out[col] = stringifyValue(row[col])
	}
	return out
}
