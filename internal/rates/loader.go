package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

const (
	colCategory = "CMS category"
	colWeight   = "Weightclass"
)

// Source loads rate tables by name.
type Source interface {
	Load(ctx context.Context, name string) (*Table, error)
}

// DirSource reads "<name>.json" files from a filesystem.
type DirSource struct {
	fsys   fs.FS
	schema *jsonschema.Schema
	zones  *jsonschema.Schema // category-only, for FallbackTable
	logger *slog.Logger
}

func NewDirSource(fsys fs.FS, logger *slog.Logger) (*DirSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileRecordSchema("rates.json", recordSchema)
	if err != nil {
		return nil, err
	}
	zones, err := compileRecordSchema("zones.json", zoneSchema)
	if err != nil {
		return nil, err
	}
	return &DirSource{fsys: fsys, schema: schema, zones: zones, logger: logger}, nil
}

// Load reads and indexes a table. It is called once per run.
func (s *DirSource) Load(ctx context.Context, name string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := fs.ReadFile(s.fsys, name+".json")
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrRateData, name, err)
	}
	t, err := s.parse(name, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrRateData, name, err)
	}
	for _, d := range t.Duplicates() {
		s.logger.Warn("rates.table.duplicate_row",
			"table", name, "category", d.Category, "weight", d.Weight, "position", d.Position)
	}
	s.logger.Debug("rates.table.loaded", "table", name, "rows", t.Len())
	return t, nil
}

// ParseTable parses a table payload that does not live in a DirSource.
func ParseTable(name string, payload []byte) (*Table, error) {
	s, err := NewDirSource(nil, nil)
	if err != nil {
		return nil, err
	}
	return s.parse(name, payload)
}

func (s *DirSource) parse(name string, payload []byte) (*Table, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}
	// the zone table is keyed by category alone
	categoryOnly := name == FallbackTable
	schema := s.schema
	if categoryOnly {
		schema = s.zones
	}
	if err := schema.Validate(recordsAsAny(records)); err != nil {
		return nil, fmt.Errorf("records do not match schema: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row, err := toRow(rec, categoryOnly)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return NewTable(name, rows), nil
}

// decodeRecords accepts either a list of records or a column-oriented object
// ({"column": {"0": v, "1": v}}) and returns records in row order.
func decodeRecords(payload []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]any:
		return columnsToRecords(v)
	default:
		return nil, errors.New("rate table must be a list of records or a column object")
	}
}

func columnsToRecords(cols map[string]any) ([]map[string]any, error) {
	byIndex := map[string]map[string]any{}
	for col, cells := range cols {
		m, ok := cells.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("column %q is not an object", col)
		}
		for idx, cell := range m {
			rec, ok := byIndex[idx]
			if !ok {
				rec = map[string]any{}
				byIndex[idx] = rec
			}
			rec[col] = cell
		}
	}

	indexes := make([]string, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.SliceStable(indexes, func(i, j int) bool {
		a, errA := strconv.Atoi(indexes[i])
		b, errB := strconv.Atoi(indexes[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return indexes[i] < indexes[j]
	})

	out := make([]map[string]any, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, byIndex[idx])
	}
	return out, nil
}

func toRow(rec map[string]any, categoryOnly bool) (Row, error) {
	category, _ := rec[colCategory].(string)
	var weight string
	if !categoryOnly {
		w, err := utils.NormalizeWeight(cellString(rec[colWeight]))
		if err != nil {
			return Row{}, err
		}
		weight = w
	}
	row := Row{Category: strings.TrimSpace(category), Weight: weight, Prices: map[string]decimal.Decimal{}}
	for col, cell := range rec {
		if col == colCategory || col == colWeight || cell == nil {
			continue
		}
		p, ok := cellDecimal(cell)
		if !ok {
			continue
		}
		row.Prices[col] = p
	}
	return row, nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return t
	default:
		return ""
	}
}

// cellDecimal coerces numeric and money-like string cells; anything else is absent.
func cellDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, false
		}
		d, err := utils.ParseAmount(t)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func recordsAsAny(records []map[string]any) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

const recordSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["CMS category", "Weightclass"],
    "properties": {
      "CMS category": {"type": "string", "minLength": 1},
      "Weightclass": {"type": ["number", "string"]}
    }
  }
}`

const zoneSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["CMS category"],
    "properties": {
      "CMS category": {"type": "string", "minLength": 1}
    }
  }
}`

func compileRecordSchema(url, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
