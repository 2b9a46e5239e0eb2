package rates

import (
	"github.com/shopspring/decimal"
)

// Row is one (category, weight class) line of a rate table.
type Row struct {
	Category string
	Weight   string // two decimals
	Prices   map[string]decimal.Decimal
}

// Price returns the value of column, and whether the column is present.
func (r Row) Price(column string) (decimal.Decimal, bool) {
	p, ok := r.Prices[column]
	return p, ok
}

type rowKey struct {
	category string
	weight   string
}

// DuplicateRow reports a (category, weight) pair that appears more than once.
// The first occurrence is kept.
type DuplicateRow struct {
	Category string
	Weight   string
	Position int
}

// Table is an immutable index over rate rows.
type Table struct {
	Name       string
	rows       []Row
	index      map[rowKey]int
	categories map[string]struct{}
	duplicates []DuplicateRow
}

// NewTable indexes rows by (category, weight). Rows must already carry a formatted weight.
func NewTable(name string, rows []Row) *Table {
	t := &Table{
		Name:       name,
		rows:       rows,
		index:      make(map[rowKey]int, len(rows)),
		categories: make(map[string]struct{}),
	}
	for i, r := range rows {
		k := rowKey{category: r.Category, weight: r.Weight}
		t.categories[r.Category] = struct{}{}
		if _, seen := t.index[k]; seen {
			t.duplicates = append(t.duplicates, DuplicateRow{Category: r.Category, Weight: r.Weight, Position: i})
			continue
		}
		t.index[k] = i
	}
	return t
}

// Lookup returns the first row loaded for (category, weight).
func (t *Table) Lookup(category, weight string) (Row, bool) {
	i, ok := t.index[rowKey{category: category, weight: weight}]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

func (t *Table) HasCategory(category string) bool {
	_, ok := t.categories[category]
	return ok
}

// Rows returns the rows in load order.
func (t *Table) Rows() []Row { return t.rows }

func (t *Table) Len() int { return len(t.rows) }

// Duplicates lists the rows shadowed by an earlier row with the same key.
func (t *Table) Duplicates() []DuplicateRow { return t.duplicates }
