package catalog

import (
	"fmt"
	"strings"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
	"github.com/Digithought/quereus-sub010/sql/scope"
	"github.com/Digithought/quereus-sub010/vtab"
)

// ColumnAlteration describes one table's column-level delta between a
// declared schema and the actual catalog (spec §4.8 "tablesToAlter
// (columnsToAdd/Drop)").
type ColumnAlteration struct {
	Table         string
	ColumnsToAdd  []sql.Column
	ColumnsToDrop []string
}

// IndexRef names an index for a drop; IndexCreate additionally carries the
// column list a create needs.
type IndexRef struct {
	Table string
	Name  string
}

type IndexCreate struct {
	Table string
	Index sql.Index
}

// Diff is the Differ's output: the set of catalog mutations that would
// bring the actual catalog in line with a declared schema (spec §4.8).
type Diff struct {
	TablesToCreate  []*sql.TableSchema
	TablesToDrop    []string
	TablesToAlter   []ColumnAlteration
	ViewsToCreate   []*sql.TableSchema
	ViewsToDrop     []string
	IndexesToCreate []IndexCreate
	IndexesToDrop   []IndexRef
}

// Diff compares a declared schema (parsed CREATE TABLE/VIEW/INDEX
// statements, e.g. from a migration script) against this catalog's actual
// contents within schemaName, applying the schema-level defaults DDL
// building normally would (default module "memory", qualified schema
// name) when regenerating the declared side (spec §4.8).
func (c *Catalog) Diff(schemaName string, declared []ast.Statement) (*Diff, error) {
	declaredTables := make(map[string]*sql.TableSchema)
	declaredViews := make(map[string]*sql.TableSchema)
	declaredIndexes := make(map[string][]IndexCreate) // keyed by lowercased table name

	// overlay lets a CREATE INDEX statement later in the same declared
	// script resolve a CREATE TABLE earlier in it, even though that table
	// was never actually registered against c (the differ never mutates
	// c itself).
	b := planbuilder.NewBuilder(&overlayCatalog{base: c, declared: declaredTables}, sql.NewAttributeAllocator(), nil)

	for _, stmt := range declared {
		plan, err := b.Build(stmt, scope.NewMultiScope())
		if err != nil {
			return nil, err
		}
		if plan.DDL == nil {
			return nil, sql.ErrMisuse.New("declared schema statement is not DDL")
		}
		switch {
		case plan.DDL.CreateTable != nil:
			t := plan.DDL.CreateTable
			if t.SchemaName == "" {
				t.SchemaName = normalizeSchema(schemaName)
			}
			if t.Module == "" {
				t.Module = "memory"
			}
			declaredTables[strings.ToLower(t.Name)] = t
		case plan.DDL.CreateView != nil:
			v := plan.DDL.CreateView
			if v.SchemaName == "" {
				v.SchemaName = normalizeSchema(schemaName)
			}
			declaredViews[strings.ToLower(v.Name)] = v
		case plan.DDL.CreateIndex != nil:
			table := strings.ToLower(plan.DDL.OnTable)
			declaredIndexes[table] = append(declaredIndexes[table], IndexCreate{Table: plan.DDL.OnTable, Index: *plan.DDL.CreateIndex})
		}
	}

	d := &Diff{}
	actualTables := make(map[string]*sql.TableSchema)
	for _, s := range c.Tables(schemaName) {
		actualTables[strings.ToLower(s.Name)] = s
	}

	for key, declTable := range declaredTables {
		actual, exists := actualTables[key]
		if !exists {
			d.TablesToCreate = append(d.TablesToCreate, declTable)
			continue
		}
		if alt := diffColumns(declTable, actual); alt != nil {
			d.TablesToAlter = append(d.TablesToAlter, *alt)
		}
	}
	for key, actual := range actualTables {
		if actual.IsView {
			continue
		}
		if _, declared := declaredTables[key]; !declared {
			d.TablesToDrop = append(d.TablesToDrop, actual.Name)
		}
	}

	for key, declView := range declaredViews {
		if _, exists := actualTables[key]; !exists {
			d.ViewsToCreate = append(d.ViewsToCreate, declView)
		}
	}
	for key, actual := range actualTables {
		if !actual.IsView {
			continue
		}
		if _, declared := declaredViews[key]; !declared {
			d.ViewsToDrop = append(d.ViewsToDrop, actual.Name)
		}
	}

	for table, creates := range declaredIndexes {
		actual, exists := actualTables[table]
		have := make(map[string]bool)
		if exists {
			for _, idx := range actual.Indexes {
				have[strings.ToLower(idx.Name)] = true
			}
		}
		for _, ic := range creates {
			if !have[strings.ToLower(ic.Index.Name)] {
				d.IndexesToCreate = append(d.IndexesToCreate, ic)
			}
		}
	}
	for _, actual := range actualTables {
		declIdx := declaredIndexes[strings.ToLower(actual.Name)]
		want := make(map[string]bool)
		for _, ic := range declIdx {
			want[strings.ToLower(ic.Index.Name)] = true
		}
		for _, idx := range actual.Indexes {
			if !want[strings.ToLower(idx.Name)] {
				d.IndexesToDrop = append(d.IndexesToDrop, IndexRef{Table: actual.Name, Name: idx.Name})
			}
		}
	}

	return d, nil
}

// overlayCatalog answers Table() from declared (in-progress) schemas
// first, falling back to the real catalog, so the Differ can resolve
// forward references within one declared script.
type overlayCatalog struct {
	base     *Catalog
	declared map[string]*sql.TableSchema
}

func (o *overlayCatalog) Table(schemaName, name string) (*sql.TableSchema, vtab.Table, bool) {
	if t, ok := o.declared[strings.ToLower(name)]; ok {
		return t, nil, true
	}
	return o.base.Table(schemaName, name)
}

func (o *overlayCatalog) Functions() *sql.FunctionRegistry { return o.base.Functions() }

// diffColumns reports the column-level delta between a declared and actual
// table schema, or nil if they already match.
func diffColumns(declared, actual *sql.TableSchema) *ColumnAlteration {
	declCols := make(map[string]bool, len(declared.Columns))
	for _, c := range declared.Columns {
		declCols[strings.ToLower(c.Name)] = true
	}
	actualCols := make(map[string]bool, len(actual.Columns))
	for _, c := range actual.Columns {
		actualCols[strings.ToLower(c.Name)] = true
	}

	var alt ColumnAlteration
	for _, c := range declared.Columns {
		if !actualCols[strings.ToLower(c.Name)] {
			alt.ColumnsToAdd = append(alt.ColumnsToAdd, c)
		}
	}
	for _, c := range actual.Columns {
		if !declCols[strings.ToLower(c.Name)] {
			alt.ColumnsToDrop = append(alt.ColumnsToDrop, c.Name)
		}
	}
	if len(alt.ColumnsToAdd) == 0 && len(alt.ColumnsToDrop) == 0 {
		return nil
	}
	alt.Table = declared.Name
	return &alt
}

// MigrationDDL renders d as a sequence of DDL statement strings, emitted
// drops-first then creates then alters (spec §4.8), regenerating each
// CREATE from the declared sql.TableSchema rather than echoing original
// source text.
func (d *Diff) MigrationDDL() []string {
	var out []string
	for _, ref := range d.IndexesToDrop {
		out = append(out, fmt.Sprintf("DROP INDEX %s ON %s", ref.Name, ref.Table))
	}
	for _, name := range d.ViewsToDrop {
		out = append(out, fmt.Sprintf("DROP VIEW %s", name))
	}
	for _, name := range d.TablesToDrop {
		out = append(out, fmt.Sprintf("DROP TABLE %s", name))
	}

	for _, t := range d.TablesToCreate {
		out = append(out, createTableDDL(t))
	}
	for _, v := range d.ViewsToCreate {
		out = append(out, fmt.Sprintf("CREATE VIEW %s.%s AS %s", v.SchemaName, v.Name, v.ViewQuery))
	}
	for _, ic := range d.IndexesToCreate {
		out = append(out, createIndexDDL(ic))
	}

	for _, alt := range d.TablesToAlter {
		for _, c := range alt.ColumnsToAdd {
			out = append(out, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", alt.Table, c.Name, affinityName(c.Affinity)))
		}
		for _, name := range alt.ColumnsToDrop {
			out = append(out, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", alt.Table, name))
		}
	}
	return out
}

func createTableDDL(t *sql.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s.%s (", t.SchemaName, t.Name)
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", c.Name, affinityName(c.Affinity))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(") USING ")
	b.WriteString(t.Module)
	return b.String()
}

func createIndexDDL(ic IndexCreate) string {
	cols := make([]string, len(ic.Index.Columns))
	for i, c := range ic.Index.Columns {
		cols[i] = fmt.Sprintf("%d", c.ColumnIndex)
	}
	unique := ""
	if ic.Index.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, ic.Index.Name, ic.Table, strings.Join(cols, ", "))
}

func affinityName(a sql.Affinity) string {
	switch a {
	case sql.AffinityInteger:
		return "INTEGER"
	case sql.AffinityReal:
		return "REAL"
	case sql.AffinityBlob:
		return "BLOB"
	case sql.AffinityNumeric:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

// Apply runs every mutation in d against c, in the same drops-first,
// creates, then alters order MigrationDDL renders (spec §4.8). Column
// alterations are applied only as schema metadata updates (sql.Column
// append/remove), since the memory module stores rows as fixed-shape
// sql.Row slices and has no physical column-rewrite step to perform.
func (d *Diff) Apply(ctx *sql.Context, c *Catalog) error {
	for _, ref := range d.IndexesToDrop {
		if err := c.DropIndex(ctx, ref.Table, ref.Name); err != nil {
			return err
		}
	}
	for _, name := range d.ViewsToDrop {
		if err := c.DropView(ctx, "", name); err != nil {
			return err
		}
	}
	for _, name := range d.TablesToDrop {
		if err := c.DropTable(ctx, "", name); err != nil {
			return err
		}
	}

	for _, t := range d.TablesToCreate {
		if err := c.CreateTable(ctx, t); err != nil {
			return err
		}
	}
	for _, v := range d.ViewsToCreate {
		if err := c.CreateView(ctx, v); err != nil {
			return err
		}
	}
	for _, ic := range d.IndexesToCreate {
		idx := ic.Index
		if err := c.CreateIndex(ctx, ic.Table, &idx); err != nil {
			return err
		}
	}

	for _, alt := range d.TablesToAlter {
		if err := c.alterTable(alt); err != nil {
			return err
		}
	}
	return nil
}

// alterTable appends/removes columns on a table's live schema in place —
// the same narrow exception to "schemas are immutable after registration"
// that table.AddIndex relies on, for the same reason (the vtab.Table
// instance already created from this schema pointer has no swap hook).
func (c *Catalog) alterTable(alt ColumnAlteration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se := c.schemaFor("")
	te, ok := se.tables[strings.ToLower(alt.Table)]
	if !ok {
		return sql.ErrUnknownTable.New(alt.Table)
	}
	te.schema.Columns = append(te.schema.Columns, alt.ColumnsToAdd...)
	if len(alt.ColumnsToDrop) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(alt.ColumnsToDrop))
	for _, name := range alt.ColumnsToDrop {
		drop[strings.ToLower(name)] = true
	}
	kept := te.schema.Columns[:0:0]
	for _, col := range te.schema.Columns {
		if !drop[strings.ToLower(col.Name)] {
			kept = append(kept, col)
		}
	}
	te.schema.Columns = kept
	return nil
}
