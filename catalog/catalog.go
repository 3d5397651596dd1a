// Package catalog is the live schema catalog (spec §4.8): it indexes
// tables, views, and indexes by lowercased name within a schema name, owns
// the vtab.Module registry, and applies the DDL effects package
// planbuilder only describes (planbuilder.DDLPlan). It implements
// planbuilder.Catalog structurally — planbuilder never imports this
// package, breaking what would otherwise be an import cycle, since this
// package's Differ builds declared schemas by calling back into
// planbuilder to build CHECK/DEFAULT expressions.
package catalog

import (
	"strings"
	"sync"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
	"github.com/Digithought/quereus-sub010/vtab"
)

// DefaultSchemaName is used whenever a statement omits an explicit schema
// qualifier, matching the teacher's single-database assumption generalized
// to this engine's schema-per-name catalog.
const DefaultSchemaName = "main"

type tableEntry struct {
	schema *sql.TableSchema
	table  vtab.Table // nil for views
}

type schemaEntry struct {
	tables map[string]*tableEntry // keyed by lowercased name
}

// Catalog is the engine's live schema catalog: one instance per database
// (spec §5 "multiple databases may run in parallel but share nothing").
type Catalog struct {
	mu        sync.RWMutex
	modules   *vtab.Registry
	functions *sql.FunctionRegistry
	schemas   map[string]*schemaEntry
}

func NewCatalog(modules *vtab.Registry, functions *sql.FunctionRegistry) *Catalog {
	return &Catalog{
		modules:   modules,
		functions: functions,
		schemas:   make(map[string]*schemaEntry),
	}
}

var _ planbuilder.Catalog = (*Catalog)(nil)

func normalizeSchema(name string) string {
	if name == "" {
		name = DefaultSchemaName
	}
	return strings.ToLower(name)
}

func (c *Catalog) schemaFor(name string) *schemaEntry {
	se, ok := c.schemas[normalizeSchema(name)]
	if !ok {
		se = &schemaEntry{tables: make(map[string]*tableEntry)}
		c.schemas[normalizeSchema(name)] = se
	}
	return se
}

// Functions implements planbuilder.Catalog.
func (c *Catalog) Functions() *sql.FunctionRegistry { return c.functions }

// Table implements planbuilder.Catalog: a case-insensitive lookup of a
// registered table or view within schemaName (the default schema when
// schemaName is empty), returning the vtab.Table handle the planner's
// TableScan node drives xBestIndex/OpenConnection against (nil for views,
// which have no storage of their own).
func (c *Catalog) Table(schemaName, name string) (*sql.TableSchema, vtab.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	se, ok := c.schemas[normalizeSchema(schemaName)]
	if !ok {
		return nil, nil, false
	}
	te, ok := se.tables[strings.ToLower(name)]
	if !ok {
		return nil, nil, false
	}
	return te.schema, te.table, true
}

// Apply performs the catalog-mutating effect of one DDL plan (spec §4.6
// "applying it against the live catalog is package catalog's job"),
// dispatching on whichever field of ddl is set the way buildCreateTable /
// buildCreateIndex / buildCreateView each populate exactly one.
func (c *Catalog) Apply(ctx *sql.Context, ddl *planbuilder.DDLPlan) error {
	switch {
	case ddl.CreateTable != nil:
		return c.CreateTable(ctx, ddl.CreateTable)
	case ddl.CreateIndex != nil:
		return c.CreateIndex(ctx, ddl.OnTable, ddl.CreateIndex)
	case ddl.CreateView != nil:
		return c.CreateView(ctx, ddl.CreateView)
	default:
		return sql.ErrInternal.New("empty DDL plan")
	}
}

// CreateTable registers schema, instantiating its declared module (spec
// §4.5 "Create instantiates a new Table... at DDL time").
func (c *Catalog) CreateTable(ctx *sql.Context, schema *sql.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se := c.schemaFor(schema.SchemaName)
	key := strings.ToLower(schema.Name)
	if _, exists := se.tables[key]; exists {
		return sql.ErrTableExists.New(schema.Name)
	}
	module, ok := c.modules.Lookup(schema.Module)
	if !ok {
		return sql.ErrUnknownModule.New(schema.Module)
	}
	tbl, err := module.Create(ctx, schema)
	if err != nil {
		return err
	}
	se.tables[key] = &tableEntry{schema: schema, table: tbl}
	return nil
}

// DropTable removes a table (or view) from the catalog. Dropping storage
// itself is left to the garbage collector once the last reference to its
// committed layer chain is released (spec §5 "a committed layer is
// immutable and freely shared by readers").
func (c *Catalog) DropTable(ctx *sql.Context, schemaName, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se, ok := c.schemas[normalizeSchema(schemaName)]
	if !ok {
		return sql.ErrUnknownTable.New(name)
	}
	key := strings.ToLower(name)
	if _, exists := se.tables[key]; !exists {
		return sql.ErrUnknownTable.New(name)
	}
	delete(se.tables, key)
	return nil
}

// CreateView registers a read-only view schema (spec §4.6). Views carry no
// vtab.Table handle; the planner resolves a reference to one by expanding
// its stored query, not by scanning (see planbuilder's CTE/view handling).
func (c *Catalog) CreateView(ctx *sql.Context, schema *sql.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se := c.schemaFor(schema.SchemaName)
	key := strings.ToLower(schema.Name)
	if _, exists := se.tables[key]; exists {
		return sql.ErrViewExists.New(schema.Name)
	}
	se.tables[key] = &tableEntry{schema: schema}
	return nil
}

func (c *Catalog) DropView(ctx *sql.Context, schemaName, name string) error {
	return c.DropTable(ctx, schemaName, name)
}

// CreateIndex appends a secondary index to an already-registered table,
// backfilling it against whatever data the table already holds when its
// module supports vtab.TableIndexer (spec §4.8 "indexesToCreate"); modules
// that don't implement it can only carry the indexes declared at CREATE
// TABLE time.
func (c *Catalog) CreateIndex(ctx *sql.Context, onTable string, index *sql.Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se := c.schemaFor("")
	te, ok := se.tables[strings.ToLower(onTable)]
	if !ok {
		return sql.ErrUnknownTable.New(onTable)
	}
	for _, existing := range te.schema.Indexes {
		if strings.EqualFold(existing.Name, index.Name) {
			return sql.ErrIndexExists.New(index.Name)
		}
	}
	indexer, ok := te.table.(vtab.TableIndexer)
	if !ok {
		return sql.ErrUnsupported.New("module " + te.schema.Module + " does not support adding indexes")
	}
	return indexer.AddIndex(*index)
}

func (c *Catalog) DropIndex(ctx *sql.Context, onTable, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	se := c.schemaFor("")
	te, ok := se.tables[strings.ToLower(onTable)]
	if !ok {
		return sql.ErrUnknownTable.New(onTable)
	}
	indexer, ok := te.table.(vtab.TableIndexer)
	if !ok {
		return sql.ErrUnsupported.New("module " + te.schema.Module + " does not support dropping indexes")
	}
	return indexer.DropIndex(name)
}

// Tables returns every registered table/view schema within schemaName, in
// no particular order — the Differ's view of "the actual catalog".
func (c *Catalog) Tables(schemaName string) []*sql.TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	se, ok := c.schemas[normalizeSchema(schemaName)]
	if !ok {
		return nil
	}
	out := make([]*sql.TableSchema, 0, len(se.tables))
	for _, te := range se.tables {
		out = append(out, te.schema)
	}
	return out
}
