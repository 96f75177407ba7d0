package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/model"
	"github.com/wegman-software/osmraw/internal/sink"
)

const (
	relationTypesTable = "relation_types"
	memberTypesTable   = "member_types"
)

// Execer runs a statement. Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// quoteLiteral quotes s as an SQL string literal
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// createTable renders CREATE UNLOGGED TABLE for an output table.
// Extra clauses (keys, constraints) are appended after the columns.
func createTable(schema string, t sink.Table, extra ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE UNLOGGED TABLE IF NOT EXISTS %s (\n", ident(schema, t.Name))

	lines := make([]string, 0, len(t.Columns)+len(extra))
	for _, c := range t.Columns {
		line := fmt.Sprintf("\t%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type.SQL())
		if !c.Nullable {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	for _, e := range extra {
		lines = append(lines, "\t"+e)
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// lookupTable renders a small id/name table and the insert that fills it
func lookupTable(schema, name string, ids []int16, names []string) []string {
	values := make([]string, len(ids))
	for i := range ids {
		values[i] = fmt.Sprintf("(%d, %s)", ids[i], quoteLiteral(names[i]))
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\tid int2 PRIMARY KEY,\n\tname text NOT NULL UNIQUE\n)", ident(schema, name)),
		fmt.Sprintf("INSERT INTO %s (id, name) VALUES %s ON CONFLICT (id) DO NOTHING",
			ident(schema, name), strings.Join(values, ", ")),
	}
}

// Statements returns the DDL that prepares schema for a pass. With drop set
// the four output tables and both lookup tables are recreated from scratch.
func Statements(schema string, drop bool) []string {
	stmts := []string{
		"SET client_min_messages = warning",
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize()),
	}

	if drop {
		tables := sink.Tables()
		for i := len(tables) - 1; i >= 0; i-- {
			stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", ident(schema, tables[i].Name)))
		}
		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", ident(schema, relationTypesTable)),
			fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", ident(schema, memberTypesTable)),
		)
	}

	var (
		relIDs   []int16
		relNames []string
	)
	for _, t := range model.RelationTypes() {
		relIDs = append(relIDs, int16(t))
		relNames = append(relNames, t.Name())
	}
	stmts = append(stmts, lookupTable(schema, relationTypesTable, relIDs, relNames)...)

	var (
		memberIDs   []int16
		memberNames []string
	)
	for _, t := range model.MemberTypes() {
		memberIDs = append(memberIDs, int16(t))
		memberNames = append(memberNames, t.String())
	}
	stmts = append(stmts, lookupTable(schema, memberTypesTable, memberIDs, memberNames)...)

	stmts = append(stmts,
		createTable(schema, sink.PointsTable, "PRIMARY KEY (id)"),
		createTable(schema, sink.WaysTable, "PRIMARY KEY (id)"),
		createTable(schema, sink.RelationsTable,
			"PRIMARY KEY (id)",
			fmt.Sprintf("CONSTRAINT fk_relation_type FOREIGN KEY (type_id) REFERENCES %s (id)",
				ident(schema, relationTypesTable)),
		),
		createTable(schema, sink.MembersTable,
			fmt.Sprintf("CONSTRAINT fk_member_type FOREIGN KEY (member_type_id) REFERENCES %s (id)",
				ident(schema, memberTypesTable)),
		),
	)

	if !drop {
		// keep the tables but start the pass empty
		names := make([]string, 0, 4)
		for _, t := range sink.Tables() {
			names = append(names, ident(schema, t.Name))
		}
		stmts = append(stmts, "TRUNCATE "+strings.Join(names, ", "))
	}

	return stmts
}

// Prepare runs Statements against db. It must complete before the pass starts.
func Prepare(ctx context.Context, db Execer, schema string, drop bool) error {
	log := logger.Get()
	log.Info("Preparing schema", zap.String("schema", schema), zap.Bool("drop_existing", drop))

	for _, stmt := range Statements(schema, drop) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema %s: %w", schema, err)
		}
	}
	return nil
}

// FinalizeStatements returns the post-pass maintenance for one output table:
// switch it to logged, build its secondary indexes, refresh statistics.
func FinalizeStatements(schema string, t sink.Table) []string {
	table := ident(schema, t.Name)
	stmts := []string{fmt.Sprintf("ALTER TABLE %s SET LOGGED", table)}

	switch t.Name {
	case sink.RelationsTable.Name:
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS relations_type_idx ON %s (type_id)", table))
	case sink.MembersTable.Name:
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS relation_members_rel_id_member_id_member_type_idx ON %s (rel_id, member_id, member_type_id)",
			table))
	}

	return append(stmts, fmt.Sprintf("ANALYZE %s", table))
}

// Finalize runs FinalizeStatements for every output table concurrently, so
// db must be safe for concurrent use (a pool). It must only be called after
// all destinations have finished.
func Finalize(ctx context.Context, db Execer, schema string) error {
	log := logger.Get()
	g, ctx := errgroup.WithContext(ctx)

	for _, t := range sink.Tables() {
		t := t
		g.Go(func() error {
			log.Info("Finalizing table", zap.String("table", t.Name))
			for _, stmt := range FinalizeStatements(schema, t) {
				if _, err := db.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to finalize %s: %w", t.Name, err)
				}
			}
			log.Debug("Table finalized", zap.String("table", t.Name))
			return nil
		})
	}

	return g.Wait()
}
