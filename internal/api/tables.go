package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

// rowidColumn addresses rows of tables without a single integer primary key.
const rowidColumn = "rowid"

// readOnlyVerbs are the statement verbs POST /query accepts.
var readOnlyVerbs = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"EXPLAIN": true,
}

// tableRow is the entity used to read rows of arbitrary tables.
type tableRow struct {
	record.Record
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// RowsResponse is returned by the row listing and query endpoints.
type RowsResponse struct {
	Rows  []database.Row `json:"rows"`
	Count int            `json:"count"`
}

// handleTableColumns returns the column descriptors of a table.
func (s *Server) handleTableColumns(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	cols, err := s.db.TableInfo(r.Context(), table)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table":   table,
		"columns": cols,
	})
}

// handleTableRows returns every row of a table, optionally bounded by ?limit.
func (s *Server) handleTableRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var (
		limit    int64
		hasLimit bool
	)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit, hasLimit = n, true
	}

	if _, err := s.db.TableInfo(r.Context(), table); err != nil {
		s.writeDBError(w, r, err)
		return
	}

	sql := "SELECT * FROM " + quoteIdent(table)
	var params []any
	if hasLimit {
		sql += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := s.db.Query(r.Context(), sql, params...)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RowsResponse{Rows: nonNilRows(rows), Count: len(rows)})
}

// tableRepository builds a repository for table, keyed by its integer
// primary key or by rowid when it has none. The bool reports which.
func (s *Server) tableRepository(r *http.Request, table string) (*record.Repository[*tableRow], bool, error) {
	cols, err := s.db.TableInfo(r.Context(), table)
	if err != nil {
		return nil, false, err
	}
	pk, ok := integerPrimaryKey(cols)
	if !ok {
		pk = rowidColumn
	}
	opts := []record.Option{
		record.WithTableName(table),
		record.WithPrimaryKey(pk),
		record.WithLogger(s.logger),
	}
	if s.observer != nil {
		opts = append(opts, record.WithObserver(s.observer))
	}
	return record.NewRepository(s.db, func() *tableRow { return &tableRow{} }, opts...), ok, nil
}

// findRow loads one row by key.
func findRow(r *http.Request, repo *record.Repository[*tableRow], keyed bool, id int64) (*tableRow, error) {
	if keyed {
		return repo.Find(r.Context(), id)
	}
	return findByRowid(r, repo, id)
}

// handleTableRow returns one row by primary key through a record.Repository.
func (s *Server) handleTableRow(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}

	repo, keyed, err := s.tableRepository(r, chi.URLParam(r, "table"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}

	row, err := findRow(r, repo, keyed, id)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowResponse(repo, row))
}

// handleCreateRow inserts a row built from the request attributes.
func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	attrs, ok := decodeAttributes(w, r)
	if !ok {
		return
	}

	repo, keyed, err := s.tableRepository(r, chi.URLParam(r, "table"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	if !keyed {
		writeBadRequest(w, "table has no integer primary key; rows cannot be written")
		return
	}

	row := repo.Build(attrs)
	if err := repo.Save(r.Context(), row); err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rowResponse(repo, row))
}

// handleUpdateRow applies the request attributes to an existing row.
// The primary key cannot be changed.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	attrs, ok := decodeAttributes(w, r)
	if !ok {
		return
	}

	repo, keyed, err := s.tableRepository(r, chi.URLParam(r, "table"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	if !keyed {
		writeBadRequest(w, "table has no integer primary key; rows cannot be written")
		return
	}
	if _, changesKey := attrs[repo.PrimaryKeyColumnName()]; changesKey {
		writeBadRequest(w, "primary key "+repo.PrimaryKeyColumnName()+" cannot be updated")
		return
	}

	row, err := repo.Find(r.Context(), id)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	for name, v := range attrs {
		row.Set(name, v)
	}
	if err := repo.Save(r.Context(), row); err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowResponse(repo, row))
}

// handleDeleteRow destroys one row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(w, r)
	if !ok {
		return
	}

	repo, keyed, err := s.tableRepository(r, chi.URLParam(r, "table"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	if !keyed {
		writeBadRequest(w, "table has no integer primary key; rows cannot be written")
		return
	}

	row, err := repo.Find(r.Context(), id)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	if err := repo.Destroy(r.Context(), row); err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeWriteError reports a failed Save or Destroy. The table is known to
// exist, so a schema error means the attributes named unknown columns.
func (s *Server) writeWriteError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrSchema) {
		writeBadRequest(w, err.Error())
		return
	}
	s.writeDBError(w, r, err)
}

// RowRequest is the body of the row create and update endpoints.
type RowRequest struct {
	Attributes map[string]any `json:"attributes"`
}

func decodeAttributes(w http.ResponseWriter, r *http.Request) (record.Attributes, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var req RowRequest
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}

	attrs := make(record.Attributes, len(req.Attributes))
	for name, raw := range req.Attributes {
		v, err := paramValue(raw)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("attributes.%s: %v", name, err))
			return nil, false
		}
		attrs[name] = v
	}
	return attrs, true
}

func rowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return 0, false
	}
	return id, true
}

func rowResponse(repo *record.Repository[*tableRow], row *tableRow) map[string]any {
	pk, _ := row.PrimaryKey()
	return map[string]any{
		"table":       repo.TableName(),
		"primary_key": pk,
		"key_column":  repo.PrimaryKeyColumnName(),
		"attributes":  row.Attributes(),
	}
}

// findByRowid selects the rowid explicitly, since SELECT * omits it.
func findByRowid(r *http.Request, repo *record.Repository[*tableRow], id int64) (*tableRow, error) {
	sql := fmt.Sprintf("SELECT rowid, * FROM %s WHERE rowid = ?", quoteIdent(repo.TableName()))
	rows, err := repo.FindWithSQL(r.Context(), sql, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &record.NotFoundError{Table: repo.TableName(), ID: id}
	}
	return rows[0], nil
}

// handleQuery runs a read-only statement.
//
// The statement runs inside a transaction that is always rolled back,
// so a data-modifying CTE cannot persist anything.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var req QueryRequest
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeBadRequest(w, "sql is required")
		return
	}
	verb := database.StatementVerb(req.SQL)
	if !readOnlyVerbs[verb] {
		writeError(w, http.StatusBadRequest, ErrCodeReadOnly,
			fmt.Sprintf("only read-only statements are accepted, got %q", verb))
		return
	}

	params := make([]any, len(req.Params))
	for i, p := range req.Params {
		v, err := paramValue(p)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("params[%d]: %v", i, err))
			return
		}
		params[i] = v
	}

	ctx := r.Context()
	var rows []database.Row
	err := database.Exclusive(s.db, func(a database.Adapter) error {
		if err := a.Begin(ctx); err != nil {
			return err
		}
		var qErr error
		rows, qErr = a.Query(ctx, req.SQL, params...)
		return errors.Join(qErr, a.Rollback(ctx))
	})
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RowsResponse{Rows: nonNilRows(rows), Count: len(rows)})
}

// paramValue converts a decoded JSON parameter into a bindable Value.
// Numbers arrive as json.Number so integers keep 64-bit precision.
// Objects and arrays have no storage class and are rejected.
func paramValue(p any) (database.Value, error) {
	switch p.(type) {
	case map[string]any, []any:
		return database.Value{}, fmt.Errorf("unsupported parameter type %T", p)
	default:
		return database.ValueOf(p)
	}
}

// integerPrimaryKey returns the table's primary-key column when it is a
// single column of integer affinity.
func integerPrimaryKey(cols []database.Column) (string, bool) {
	var pk []database.Column
	for _, c := range cols {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	if len(pk) != 1 || pk[0].Affinity != database.AffinityInteger {
		return "", false
	}
	return pk[0].Name, true
}

func nonNilRows(rows []database.Row) []database.Row {
	if rows == nil {
		return []database.Row{}
	}
	return rows
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
