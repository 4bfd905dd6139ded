package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
)

const idNomeLayout = "Coluna,Tipo,Inicio,Fim\nid,NUMBER,1,5\nnome,VARCHAR2,6,15\n"

type fakeStore struct {
	mu   sync.Mutex
	live map[string][]schema.LiveColumn
	rows map[string][]records.Record

	columnsErr, readErr, insertErr error

	insertCalls int
	insertCols  []string
	inserted    [][]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		live: map[string][]schema.LiveColumn{},
		rows: map[string][]records.Record{},
	}
}

func (f *fakeStore) Columns(_ context.Context, table string) ([]schema.LiveColumn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[table], f.columnsErr
}

func (f *fakeStore) ReadRows(_ context.Context, table string, _ []string) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[table], f.readErr
}

func (f *fakeStore) Insert(_ context.Context, _ string, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.insertCols = columns
	f.inserted = append(f.inserted, rows...)
	return int64(len(rows)), nil
}

func idNomeLive() []schema.LiveColumn {
	return []schema.LiveColumn{
		{Name: "id", DeclaredType: "numeric", Position: 1},
		{Name: "nome", DeclaredType: "character varying", Position: 2},
	}
}

func existingIDs(ids ...string) []records.Record {
	cols := records.NewColumns("id")
	out := make([]records.Record, len(ids))
	for i, id := range ids {
		out[i] = records.Make(cols, []records.Value{records.StringValue(id)})
	}
	return out
}

// writePair writes <table>.txt and <table>_layout.txt into dir.
func writePair(t *testing.T, dir, table, layoutText, data string) (string, string) {
	t.Helper()
	dataPath := filepath.Join(dir, table+".txt")
	layoutPath := filepath.Join(dir, table+"_layout.txt")
	require.NoError(t, os.WriteFile(dataPath, []byte(data), 0o600))
	require.NoError(t, os.WriteFile(layoutPath, []byte(layoutText), 0o600))
	return dataPath, layoutPath
}

func TestSyncTable_InsertsOnlyNewRecords(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = idNomeLive()
	store.rows["tb"] = existingIDs("123")

	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00123Joao      \n00456Maria     \n")
	o := New(store, Config{Tables: KeyOnly("id")})

	res := o.SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 1, res.NewRecordCount)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, 2, res.Decoded)
	assert.Equal(t, 1, res.Existing)
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Len(t, res.Checksum, 16)
	assert.Nil(t, res.Warnings)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, []string{"id", "nome"}, store.insertCols)
	assert.Equal(t, []any{456.0, "Maria"}, store.inserted[0])
}

func TestSyncTable_UsesLiveColumnSpelling(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = []schema.LiveColumn{
		{Name: "ID", DeclaredType: "NUMBER(5)"},
		{Name: "Nome", DeclaredType: "VARCHAR2(10)"},
	}
	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00001Ana       \n")

	res := New(store, Config{Tables: KeyOnly("ID")}).SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, []string{"ID", "Nome"}, store.insertCols)
}

func TestSyncTable_NoNewRecordsSkipsInsert(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = idNomeLive()
	store.rows["tb"] = existingIDs("123.00", "456")

	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00123Joao      \n00456Maria     \n     Nobody    \n")
	res := New(store, Config{Tables: KeyOnly("id")}).SyncTable(context.Background(), "tb", dataPath, layoutPath)

	require.True(t, res.OK(), res.Message)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 0, res.NewRecordCount)
	assert.Equal(t, 1, res.SkippedNullKey)
	assert.Equal(t, "no new records", res.Message)
	assert.Zero(t, store.insertCalls)
}

func TestSyncTable_BlankLinesAreNullKeys(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = idNomeLive()
	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "\n   \n")

	res := New(store, Config{Tables: KeyOnly("id")}).SyncTable(context.Background(), "tb", dataPath, layoutPath)

	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 2, res.Decoded)
	assert.Equal(t, 2, res.SkippedNullKey)
	assert.Equal(t, 0, res.NewRecordCount)
	assert.Zero(t, store.insertCalls)
}

func TestSyncTable_ExtraColumnsAreWarnings(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = append(idNomeLive(), schema.LiveColumn{Name: "extra", DeclaredType: "text", Position: 3})
	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00001Ana       \n")

	res := New(store, Config{Tables: KeyOnly("id")}).SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.True(t, res.OK(), res.Message)
	require.NotNil(t, res.Warnings)
	assert.Equal(t, []string{"extra"}, res.Warnings.Extra)
	assert.Empty(t, res.Warnings.Missing)
	assert.Empty(t, res.Warnings.TypeMismatches)
}

func TestSyncTable_Failures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	cases := []struct {
		name      string
		layout    string
		data      string
		key       string
		setup     func(*fakeStore)
		strict    bool
		wantKind  error
		wantState State
	}{
		{
			name:      "missing column",
			setup:     func(f *fakeStore) { f.live["tb"] = idNomeLive()[:1] },
			wantKind:  ErrSchemaMismatch,
			wantState: StateLayoutParsed,
		},
		{
			name:      "table does not exist",
			setup:     func(f *fakeStore) {},
			wantKind:  ErrSchemaMismatch,
			wantState: StateLayoutParsed,
		},
		{
			name:      "bad layout",
			layout:    "Nome,Tipo\nid,NUMBER\n",
			wantKind:  ErrLayoutParse,
			wantState: StateStart,
		},
		{
			name:      "unknown primary key",
			key:       "co_procedimento",
			wantKind:  ErrConfig,
			wantState: StateStart,
		},
		{
			name:      "no records",
			data:      "\uFEFF", // byte order mark only: no lines at all
			wantKind:  ErrNoRecords,
			wantState: StateSchemaChecked,
		},
		{
			name:      "introspection",
			setup:     func(f *fakeStore) { f.columnsErr = boom },
			wantKind:  ErrIntrospect,
			wantState: StateLayoutParsed,
		},
		{
			name:      "snapshot",
			setup:     func(f *fakeStore) { f.live["tb"] = idNomeLive(); f.readErr = boom },
			wantKind:  ErrSnapshot,
			wantState: StateDataDecoded,
		},
		{
			name:      "insert",
			setup:     func(f *fakeStore) { f.live["tb"] = idNomeLive(); f.insertErr = boom },
			wantKind:  ErrInsert,
			wantState: StateNoveltyComputed,
		},
		{
			name:      "strict validation",
			data:      "00001Ana\n",
			strict:    true,
			wantKind:  ErrValidation,
			wantState: StateSchemaChecked,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			store.live["tb"] = idNomeLive()
			if tc.setup != nil {
				store.live = map[string][]schema.LiveColumn{}
				tc.setup(store)
			}
			layoutText := tc.layout
			if layoutText == "" {
				layoutText = idNomeLayout
			}
			data := tc.data
			if data == "" {
				data = "00001Ana       \n"
			}
			key := tc.key
			if key == "" {
				key = "id"
			}
			dataPath, layoutPath := writePair(t, t.TempDir(), "tb", layoutText, data)

			res := New(store, Config{Tables: KeyOnly(key), Strict: tc.strict}).
				SyncTable(context.Background(), "tb", dataPath, layoutPath)

			require.Equal(t, StatusError, res.Status)
			assert.Equal(t, StateError, res.State)
			assert.NotEmpty(t, res.Message)
			require.ErrorIs(t, res.Err, tc.wantKind)

			var se *StepError
			require.ErrorAs(t, res.Err, &se)
			assert.Equal(t, "tb", se.Table)
			assert.Equal(t, tc.wantState, se.State)
		})
	}
}

func TestSyncTable_StrictOffCorrectsShortLines(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = idNomeLive()
	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00001Ana\n")

	res := New(store, Config{Tables: KeyOnly("id")}).SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 1, res.Adjusted)
	assert.Equal(t, []any{1.0, "Ana"}, store.inserted[0])
}

func TestSyncTable_InvalidTableNameAndMissingKeyConfig(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := t.TempDir()
	dataPath, layoutPath := writePair(t, dir, "tb", idNomeLayout, "00001Ana       \n")

	res := New(store, Config{Tables: KeyOnly("id")}).SyncTable(context.Background(), "tb; drop", dataPath, layoutPath)
	require.ErrorIs(t, res.Err, ErrConfig)

	res = New(store, Config{}).SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.ErrorIs(t, res.Err, ErrConfig)
	assert.Contains(t, res.Message, "no primary key configured")
}

type perTable map[string][2]string

func (p perTable) PrimaryKey(t string) string { return p[t][0] }
func (p perTable) Encoding(t string) string   { return p[t][1] }

func TestSyncTable_PerTableEncoding(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["tb"] = idNomeLive()
	// 0xE3 decodes as windows-1252 by default; the table asks for latin1.
	dataPath, layoutPath := writePair(t, t.TempDir(), "tb", idNomeLayout, "00001Jo\xe3o      \n")

	res := New(store, Config{Tables: perTable{"tb": {"id", "latin1"}}}).
		SyncTable(context.Background(), "tb", dataPath, layoutPath)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "iso-8859-1", res.Encoding)
	assert.Equal(t, []any{1.0, "João"}, store.inserted[0])
}

func TestSyncBatch_ContinuesPastFailuresAndSortsResults(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.live["alpha"] = idNomeLive()
	store.live["beta"] = idNomeLive()[:1] // nome missing
	store.live["gamma"] = idNomeLive()

	dir := t.TempDir()
	files := map[string]Files{}
	for _, table := range []string{"gamma", "beta", "alpha"} {
		writePair(t, dir, table, idNomeLayout, "00001Ana       \n")
		files[table] = Files{Data: table + ".txt", Layout: table + "_layout.txt"}
	}

	o := New(store, Config{Tables: KeyOnly("id"), Workers: 3})
	results := o.SyncBatch(context.Background(), files, dir)

	require.Len(t, results, 3)
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Table
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, strings.Contains(results[1].Message, "missing columns: nome"), results[1].Message)
	assert.True(t, results[2].OK())
	assert.False(t, AllOK(results))
	assert.False(t, AllOK(nil))
	assert.True(t, AllOK(results[:1]))
}
