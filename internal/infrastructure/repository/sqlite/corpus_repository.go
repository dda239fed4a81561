package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/textquality"
)

// Open opens the corpus database and applies the schema. The FTS index uses
// unicode61 with full diacritic removal so Latin transliteration variants
// match regardless of accent marks.
//
// Requires mattn/go-sqlite3 compiled with FTS5: build and test with
// -tags sqlite_fts5.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS chopai_units (
    id TEXT PRIMARY KEY,
    granth_name TEXT NOT NULL,
    prakran_name TEXT NOT NULL DEFAULT '',
    prakran_number INTEGER,
    prakran_confidence REAL NOT NULL DEFAULT 0,
    chopai_number TEXT NOT NULL DEFAULT '',
    prakran_chopai_index INTEGER,
    chopai_lines TEXT NOT NULL DEFAULT '[]',
    meaning_text TEXT NOT NULL DEFAULT '',
    language_script TEXT NOT NULL DEFAULT '',
    page_number INTEGER NOT NULL DEFAULT 0,
    pdf_path TEXT NOT NULL DEFAULT '',
    source_set TEXT NOT NULL DEFAULT '',
    normalized_text TEXT NOT NULL DEFAULT '',
    translit_hi_latn TEXT NOT NULL DEFAULT '',
    translit_gu_latn TEXT NOT NULL DEFAULT '',
    chunk_text TEXT NOT NULL DEFAULT '',
    chunk_type TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chopai_units_granth ON chopai_units (granth_name);
CREATE INDEX IF NOT EXISTS idx_chopai_units_page ON chopai_units (granth_name, page_number);
CREATE INDEX IF NOT EXISTS idx_chopai_units_source_set ON chopai_units (source_set);
CREATE VIRTUAL TABLE IF NOT EXISTS chopai_fts USING fts5(
    unit_id UNINDEXED,
    search_text,
    tokenize='unicode61 remove_diacritics 2'
);
`
	if _, err := db.Exec(schema); err != nil {
		if strings.Contains(err.Error(), "no such module: fts5") {
			return fmt.Errorf("apply corpus schema: %w (rebuild with -tags sqlite_fts5)", err)
		}
		return fmt.Errorf("apply corpus schema: %w", err)
	}
	return nil
}

// CorpusRepository implements the corpus read path plus the ingestion-side
// upsert used by the reindex worker.
type CorpusRepository struct {
	db *sql.DB
}

func NewCorpusRepository(db *sql.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

const unitColumns = `id, granth_name, prakran_name, prakran_number, prakran_confidence,
chopai_number, prakran_chopai_index, chopai_lines, meaning_text, language_script,
page_number, pdf_path, source_set, normalized_text, translit_hi_latn, translit_gu_latn,
chunk_text, chunk_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (domain.RetrievedUnit, error) {
	var unit domain.RetrievedUnit
	var prakranNumber, chopaiIndex sql.NullInt64
	var lines string
	if err := row.Scan(
		&unit.ID,
		&unit.GranthName,
		&unit.PrakranName,
		&prakranNumber,
		&unit.PrakranConfidence,
		&unit.ChopaiNumber,
		&chopaiIndex,
		&lines,
		&unit.MeaningText,
		&unit.LanguageScript,
		&unit.PageNumber,
		&unit.PDFPath,
		&unit.SourceSet,
		&unit.NormalizedText,
		&unit.TranslitHiLatn,
		&unit.TranslitGuLatn,
		&unit.ChunkText,
		&unit.ChunkType,
	); err != nil {
		return domain.RetrievedUnit{}, err
	}
	if prakranNumber.Valid {
		n := int(prakranNumber.Int64)
		unit.PrakranNumber = &n
	}
	if chopaiIndex.Valid {
		n := int(chopaiIndex.Int64)
		unit.PrakranChopaiIndex = &n
	}
	if lines != "" {
		if err := json.Unmarshal([]byte(lines), &unit.ChopaiLines); err != nil {
			return domain.RetrievedUnit{}, fmt.Errorf("decode chopai lines: %w", err)
		}
	}
	return unit, nil
}

func (r *CorpusRepository) FetchUnitsByIDs(ctx context.Context, ids []string) (map[string]domain.RetrievedUnit, error) {
	if len(ids) == 0 {
		return map[string]domain.RetrievedUnit{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM chopai_units WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch units: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.RetrievedUnit, len(ids))
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out[unit.ID] = unit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return out, nil
}

// SearchLexical runs a BM25-ranked full-text query. Query terms are joined
// with OR as quoted prefix terms so partial transliterations still match.
// SQLite reports better matches with lower (more negative) bm25 values;
// scores are mapped to relevance = 1/(1+max(raw,0)) so higher means better.
func (r *CorpusRepository) SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error) {
	match := buildMatchExpression(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	sqlText := `
SELECT ` + qualifiedUnitColumns("u") + `, bm25(chopai_fts) AS raw_score
FROM chopai_fts
JOIN chopai_units u ON u.id = chopai_fts.unit_id
WHERE chopai_fts MATCH ?`
	args := []any{match}

	if filter.Granth != "" {
		sqlText += ` AND u.granth_name = ?`
		args = append(args, filter.Granth)
	}
	if clause, clauseArgs, ok := prakranFilterClause("u", filter.Prakran); ok {
		sqlText += ` AND ` + clause
		args = append(args, clauseArgs...)
	}

	sqlText += ` ORDER BY raw_score ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievalResult
	for rows.Next() {
		var unit domain.RetrievedUnit
		var prakranNumber, chopaiIndex sql.NullInt64
		var lines string
		var raw float64
		if err := rows.Scan(
			&unit.ID, &unit.GranthName, &unit.PrakranName, &prakranNumber, &unit.PrakranConfidence,
			&unit.ChopaiNumber, &chopaiIndex, &lines, &unit.MeaningText, &unit.LanguageScript,
			&unit.PageNumber, &unit.PDFPath, &unit.SourceSet, &unit.NormalizedText,
			&unit.TranslitHiLatn, &unit.TranslitGuLatn, &unit.ChunkText, &unit.ChunkType,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		if prakranNumber.Valid {
			n := int(prakranNumber.Int64)
			unit.PrakranNumber = &n
		}
		if chopaiIndex.Valid {
			n := int(chopaiIndex.Int64)
			unit.PrakranChopaiIndex = &n
		}
		if lines != "" {
			if err := json.Unmarshal([]byte(lines), &unit.ChopaiLines); err != nil {
				return nil, fmt.Errorf("decode chopai lines: %w", err)
			}
		}

		if raw < 0 {
			raw = 0
		}
		out = append(out, domain.RetrievalResult{Unit: unit, Score: 1.0 / (1.0 + raw)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return out, nil
}

// LookupReference resolves exact structural references without full-text
// ranking. Section membership accepts the structured number plus the
// free-text page-marker forms the sources print section numbers in.
func (r *CorpusRepository) LookupReference(ctx context.Context, ref domain.ReferenceLookup) ([]domain.RetrievedUnit, error) {
	var conditions []string
	var args []any

	if ref.GranthName != "" {
		conditions = append(conditions, `granth_name = ?`)
		args = append(args, ref.GranthName)
	}
	if ref.ChopaiNumber != nil {
		n := strconv.Itoa(*ref.ChopaiNumber)
		conditions = append(conditions, `(chopai_number = ? OR prakran_chopai_index = ?)`)
		args = append(args, n, *ref.ChopaiNumber)
	}

	numbers := referenceNumbers(ref)
	if len(numbers) > 0 {
		var numberClauses []string
		for _, number := range numbers {
			n := strconv.Itoa(number)
			numberClauses = append(numberClauses,
				`prakran_number = ?`,
				`prakran_name LIKE ?`,
				`chunk_text LIKE ?`,
				`chunk_text LIKE ?`,
			)
			args = append(args, number, "%"+n+"%", "%-"+n+"-%", "% "+n+" %")
		}
		conditions = append(conditions, `(`+strings.Join(numberClauses, ` OR `)+`)`)
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	limit := ref.Limit
	if limit <= 0 {
		limit = 50
	}

	sqlText := `SELECT ` + unitColumns + ` FROM chopai_units WHERE ` +
		strings.Join(conditions, ` AND `) +
		` ORDER BY page_number ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("reference lookup: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference hit: %w", err)
		}
		out = append(out, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference hits: %w", err)
	}
	return out, nil
}

func (r *CorpusRepository) CountChopai(ctx context.Context, ref domain.ReferenceLookup) (int, error) {
	conditions := []string{`chunk_type = 'chopai'`}
	var args []any

	if ref.GranthName != "" {
		conditions = append(conditions, `granth_name = ?`)
		args = append(args, ref.GranthName)
	}
	numbers := referenceNumbers(ref)
	if len(numbers) > 0 {
		placeholders := strings.Repeat("?,", len(numbers))
		placeholders = placeholders[:len(placeholders)-1]
		conditions = append(conditions, `prakran_number IN (`+placeholders+`)`)
		for _, number := range numbers {
			args = append(args, number)
		}
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chopai_units WHERE `+strings.Join(conditions, ` AND `), args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count chopai: %w", err)
	}
	return count, nil
}

func (r *CorpusRepository) ListGranths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT granth_name FROM chopai_units ORDER BY granth_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list granths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan granth: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate granths: %w", err)
	}
	return out, nil
}

func (r *CorpusRepository) ListFilters(ctx context.Context) ([]string, []string, error) {
	granths, err := r.ListGranths(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT prakran_name FROM chopai_units
WHERE prakran_name != ''
ORDER BY prakran_name ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("list prakrans: %w", err)
	}
	defer rows.Close()

	var prakrans []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, nil, fmt.Errorf("scan prakran: %w", err)
		}
		prakrans = append(prakrans, name)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate prakrans: %w", err)
	}
	return granths, prakrans, nil
}

// NeighborContext returns short displayable snippets from the pages directly
// before and after the unit within the same source document.
func (r *CorpusRepository) NeighborContext(ctx context.Context, unit domain.RetrievedUnit) (string, string, error) {
	if unit.PDFPath == "" || unit.PageNumber <= 0 {
		return "", "", nil
	}
	prev, err := r.pageSnippet(ctx, unit.PDFPath, unit.PageNumber-1)
	if err != nil {
		return "", "", err
	}
	next, err := r.pageSnippet(ctx, unit.PDFPath, unit.PageNumber+1)
	if err != nil {
		return "", "", err
	}
	return prev, next, nil
}

func (r *CorpusRepository) pageSnippet(ctx context.Context, pdfPath string, page int) (string, error) {
	if page <= 0 {
		return "", nil
	}
	row := r.db.QueryRowContext(ctx, `
SELECT chunk_text FROM chopai_units
WHERE pdf_path = ? AND page_number = ?
ORDER BY id ASC LIMIT 1`, pdfPath, page)

	var text string
	if err := row.Scan(&text); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("page snippet: %w", err)
	}
	return textquality.SafeDisplayText(snippet(text, 280), ""), nil
}

func (r *CorpusRepository) ListUnitsBySourceSet(ctx context.Context, sourceSet string) ([]domain.RetrievedUnit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM chopai_units WHERE source_set = ? ORDER BY page_number ASC, id ASC`,
		sourceSet)
	if err != nil {
		return nil, fmt.Errorf("list units by source set: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source set unit: %w", err)
		}
		out = append(out, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source set units: %w", err)
	}
	return out, nil
}

// UpsertUnits replaces the stored units and their FTS rows in one
// transaction. The search text concatenates every matching variant so one
// index serves all scripts.
func (r *CorpusRepository) UpsertUnits(ctx context.Context, units []domain.RetrievedUnit) error {
	if len(units) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	for _, unit := range units {
		lines, err := json.Marshal(unit.ChopaiLines)
		if err != nil {
			return fmt.Errorf("encode chopai lines: %w", err)
		}
		var prakranNumber any
		if unit.PrakranNumber != nil {
			prakranNumber = *unit.PrakranNumber
		}
		var chopaiIndex any
		if unit.PrakranChopaiIndex != nil {
			chopaiIndex = *unit.PrakranChopaiIndex
		}

		if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO chopai_units (`+unitColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			unit.ID, unit.GranthName, unit.PrakranName, prakranNumber, unit.PrakranConfidence,
			unit.ChopaiNumber, chopaiIndex, string(lines), unit.MeaningText, unit.LanguageScript,
			unit.PageNumber, unit.PDFPath, unit.SourceSet, unit.NormalizedText,
			unit.TranslitHiLatn, unit.TranslitGuLatn, unit.ChunkText, unit.ChunkType,
		); err != nil {
			return fmt.Errorf("upsert unit %s: %w", unit.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chopai_fts WHERE unit_id = ?`, unit.ID); err != nil {
			return fmt.Errorf("clear fts row %s: %w", unit.ID, err)
		}
		searchText := strings.Join([]string{
			unit.NormalizedText,
			unit.TranslitHiLatn,
			unit.TranslitGuLatn,
			unit.MeaningText,
			unit.GranthName,
			unit.PrakranName,
		}, "\n")
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chopai_fts (unit_id, search_text) VALUES (?, ?)`,
			unit.ID, searchText); err != nil {
			return fmt.Errorf("index fts row %s: %w", unit.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func qualifiedUnitColumns(alias string) string {
	cols := strings.Split(unitColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

// buildMatchExpression turns free text into an FTS5 query of OR-joined
// quoted prefix terms. Quoting keeps FTS operators in user text inert.
func buildMatchExpression(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms []string
	seen := map[string]struct{}{}
	for _, token := range tokens {
		token = strings.ToLower(token)
		if len(token) < 2 && !isDigitToken(token) {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, `"`+token+`"*`)
	}
	return strings.Join(terms, " OR ")
}

func isDigitToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func prakranFilterClause(alias, prakran string) (string, []any, bool) {
	prakran = strings.TrimSpace(prakran)
	if prakran == "" {
		return "", nil, false
	}
	if n, err := strconv.Atoi(prakran); err == nil {
		clause := `(` + alias + `.prakran_number = ? OR ` + alias + `.prakran_name LIKE ?)`
		return clause, []any{n, "%" + prakran + "%"}, true
	}
	return alias + `.prakran_name LIKE ?`, []any{"%" + prakran + "%"}, true
}

func referenceNumbers(ref domain.ReferenceLookup) []int {
	if ref.PrakranNumber != nil {
		return []int{*ref.PrakranNumber}
	}
	if ref.PrakranRange == nil {
		return nil
	}
	start, end := ref.PrakranRange[0], ref.PrakranRange[1]
	if end < start {
		start, end = end, start
	}
	if end-start > domain.DefaultPrakranMaxSpan {
		end = start + domain.DefaultPrakranMaxSpan
	}
	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

func snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	for limit > 0 && text[limit]&0xC0 == 0x80 {
		limit--
	}
	return strings.TrimSpace(text[:limit])
}
