package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// VerseRow is one verse of a translation, as stored.
type VerseRow struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Translation is a named Bible edition.
type Translation struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// VerseRange returns the verses [start, end] of the given translation, book,
// and chapter, ordered by verse number ascending. An empty slice means the
// reference resolved to nothing in this translation.
func (db *DB) VerseRange(ctx context.Context, code, bookName string, chapter, start, end int) ([]VerseRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT vt.number, vt.text
		FROM verse_translations vt
		JOIN translations t ON t.id = vt.translation_id
		JOIN chapters c ON c.id = vt.chapter_id
		JOIN books b ON b.id = c.book_id
		WHERE t.code = $1 AND b.name = $2 AND c.number = $3
		  AND vt.number BETWEEN $4 AND $5
		ORDER BY vt.number ASC`,
		code, bookName, chapter, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verses []VerseRow
	for rows.Next() {
		var v VerseRow
		if err := rows.Scan(&v.Number, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

// Verse returns a single verse. Empty text and found=false mean the verse
// does not exist in this translation.
func (db *DB) Verse(ctx context.Context, code, bookName string, chapter, verse int) (string, bool, error) {
	verses, err := db.VerseRange(ctx, code, bookName, chapter, verse, verse)
	if err != nil {
		return "", false, err
	}
	if len(verses) == 0 {
		return "", false, nil
	}
	return verses[0].Text, true, nil
}

// ListTranslations returns all installed translations ordered by code.
func (db *DB) ListTranslations(ctx context.Context) ([]Translation, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, code, name FROM translations ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Translation
	for rows.Next() {
		var t Translation
		if err := rows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTranslation inserts a translation if missing and returns its id.
func (db *DB) UpsertTranslation(ctx context.Context, code, name string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO translations (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		code, name).Scan(&id)
	return id, err
}

// UpsertBook inserts a canon book if missing and returns its id.
func (db *DB) UpsertBook(ctx context.Context, number int, name, shortName, testament string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO books (number, name, short_name, testament)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (number) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		number, name, shortName, testament).Scan(&id)
	return id, err
}

// UpsertChapter inserts a chapter if missing and returns its id.
func (db *DB) UpsertChapter(ctx context.Context, bookID, number int) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO chapters (book_id, number) VALUES ($1, $2)
		ON CONFLICT (book_id, number) DO UPDATE SET number = EXCLUDED.number
		RETURNING id`,
		bookID, number).Scan(&id)
	return id, err
}

// ImportVerse is one verse staged for bulk insert.
type ImportVerse struct {
	ChapterID int
	Number    int
	Text      string
}

// InsertVerses bulk-inserts verses for one translation. Existing rows are
// left untouched so re-running an import is safe.
func (db *DB) InsertVerses(ctx context.Context, translationID int, verses []ImportVerse) (int64, error) {
	batch := &pgx.Batch{}
	for _, v := range verses {
		batch.Queue(`
			INSERT INTO verse_translations (translation_id, chapter_id, number, text)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (translation_id, chapter_id, number) DO NOTHING`,
			translationID, v.ChapterID, v.Number, v.Text)
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for range verses {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
