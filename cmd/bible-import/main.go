// Command bible-import loads Bible translation dumps into the translation
// store. Each translation lives in a directory named after its code and
// carries a SQLite-dialect dump, e.g. NIV/NIV_bible.sql with INSERT rows
// over (book_id, book, chapter, verse, text). The dump is staged through an
// in-memory SQLite database, then upserted into Postgres in canonical
// order. Re-running an import is safe: existing verses are left untouched.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/database"
)

func main() {
	var (
		dbURL     = flag.String("db", os.Getenv("DATABASE_URL"), "Postgres connection URL")
		dir       = flag.String("dir", "data/bibles", "directory of translation dumps")
		codesFlag = flag.String("translations", "", "comma-separated translation codes (default: all subdirectories)")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	if *dbURL == "" {
		log.Fatal().Msg("database URL required (-db or DATABASE_URL)")
	}

	codes, err := resolveCodes(*dir, *codesFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list translations")
	}
	if len(codes) == 0 {
		log.Fatal().Str("dir", *dir).Msg("no translation directories found")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, *dbURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	for _, code := range codes {
		start := time.Now()
		path := filepath.Join(*dir, code, code+"_bible.sql")
		n, err := importTranslation(ctx, db, code, path, log)
		if err != nil {
			log.Fatal().Err(err).Str("translation", code).Msg("import failed")
		}
		log.Info().
			Str("translation", code).
			Int64("verses_inserted", n).
			Dur("elapsed", time.Since(start)).
			Msg("translation imported")
	}
}

// resolveCodes returns the requested translation codes, or every
// subdirectory of dir when none are requested.
func resolveCodes(dir, flagValue string) ([]string, error) {
	if flagValue != "" {
		var codes []string
		for _, c := range strings.Split(flagValue, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, strings.ToUpper(c))
			}
		}
		return codes, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, e := range entries {
		if e.IsDir() {
			codes = append(codes, e.Name())
		}
	}
	return codes, nil
}

// stagedVerse is one row read back from the staging database.
type stagedVerse struct {
	BookID  int
	Book    string
	Chapter int
	Verse   int
	Text    string
}

// importTranslation stages one dump in memory and writes it to Postgres.
func importTranslation(ctx context.Context, db *database.DB, code, path string, log zerolog.Logger) (int64, error) {
	verses, err := stageDump(path)
	if err != nil {
		return 0, err
	}
	log.Info().Str("translation", code).Int("verses", len(verses)).Msg("dump staged")

	translationID, err := db.UpsertTranslation(ctx, code, "")
	if err != nil {
		return 0, fmt.Errorf("upsert translation %s: %w", code, err)
	}

	// Rows arrive ordered by book, chapter, verse; flush one chapter at a
	// time so each batch stays small.
	var (
		inserted  int64
		bookIDs   = make(map[int]int) // canon number -> books.id
		chapterID int
		curBook   = -1
		curChap   = -1
		batch     []database.ImportVerse
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := db.InsertVerses(ctx, translationID, batch)
		inserted += n
		batch = batch[:0]
		return err
	}

	for _, v := range verses {
		canon, ok := bible.BookByNumber(v.BookID)
		if !ok {
			log.Warn().Int("book_id", v.BookID).Str("book", v.Book).Msg("skipping verse outside the 66-book canon")
			continue
		}

		if v.BookID != curBook {
			if err := flush(); err != nil {
				return inserted, err
			}
			id, ok := bookIDs[canon.Number]
			if !ok {
				id, err = db.UpsertBook(ctx, canon.Number, canon.Name, canon.ShortName, canon.Testament)
				if err != nil {
					return inserted, fmt.Errorf("upsert book %s: %w", canon.Name, err)
				}
				bookIDs[canon.Number] = id
			}
			curBook, curChap = v.BookID, -1
		}

		if v.Chapter != curChap {
			if err := flush(); err != nil {
				return inserted, err
			}
			chapterID, err = db.UpsertChapter(ctx, bookIDs[canon.Number], v.Chapter)
			if err != nil {
				return inserted, fmt.Errorf("upsert %s %d: %w", canon.Name, v.Chapter, err)
			}
			curChap = v.Chapter
		}

		batch = append(batch, database.ImportVerse{
			ChapterID: chapterID,
			Number:    v.Verse,
			Text:      v.Text,
		})
	}
	if err := flush(); err != nil {
		return inserted, err
	}

	return inserted, nil
}

// stageDump executes the SQLite dump into an in-memory database and reads
// the verses back in canonical order. Staging through SQLite keeps the
// dump's own dialect quirks out of the Postgres path.
func stageDump(path string) ([]stagedVerse, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	staging, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open staging database: %w", err)
	}
	defer staging.Close()

	// Some dumps carry their own CREATE TABLE, some are INSERTs only.
	if _, err := staging.Exec(string(script)); err != nil {
		if !strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("execute dump %s: %w", filepath.Base(path), err)
		}
		if _, err := staging.Exec(`
			CREATE TABLE bible (
				book_id INTEGER,
				book TEXT,
				chapter INTEGER,
				verse INTEGER,
				text TEXT
			)`); err != nil {
			return nil, fmt.Errorf("create staging table: %w", err)
		}
		if _, err := staging.Exec(string(script)); err != nil {
			return nil, fmt.Errorf("execute dump %s: %w", filepath.Base(path), err)
		}
	}

	rows, err := staging.Query(`
		SELECT book_id, book, chapter, verse, text
		FROM bible
		ORDER BY book_id, chapter, verse`)
	if err != nil {
		return nil, fmt.Errorf("read staging table: %w", err)
	}
	defer rows.Close()

	var verses []stagedVerse
	for rows.Next() {
		var v stagedVerse
		if err := rows.Scan(&v.BookID, &v.Book, &v.Chapter, &v.Verse, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}
