// Package sqlitestore implements recordstore.RecordStore on top of
// SQLite, in the teacher codebase's own idiom: database/sql with a
// modernc.org/sqlite driver, a DSN carrying _pragma options, and
// CREATE TABLE IF NOT EXISTS migrations run at open time.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

// Store implements recordstore.RecordStore using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS records (
		thread_id           TEXT NOT NULL,
		record_id           TEXT NOT NULL,
		checkpoint          BLOB,
		metadata            BLOB,
		is_split            INTEGER NOT NULL DEFAULT 0,
		split_metadata      TEXT,
		message_split_data  TEXT,
		content_split_data  TEXT,
		PRIMARY KEY (thread_id, record_id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_thread ON records(thread_id, record_id);
	`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, threadID, recordID string) (*model.StoredRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, record_id, checkpoint, metadata, is_split, split_metadata, message_split_data, content_split_data
		 FROM records WHERE thread_id = ? AND record_id = ?`, threadID, recordID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, record *model.StoredRecord) error {
	var splitMeta, msgData, contentData any
	var err error
	if record.SplitMetadata != nil {
		if splitMeta, err = marshalNullable(record.SplitMetadata); err != nil {
			return err
		}
	}
	if record.MessageSplitData != nil {
		if msgData, err = marshalNullable(record.MessageSplitData); err != nil {
			return err
		}
	}
	if record.ContentSplitData != nil {
		if contentData, err = marshalNullable(record.ContentSplitData); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (thread_id, record_id, checkpoint, metadata, is_split, split_metadata, message_split_data, content_split_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id, record_id) DO UPDATE SET
			checkpoint = excluded.checkpoint,
			metadata = excluded.metadata,
			is_split = excluded.is_split,
			split_metadata = excluded.split_metadata,
			message_split_data = excluded.message_split_data,
			content_split_data = excluded.content_split_data`,
		record.ThreadID, record.RecordID, record.Checkpoint, record.Metadata, record.IsSplit,
		splitMeta, msgData, contentData)
	return err
}

func (s *Store) Delete(ctx context.Context, threadID, recordID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE thread_id = ? AND record_id = ?`, threadID, recordID)
	return err
}

func (s *Store) QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*model.StoredRecord, error) {
	var rows *sql.Rows
	var err error
	if keyPrefix == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT thread_id, record_id, checkpoint, metadata, is_split, split_metadata, message_split_data, content_split_data
			 FROM records WHERE thread_id = ? ORDER BY record_id`, threadID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT thread_id, record_id, checkpoint, metadata, is_split, split_metadata, message_split_data, content_split_data
			 FROM records WHERE thread_id = ? AND record_id >= ? AND record_id < ? ORDER BY record_id`,
			threadID, keyPrefix, prefixUpperBound(keyPrefix))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// prefixUpperBound returns the smallest string greater than every
// string with the given prefix, for use as an exclusive upper bound in
// a lexicographic range scan.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return string(b) + "\xff"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.StoredRecord, error) {
	var rec model.StoredRecord
	var splitMeta, msgData, contentData sql.NullString
	if err := row.Scan(&rec.ThreadID, &rec.RecordID, &rec.Checkpoint, &rec.Metadata, &rec.IsSplit,
		&splitMeta, &msgData, &contentData); err != nil {
		return nil, err
	}
	if splitMeta.Valid {
		var sm model.SplitMetadata
		if err := json.Unmarshal([]byte(splitMeta.String), &sm); err != nil {
			return nil, fmt.Errorf("decode split_metadata: %w", err)
		}
		rec.SplitMetadata = &sm
	}
	if msgData.Valid {
		var md model.MessageSplitData
		if err := json.Unmarshal([]byte(msgData.String), &md); err != nil {
			return nil, fmt.Errorf("decode message_split_data: %w", err)
		}
		rec.MessageSplitData = &md
	}
	if contentData.Valid {
		var cd model.ContentSplitData
		if err := json.Unmarshal([]byte(contentData.String), &cd); err != nil {
			return nil, fmt.Errorf("decode content_split_data: %w", err)
		}
		rec.ContentSplitData = &cd
	}
	return &rec, nil
}

func marshalNullable(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}
