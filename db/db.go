package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/ssh"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	//Accounts
	sqlCreateUserTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        username varchar(100) UNIQUE NOT NULL,
                        publickey varchar(1000) UNIQUE,
                        created_at timestamp default current_timestamp,
                        first_time_login int default 1,
                        web_public_key text,
                        web_private_key text,
                        display_name text,
                        summary text,
                        moved_to_uri text DEFAULT '',
                        also_known_as text DEFAULT '[]'
                        )`
	sqlInsertUser            = `INSERT INTO accounts(id, username, publickey, web_public_key, web_private_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlUpdateLoginUser       = `UPDATE accounts SET first_time_login = 0, username = ? WHERE publickey = ?`
	sqlUpdateLoginUserById   = `UPDATE accounts SET first_time_login = 0, username = ? WHERE id = ?`
	sqlUpdateAccountAliases  = `UPDATE accounts SET moved_to_uri = ?, also_known_as = ? WHERE id = ?`
	sqlSelectUserByPublicKey = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, moved_to_uri, also_known_as FROM accounts WHERE publickey = ?`
	sqlSelectUserById        = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, moved_to_uri, also_known_as FROM accounts WHERE id = ?`
	sqlSelectUserByUsername  = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, moved_to_uri, also_known_as FROM accounts WHERE username = ?`

	//Notes
	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes(
                        id uuid NOT NULL PRIMARY KEY,
                        user_id uuid NOT NULL,
                        message varchar(1000),
                        created_at timestamp default current_timestamp,
                        edited_at timestamp,
                        object_uri text DEFAULT '',
                        in_reply_to_uri text DEFAULT '',
                        visibility text DEFAULT 'public',
                        poll_choices text DEFAULT '',
                        poll_votes text DEFAULT '',
                        poll_multiple int DEFAULT 0
                        )`
	sqlInsertNote = `INSERT INTO notes(id, user_id, message, created_at, object_uri, in_reply_to_uri, visibility, poll_choices, poll_votes, poll_multiple) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectNoteById = `SELECT notes.id, accounts.username, notes.message, notes.created_at, notes.edited_at, notes.object_uri, notes.in_reply_to_uri, notes.visibility, notes.poll_choices, notes.poll_votes, notes.poll_multiple FROM notes
                                                            INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE notes.id = ?`
	sqlSelectNoteByObjectURI = `SELECT notes.id, accounts.username, notes.message, notes.created_at, notes.edited_at, notes.object_uri, notes.in_reply_to_uri, notes.visibility, notes.poll_choices, notes.poll_votes, notes.poll_multiple FROM notes
                                                            INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE notes.object_uri = ?`
	sqlSelectNotesByUsername = `SELECT notes.id, accounts.username, notes.message, notes.created_at, notes.edited_at, notes.object_uri, notes.in_reply_to_uri, notes.visibility, notes.poll_choices, notes.poll_votes, notes.poll_multiple FROM notes
                                                            INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE accounts.username = ?
                                                            ORDER BY notes.created_at DESC`
	sqlSelectAllNotes = `SELECT notes.id, accounts.username, notes.message, notes.created_at, notes.edited_at, notes.object_uri, notes.in_reply_to_uri, notes.visibility, notes.poll_choices, notes.poll_votes, notes.poll_multiple FROM notes
                                                            INNER JOIN accounts ON accounts.id = notes.user_id
                                                            ORDER BY notes.created_at DESC`
	sqlSelectPublicNotesByUsername = `SELECT notes.id, accounts.username, notes.message, notes.created_at, notes.edited_at, notes.object_uri, notes.in_reply_to_uri, notes.visibility, notes.poll_choices, notes.poll_votes, notes.poll_multiple FROM notes
                                                            INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE accounts.username = ? AND notes.visibility = 'public'
                                                            ORDER BY notes.created_at DESC LIMIT ? OFFSET ?`
	sqlUpdatePollVotes   = `UPDATE notes SET poll_votes = ? WHERE id = ?`
	sqlUpdateNoteMessage = `UPDATE notes SET message = ?, edited_at = ? WHERE id = ?`
)

func GetDB() *DB {
	dbOnce.Do(func() {
		// Open database connection
		db, err := sql.Open("sqlite", util.ResolveFilePath("database.db"))
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		// Try to enable WAL2 mode, fall back to WAL if not supported
		var journalMode string
		err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			// WAL2 not supported, try regular WAL
			err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: Failed to enable WAL mode: %v", err)
			} else {
				log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// Optimize PRAGMAs for concurrent federation workload
		db.Exec("PRAGMA synchronous = NORMAL")
		db.Exec("PRAGMA cache_size = -64000")
		db.Exec("PRAGMA temp_store = MEMORY")
		db.Exec("PRAGMA busy_timeout = 5000")
		db.Exec("PRAGMA foreign_keys = ON")
		db.Exec("PRAGMA auto_vacuum = INCREMENTAL")

		log.Printf("Database initialized with connection pooling (max 25 connections)")

		dbInstance = &DB{db: db}

		// Run initial schema setup
		err2 := dbInstance.CreateDB()
		if err2 != nil {
			panic(err2)
		}
	})

	return dbInstance
}

// CreateDB creates the database.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateUserTable); err != nil {
			return err
		}
		if _, err := tx.Exec(sqlCreateNotesTable); err != nil {
			return err
		}
		return nil
	})
}

func (db *DB) CreateAccount(s ssh.Session, username string) (error, bool) {
	err, found := db.ReadAccBySession(s)
	if err != nil {
		log.Printf("No records for %s found, creating new user..", username)
	}

	if found != nil {
		return nil, true
	}

	keypair := util.GeneratePemKeypair()
	err2 := db.CreateAccByUsername(s, username, keypair)
	if err2 != nil {
		log.Println("Creating new user failed: ", err2)
		return err2, false
	}
	return nil, true
}

func (db *DB) CreateAccByUsername(s ssh.Session, username string, webKeyPair *util.RsaKeyPair) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertUser, uuid.New(), username, util.PkToHash(util.PublicKeyToString(s.PublicKey())), webKeyPair.Public, webKeyPair.Private, time.Now())
		return err
	})
}

func (db *DB) CreateNote(userId uuid.UUID, message string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNote, uuid.New(), userId, message, time.Now(), "", "", "public", "", "", 0)
		return err
	})
}

// CreateFederatedNote stores a note together with its ActivityPub addressing
// and, when present, its poll.
func (db *DB) CreateFederatedNote(note *domain.Note, userId uuid.UUID) error {
	choices := marshalStrings(note.PollChoices)
	votes := marshalInts(note.PollVotes)
	multiple := 0
	if note.PollMultiple {
		multiple = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNote, note.Id, userId, note.Message, note.CreatedAt, note.ObjectURI, note.InReplyToURI, note.Visibility, choices, votes, multiple)
		return err
	})
}

func (db *DB) UpdateLoginByPkHash(username string, pkHash string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateLoginUser, username, pkHash)
		return err
	})
}

func (db *DB) UpdateLoginById(username string, id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateLoginUserById, username, id)
		return err
	})
}

// UpdateAccountAliases records a local account's migration fields.
func (db *DB) UpdateAccountAliases(id uuid.UUID, movedTo string, alsoKnownAs []string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAccountAliases, movedTo, marshalStrings(alsoKnownAs), id.String())
		return err
	})
}

func (db *DB) ReadAccBySession(s ssh.Session) (error, *domain.Account) {
	publicKeyToString := util.PublicKeyToString(s.PublicKey())
	row := db.db.QueryRow(sqlSelectUserByPublicKey, util.PkToHash(publicKeyToString))
	return scanAccount(row)
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectUserById, id.String())
	return scanAccount(row)
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectUserByUsername, username)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (error, *domain.Account) {
	var acc domain.Account
	var aka string
	err := row.Scan(&acc.Id, &acc.Username, &acc.Publickey, &acc.CreatedAt, &acc.FirstTimeLogin, &acc.WebPublicKey, &acc.WebPrivateKey, &acc.MovedToURI, &aka)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.AlsoKnownAs = unmarshalStrings(aka)
	return nil, &acc
}

func (db *DB) ReadNoteId(id uuid.UUID) (error, *domain.Note) {
	row := db.db.QueryRow(sqlSelectNoteById, id.String())
	return scanNote(row)
}

// ReadNoteByObjectURI looks a note up by its ActivityPub object URI.
func (db *DB) ReadNoteByObjectURI(uri string) (error, *domain.Note) {
	row := db.db.QueryRow(sqlSelectNoteByObjectURI, uri)
	return scanNote(row)
}

func scanNote(row *sql.Row) (error, *domain.Note) {
	var note domain.Note
	var choices, votes string
	var multiple int
	var editedAt sql.NullTime
	err := row.Scan(&note.Id, &note.CreatedBy, &note.Message, &note.CreatedAt, &editedAt, &note.ObjectURI, &note.InReplyToURI, &note.Visibility, &choices, &votes, &multiple)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if editedAt.Valid {
		note.EditedAt = &editedAt.Time
	}
	note.PollChoices = unmarshalStrings(choices)
	note.PollVotes = unmarshalInts(votes)
	note.PollMultiple = multiple != 0
	return nil, &note
}

func (db *DB) ReadNotesByUsername(username string) (error, *[]domain.Note) {
	return db.readNotes(sqlSelectNotesByUsername, username)
}

// ReadPublicNotesByUsername pages through a user's public notes, newest
// first. Used by the outbox collection.
func (db *DB) ReadPublicNotesByUsername(username string, limit int, offset int) (error, *[]domain.Note) {
	return db.readNotes(sqlSelectPublicNotesByUsername, username, limit, offset)
}

func (db *DB) ReadAllNotes() (error, *[]domain.Note) {
	return db.readNotes(sqlSelectAllNotes)
}

func (db *DB) readNotes(query string, args ...interface{}) (error, *[]domain.Note) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var note domain.Note
		var choices, votes string
		var multiple int
		var editedAt sql.NullTime
		if err := rows.Scan(&note.Id, &note.CreatedBy, &note.Message, &note.CreatedAt, &editedAt, &note.ObjectURI, &note.InReplyToURI, &note.Visibility, &choices, &votes, &multiple); err != nil {
			return err, &notes
		}
		if editedAt.Valid {
			note.EditedAt = &editedAt.Time
		}
		note.PollChoices = unmarshalStrings(choices)
		note.PollVotes = unmarshalInts(votes)
		note.PollMultiple = multiple != 0
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return err, &notes
	}
	return nil, &notes
}

// UpdatePollVotes replaces the entire vote array of a note's poll in one
// transaction, so concurrent remote updates for the same note cannot
// interleave partial writes.
func (db *DB) UpdatePollVotes(noteId uuid.UUID, votes []int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePollVotes, marshalInts(votes), noteId.String())
		return err
	})
}

// UpdateNoteMessage replaces a note's content and stamps the edit time.
func (db *DB) UpdateNoteMessage(noteId uuid.UUID, message string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateNoteMessage, message, time.Now(), noteId.String())
		return err
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

func marshalStrings(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

func unmarshalStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil
	}
	return vals
}

func marshalInts(vals []int) string {
	if vals == nil {
		return "[]"
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

func unmarshalInts(raw string) []int {
	if raw == "" || raw == "[]" {
		return nil
	}
	var vals []int
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil
	}
	return vals
}
