package db

import (
	"database/sql"
	"log"
)

// SQL for federation tables
const (
	// Follow relationships table
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		accepted INTEGER DEFAULT 0,
		is_local INTEGER DEFAULT 0
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_account_id ON follows(account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_target_account_id ON follows(target_account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	// Remote accounts cache table
	sqlCreateRemoteAccountsTable = `CREATE TABLE IF NOT EXISTS remote_accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT DEFAULT '',
		outbox_uri TEXT,
		followers_uri TEXT DEFAULT '',
		public_key_pem TEXT NOT NULL,
		avatar_url TEXT,
		moved_to_uri TEXT DEFAULT '',
		also_known_as TEXT DEFAULT '[]',
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateRemoteAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_actor_uri ON remote_accounts(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_domain ON remote_accounts(domain);
	`

	// Activities log table (for deduplication & debugging)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		local INTEGER DEFAULT 0
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_object_uri ON activities(object_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_processed ON activities(processed);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	// Likes/favorites table
	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		note_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, note_id)
	)`

	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_note_id ON likes(note_id);
		CREATE INDEX IF NOT EXISTS idx_likes_account_id ON likes(account_id);
	`

	// Poll votes table, one row per (voter, note, choice)
	sqlCreateVotesTable = `CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		note_id TEXT NOT NULL,
		choice TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, note_id, choice)
	)`

	sqlCreateVotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_votes_note_id ON votes(note_id);
		CREATE INDEX IF NOT EXISTS idx_votes_account_id ON votes(account_id);
	`

	// Delivery queue table
	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		from_username TEXT NOT NULL,
		inbox_uri TEXT NOT NULL,
		is_shared_inbox INTEGER DEFAULT 0,
		activity_json TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		latest_status INTEGER DEFAULT 0,
		latest_sent_at TIMESTAMP,
		unrecoverable INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_unrecoverable ON delivery_queue(unrecoverable);
	`

	// Relationship fan-out jobs (follow/block state changes)
	sqlCreateRelationshipJobsTable = `CREATE TABLE IF NOT EXISTS relationship_jobs (
		id TEXT NOT NULL PRIMARY KEY,
		from_uri TEXT NOT NULL,
		to_uri TEXT NOT NULL,
		silent INTEGER DEFAULT 0,
		request_id TEXT DEFAULT '',
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRelationshipJobsIndices = `
		CREATE INDEX IF NOT EXISTS idx_relationship_jobs_next_retry ON relationship_jobs(next_retry_at);
	`

	// Completed account migrations
	sqlCreateMoveRecordsTable = `CREATE TABLE IF NOT EXISTS move_records (
		id TEXT NOT NULL PRIMARY KEY,
		src_uri TEXT NOT NULL,
		dst_uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateMoveRecordsIndices = `
		CREATE INDEX IF NOT EXISTS idx_move_records_src_uri ON move_records(src_uri);
	`

	sqlCreateNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_notes_user_id ON notes(user_id);
		CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_notes_object_uri ON notes(object_uri);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		// Create new tables
		if err := db.createTableIfNotExists(tx, sqlCreateFollowsTable, "follows"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateRemoteAccountsTable, "remote_accounts"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateActivitiesTable, "activities"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateLikesTable, "likes"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateVotesTable, "votes"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateDeliveryQueueTable, "delivery_queue"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateRelationshipJobsTable, "relationship_jobs"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateMoveRecordsTable, "move_records"); err != nil {
			return err
		}

		// Create indices
		for name, stmt := range map[string]string{
			"follows":           sqlCreateFollowsIndices,
			"remote_accounts":   sqlCreateRemoteAccountsIndices,
			"activities":        sqlCreateActivitiesIndices,
			"likes":             sqlCreateLikesIndices,
			"votes":             sqlCreateVotesIndices,
			"delivery_queue":    sqlCreateDeliveryQueueIndices,
			"relationship_jobs": sqlCreateRelationshipJobsIndices,
			"move_records":      sqlCreateMoveRecordsIndices,
			"notes":             sqlCreateNotesIndices,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				log.Printf("Warning: Failed to create %s indices: %v", name, err)
			}
		}

		// Extend existing tables (ignore errors if columns already exist)
		db.extendExistingTables(tx)

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	log.Printf("Table %s created or already exists", tableName)
	return nil
}

func (db *DB) extendExistingTables(tx *sql.Tx) {
	// Try to add columns that post-date the base schema (ignore errors if they exist)
	tx.Exec("ALTER TABLE accounts ADD COLUMN display_name TEXT")
	tx.Exec("ALTER TABLE accounts ADD COLUMN summary TEXT")
	tx.Exec("ALTER TABLE accounts ADD COLUMN moved_to_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE accounts ADD COLUMN also_known_as TEXT DEFAULT '[]'")

	tx.Exec("ALTER TABLE notes ADD COLUMN edited_at TIMESTAMP")
	tx.Exec("ALTER TABLE notes ADD COLUMN visibility TEXT DEFAULT 'public'")
	tx.Exec("ALTER TABLE notes ADD COLUMN in_reply_to_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE notes ADD COLUMN object_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE notes ADD COLUMN poll_choices TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE notes ADD COLUMN poll_votes TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE notes ADD COLUMN poll_multiple INTEGER DEFAULT 0")

	tx.Exec("ALTER TABLE remote_accounts ADD COLUMN shared_inbox_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE remote_accounts ADD COLUMN followers_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE remote_accounts ADD COLUMN moved_to_uri TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE remote_accounts ADD COLUMN also_known_as TEXT DEFAULT '[]'")

	log.Println("Extended existing tables with new columns")
}

// RunFederationMigrations runs federation-specific migrations
func (db *DB) RunFederationMigrations() error {
	log.Println("Running federation migrations...")
	return db.RunMigrations()
}
