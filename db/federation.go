package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

// Remote Accounts queries
const (
	sqlInsertRemoteAccount      = `INSERT INTO remote_accounts(id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, moved_to_uri, also_known_as, last_fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteAccountByURI = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, moved_to_uri, also_known_as, last_fetched_at FROM remote_accounts WHERE actor_uri = ?`
	sqlSelectRemoteAccountById  = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, moved_to_uri, also_known_as, last_fetched_at FROM remote_accounts WHERE id = ?`
	sqlUpdateRemoteAccount      = `UPDATE remote_accounts SET display_name = ?, summary = ?, inbox_uri = ?, shared_inbox_uri = ?, outbox_uri = ?, followers_uri = ?, public_key_pem = ?, avatar_url = ?, moved_to_uri = ?, also_known_as = ?, last_fetched_at = ? WHERE actor_uri = ?`
	sqlDeleteRemoteAccount      = `DELETE FROM remote_accounts WHERE id = ?`
)

func (db *DB) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteAccount,
			acc.Id.String(),
			acc.Username,
			acc.Domain,
			acc.ActorURI,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.MovedToURI,
			marshalStrings(acc.AlsoKnownAs),
			acc.LastFetchedAt,
		)
		return err
	})
}

func (db *DB) ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount) {
	return scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountByURI, uri))
}

func (db *DB) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	return scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountById, id.String()))
}

func scanRemoteAccount(row *sql.Row) (error, *domain.RemoteAccount) {
	var acc domain.RemoteAccount
	var idStr, aka string
	err := row.Scan(
		&idStr,
		&acc.Username,
		&acc.Domain,
		&acc.ActorURI,
		&acc.DisplayName,
		&acc.Summary,
		&acc.InboxURI,
		&acc.SharedInboxURI,
		&acc.OutboxURI,
		&acc.FollowersURI,
		&acc.PublicKeyPem,
		&acc.AvatarURL,
		&acc.MovedToURI,
		&aka,
		&acc.LastFetchedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	acc.AlsoKnownAs = unmarshalStrings(aka)
	return nil, &acc
}

func (db *DB) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccount,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.MovedToURI,
			marshalStrings(acc.AlsoKnownAs),
			acc.LastFetchedAt,
			acc.ActorURI,
		)
		return err
	})
}

func (db *DB) DeleteRemoteAccount(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteRemoteAccount, id.String())
		return err
	})
}

// ReadActorByURI resolves a URI to the unified federation view, checking the
// local accounts table before the remote cache.
func (db *DB) ReadActorByURI(uri string, baseURL string) (error, *domain.Actor) {
	if username, ok := strings.CutPrefix(uri, baseURL+"/users/"); ok && !strings.Contains(username, "/") {
		err, acc := db.ReadAccByUsername(username)
		if err != nil {
			return err, nil
		}
		return nil, &domain.Actor{
			Id:           acc.Id,
			URI:          uri,
			Username:     acc.Username,
			InboxURI:     uri + "/inbox",
			FollowersURI: uri + "/followers",
			MovedToURI:   acc.MovedToURI,
			AlsoKnownAs:  acc.AlsoKnownAs,
		}
	}

	err, remote := db.ReadRemoteAccountByURI(uri)
	if err != nil {
		return err, nil
	}
	return nil, domain.ActorFromRemote(remote)
}

// Follow queries
const (
	sqlInsertFollow               = `INSERT INTO follows(id, account_id, target_account_id, uri, accepted, is_local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectFollowByURI          = `SELECT id, account_id, target_account_id, uri, accepted, is_local, created_at FROM follows WHERE uri = ?`
	sqlSelectFollowByAccountIds   = `SELECT id, account_id, target_account_id, uri, accepted, is_local, created_at FROM follows WHERE account_id = ? AND target_account_id = ?`
	sqlDeleteFollowByURI          = `DELETE FROM follows WHERE uri = ?`
	sqlAcceptFollowByURI          = `UPDATE follows SET accepted = 1 WHERE uri = ?`
	sqlDeleteFollowsByAccountId   = `DELETE FROM follows WHERE account_id = ? OR target_account_id = ?`
	sqlRepointFollows             = `UPDATE follows SET target_account_id = ? WHERE target_account_id = ?`
	sqlSelectFollowersOfAccount   = `SELECT follows.account_id FROM follows WHERE follows.target_account_id = ? AND follows.accepted = 1`
	sqlSelectFirstFollowerAccount = `SELECT accounts.id FROM follows
                                                            INNER JOIN accounts ON accounts.id = follows.account_id
                                                            WHERE follows.target_account_id = ? AND follows.accepted = 1
                                                            ORDER BY follows.created_at ASC LIMIT 1`
)

func (db *DB) CreateFollow(follow *domain.Follow) error {
	isLocal := 0
	if follow.IsLocal {
		isLocal = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id.String(),
			follow.AccountId.String(),
			follow.TargetAccountId.String(),
			follow.URI,
			follow.Accepted,
			isLocal,
			follow.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollowByURI, uri))
}

func (db *DB) ReadFollowByAccountIds(accountId uuid.UUID, targetId uuid.UUID) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollowByAccountIds, accountId.String(), targetId.String()))
}

func scanFollow(row *sql.Row) (error, *domain.Follow) {
	var follow domain.Follow
	var idStr, accountIdStr, targetIdStr string
	var isLocal int
	err := row.Scan(
		&idStr,
		&accountIdStr,
		&targetIdStr,
		&follow.URI,
		&follow.Accepted,
		&isLocal,
		&follow.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	follow.Id, _ = uuid.Parse(idStr)
	follow.AccountId, _ = uuid.Parse(accountIdStr)
	follow.TargetAccountId, _ = uuid.Parse(targetIdStr)
	follow.IsLocal = isLocal != 0
	return nil, &follow
}

func (db *DB) DeleteFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByURI, uri)
		return err
	})
}

func (db *DB) AcceptFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollowByURI, uri)
		return err
	})
}

func (db *DB) DeleteFollowsByRemoteAccountId(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowsByAccountId, id.String(), id.String())
		return err
	})
}

// RepointFollows moves every follow of oldTarget over to newTarget. Used by
// the move coordinator after a verified migration.
func (db *DB) RepointFollows(oldTarget uuid.UUID, newTarget uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRepointFollows, newTarget.String(), oldTarget.String())
		return err
	})
}

// ReadFirstFollowerAccountOf returns the oldest local account following the
// given remote account. Used to route shared-inbox traffic that carries no
// local addressee.
func (db *DB) ReadFirstFollowerAccountOf(remoteId uuid.UUID) (error, *domain.Account) {
	var idStr string
	err := db.db.QueryRow(sqlSelectFirstFollowerAccount, remoteId.String()).Scan(&idStr)
	if err != nil {
		return err, nil
	}
	accountId, err := uuid.Parse(idStr)
	if err != nil {
		return err, nil
	}
	return db.ReadAccById(accountId)
}

// ReadFollowersOfAccount returns the accepted followers of the given account
// as federation actors, remote rows joined in for their inbox endpoints.
func (db *DB) ReadFollowersOfAccount(accountId uuid.UUID) (error, *[]domain.Actor) {
	rows, err := db.db.Query(sqlSelectFollowersOfAccount, accountId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return err, nil
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return err, nil
	}

	var actors []domain.Actor
	for _, id := range ids {
		err, remote := db.ReadRemoteAccountById(id)
		if err != nil || remote == nil {
			continue
		}
		actors = append(actors, *domain.ActorFromRemote(remote))
	}
	return nil, &actors
}

// Like queries
const (
	sqlInsertLike              = `INSERT INTO likes(id, account_id, note_id, uri, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectLikeByAccountNote = `SELECT id, account_id, note_id, uri, created_at FROM likes WHERE account_id = ? AND note_id = ?`
	sqlDeleteLikeByURI         = `DELETE FROM likes WHERE uri = ?`
)

func (db *DB) CreateLike(like *domain.Like) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertLike, like.Id.String(), like.AccountId.String(), like.NoteId.String(), like.URI, like.CreatedAt)
		return err
	})
}

func (db *DB) ReadLikeByAccountAndNote(accountId uuid.UUID, noteId uuid.UUID) (error, *domain.Like) {
	row := db.db.QueryRow(sqlSelectLikeByAccountNote, accountId.String(), noteId.String())
	var like domain.Like
	var idStr, accStr, noteStr string
	err := row.Scan(&idStr, &accStr, &noteStr, &like.URI, &like.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	like.Id, _ = uuid.Parse(idStr)
	like.AccountId, _ = uuid.Parse(accStr)
	like.NoteId, _ = uuid.Parse(noteStr)
	return nil, &like
}

func (db *DB) DeleteLikeByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteLikeByURI, uri)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotReacted
		}
		return nil
	})
}

// Vote queries
const (
	sqlInsertVote               = `INSERT INTO votes(id, account_id, note_id, choice, uri, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectVotesByAccountNote = `SELECT id, account_id, note_id, choice, uri, created_at FROM votes WHERE account_id = ? AND note_id = ?`
)

func (db *DB) CreateVote(vote *domain.Vote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertVote, vote.Id.String(), vote.AccountId.String(), vote.NoteId.String(), vote.Choice, vote.URI, vote.CreatedAt)
		return err
	})
}

func (db *DB) ReadVotesByAccountAndNote(accountId uuid.UUID, noteId uuid.UUID) (error, *[]domain.Vote) {
	rows, err := db.db.Query(sqlSelectVotesByAccountNote, accountId.String(), noteId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var vote domain.Vote
		var idStr, accStr, noteStr string
		if err := rows.Scan(&idStr, &accStr, &noteStr, &vote.Choice, &vote.URI, &vote.CreatedAt); err != nil {
			return err, &votes
		}
		vote.Id, _ = uuid.Parse(idStr)
		vote.AccountId, _ = uuid.Parse(accStr)
		vote.NoteId, _ = uuid.Parse(noteStr)
		votes = append(votes, vote)
	}
	if err = rows.Err(); err != nil {
		return err, &votes
	}
	return nil, &votes
}

// Activity queries
const (
	sqlInsertActivity            = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateActivity            = `UPDATE activities SET processed = ?, object_uri = ?, raw_json = ? WHERE id = ?`
	sqlSelectActivityByURI       = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at FROM activities WHERE activity_uri = ?`
	sqlSelectActivityByObjectURI = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at FROM activities WHERE object_uri = ?`
	sqlDeleteActivity            = `DELETE FROM activities WHERE id = ?`
)

func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(),
			activity.ActivityURI,
			activity.ActivityType,
			activity.ActorURI,
			activity.ObjectURI,
			activity.RawJSON,
			activity.Processed,
			activity.Local,
			activity.CreatedAt,
		)
		return err
	})
}

func (db *DB) UpdateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActivity,
			activity.Processed,
			activity.ObjectURI,
			activity.RawJSON,
			activity.Id.String(),
		)
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	return scanActivity(db.db.QueryRow(sqlSelectActivityByURI, uri))
}

func (db *DB) ReadActivityByObjectURI(uri string) (error, *domain.Activity) {
	return scanActivity(db.db.QueryRow(sqlSelectActivityByObjectURI, uri))
}

func scanActivity(row *sql.Row) (error, *domain.Activity) {
	var activity domain.Activity
	var idStr string
	err := row.Scan(
		&idStr,
		&activity.ActivityURI,
		&activity.ActivityType,
		&activity.ActorURI,
		&activity.ObjectURI,
		&activity.RawJSON,
		&activity.Processed,
		&activity.Local,
		&activity.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	activity.Id, _ = uuid.Parse(idStr)
	return nil, &activity
}

func (db *DB) DeleteActivity(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteActivity, id.String())
		return err
	})
}

// Delivery Queue queries
const (
	sqlInsertDeliveryQueue       = `INSERT INTO delivery_queue(id, from_username, inbox_uri, is_shared_inbox, activity_json, attempts, next_retry_at, latest_status, unrecoverable, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries   = `SELECT id, from_username, inbox_uri, is_shared_inbox, activity_json, attempts, next_retry_at, latest_status, latest_sent_at, unrecoverable, created_at FROM delivery_queue WHERE next_retry_at <= ? AND unrecoverable = 0 ORDER BY created_at ASC LIMIT ?`
	sqlUpdateDeliveryAttempt     = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ?, latest_status = ?, latest_sent_at = ? WHERE id = ?`
	sqlMarkDeliveryUnrecoverable = `UPDATE delivery_queue SET unrecoverable = 1, latest_status = ?, latest_sent_at = ? WHERE id = ?`
	sqlDeleteDelivery            = `DELETE FROM delivery_queue WHERE id = ?`
	sqlSelectRecentDeliveries    = `SELECT id, from_username, inbox_uri, is_shared_inbox, activity_json, attempts, next_retry_at, latest_status, latest_sent_at, unrecoverable, created_at FROM delivery_queue ORDER BY created_at DESC LIMIT ?`
)

func (db *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	isShared := 0
	if item.IsSharedInbox {
		isShared = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDeliveryQueue,
			item.Id.String(),
			item.FromUsername,
			item.InboxURI,
			isShared,
			item.ActivityJSON,
			item.Attempts,
			item.NextRetryAt,
			item.LatestStatus,
			0,
			item.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	return db.readDeliveries(sqlSelectPendingDeliveries, time.Now(), limit)
}

func (db *DB) ReadRecentDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	return db.readDeliveries(sqlSelectRecentDeliveries, limit)
}

func (db *DB) readDeliveries(query string, args ...interface{}) (error, *[]domain.DeliveryQueueItem) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem
	for rows.Next() {
		var item domain.DeliveryQueueItem
		var idStr string
		var isShared, unrecoverable int
		var sentAt sql.NullTime
		if err := rows.Scan(&idStr, &item.FromUsername, &item.InboxURI, &isShared, &item.ActivityJSON, &item.Attempts, &item.NextRetryAt, &item.LatestStatus, &sentAt, &unrecoverable, &item.CreatedAt); err != nil {
			return err, &items
		}
		item.Id, _ = uuid.Parse(idStr)
		item.IsSharedInbox = isShared != 0
		item.Unrecoverable = unrecoverable != 0
		if sentAt.Valid {
			t := sentAt.Time
			item.LatestSentAt = &t
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return err, &items
	}
	return nil, &items
}

func (db *DB) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time, status int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateDeliveryAttempt, attempts, nextRetry, status, time.Now(), id.String())
		return err
	})
}

// MarkDeliveryUnrecoverable records a permanent failure. The row is kept for
// observability but never picked up again.
func (db *DB) MarkDeliveryUnrecoverable(id uuid.UUID, status int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlMarkDeliveryUnrecoverable, status, time.Now(), id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteDelivery, id.String())
		return err
	})
}

// Relationship job queries
const (
	sqlInsertRelationshipJob         = `INSERT INTO relationship_jobs(id, from_uri, to_uri, silent, request_id, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingRelationshipJobs = `SELECT id, from_uri, to_uri, silent, request_id, attempts, next_retry_at, created_at FROM relationship_jobs WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateRelationshipJobAttempt  = `UPDATE relationship_jobs SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteRelationshipJob         = `DELETE FROM relationship_jobs WHERE id = ?`
)

// RelationshipJobRow is a persisted relationship fan-out job.
type RelationshipJobRow struct {
	Id          uuid.UUID
	Data        domain.RelationshipJobData
	Attempts    int
	NextRetryAt time.Time
	CreatedAt   time.Time
}

func (db *DB) EnqueueRelationshipJob(data domain.RelationshipJobData) error {
	silent := 0
	if data.Silent {
		silent = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRelationshipJob, uuid.New().String(), data.From, data.To, silent, data.RequestId, 0, time.Now(), time.Now())
		return err
	})
}

func (db *DB) ReadPendingRelationshipJobs(limit int) (error, *[]RelationshipJobRow) {
	rows, err := db.db.Query(sqlSelectPendingRelationshipJobs, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var jobs []RelationshipJobRow
	for rows.Next() {
		var job RelationshipJobRow
		var idStr string
		var silent int
		if err := rows.Scan(&idStr, &job.Data.From, &job.Data.To, &silent, &job.Data.RequestId, &job.Attempts, &job.NextRetryAt, &job.CreatedAt); err != nil {
			return err, &jobs
		}
		job.Id, _ = uuid.Parse(idStr)
		job.Data.Silent = silent != 0
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return err, &jobs
	}
	return nil, &jobs
}

func (db *DB) UpdateRelationshipJobAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRelationshipJobAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteRelationshipJob(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteRelationshipJob, id.String())
		return err
	})
}

// Move record queries
const (
	sqlInsertMoveRecord      = `INSERT INTO move_records(id, src_uri, dst_uri, created_at) VALUES (?, ?, ?, ?)`
	sqlSelectMoveRecordBySrc = `SELECT id, src_uri, dst_uri, created_at FROM move_records WHERE src_uri = ?`
)

func (db *DB) CreateMoveRecord(record *domain.MoveRecord) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertMoveRecord, record.Id.String(), record.SrcURI, record.DstURI, record.CreatedAt)
		return err
	})
}

func (db *DB) ReadMoveRecordBySrc(srcURI string) (error, *domain.MoveRecord) {
	row := db.db.QueryRow(sqlSelectMoveRecordBySrc, srcURI)
	var record domain.MoveRecord
	var idStr string
	err := row.Scan(&idStr, &record.SrcURI, &record.DstURI, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	record.Id, _ = uuid.Parse(idStr)
	return nil, &record
}
