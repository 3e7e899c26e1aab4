package federation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
)

var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

const maxDeliveryAttempts = 10

// StartDeliveryWorker starts a background worker pool that processes the
// delivery and relationship job queues
func StartDeliveryWorker(conf *util.AppConfig) {
	log.Printf("Starting ActivityPub delivery worker (%d workers)...", conf.Conf.DeliverWorkers)

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			processQueues(conf)
		}
	}()
}

// processQueues drains one batch of pending jobs through the worker pool.
// Jobs for different inboxes run concurrently; a batch finishes before the
// next tick picks up more.
func processQueues(conf *util.AppConfig) {
	database := db.GetDB()

	jobs := collectJobs(database)
	if len(jobs) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Processing %d pending jobs", len(jobs))

	workers := conf.Conf.DeliverWorkers
	ch := make(chan queuedJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				processJob(database, conf, job)
			}
		}()
	}
	for _, job := range jobs {
		ch <- job
	}
	close(ch)
	wg.Wait()
}

// queuedJob pairs a tagged job payload with its queue row identity.
type queuedJob struct {
	job      domain.Job
	delivery *domain.DeliveryQueueItem
	rel      *db.RelationshipJobRow
}

func collectJobs(database *db.DB) []queuedJob {
	var jobs []queuedJob

	err, items := database.ReadPendingDeliveries(50)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read delivery queue: %v", err)
	} else if items != nil {
		for i := range *items {
			item := &(*items)[i]
			jobs = append(jobs, queuedJob{
				job: domain.Job{
					Kind: domain.JobDeliver,
					Deliver: &domain.DeliverJobData{
						Actor:         item.FromUsername,
						Content:       item.ActivityJSON,
						TargetInbox:   item.InboxURI,
						IsSharedInbox: item.IsSharedInbox,
					},
				},
				delivery: item,
			})
		}
	}

	err, rels := database.ReadPendingRelationshipJobs(20)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read relationship queue: %v", err)
	} else if rels != nil {
		for i := range *rels {
			rel := &(*rels)[i]
			jobs = append(jobs, queuedJob{
				job: domain.Job{
					Kind:         domain.JobRelationship,
					Relationship: &rel.Data,
				},
				rel: rel,
			})
		}
	}

	return jobs
}

func processJob(database *db.DB, conf *util.AppConfig, qj queuedJob) {
	switch qj.job.Kind {
	case domain.JobDeliver:
		processDelivery(database, conf, qj.delivery)
	case domain.JobRelationship:
		processRelationship(database, conf, qj.rel)
	default:
		log.Printf("DeliveryWorker: Unknown job kind %q, dropping", qj.job.Kind)
	}
}

// DeliveryQueueStore is the slice of the database the retry policy writes
// through. Satisfied by *db.DB.
type DeliveryQueueStore interface {
	DeleteDelivery(id uuid.UUID) error
	MarkDeliveryUnrecoverable(id uuid.UUID, status int) error
	UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time, status int) error
}

// processDelivery runs one delivery attempt and applies the retry policy.
func processDelivery(database *db.DB, conf *util.AppConfig, item *domain.DeliveryQueueItem) {
	applyDeliveryResult(database, item, deliverActivity(item, conf))
}

// applyDeliveryResult applies the retry policy to one finished attempt: 4xx
// responses are permanent and never retried, everything else backs off and is
// marked unrecoverable once maxDeliveryAttempts is exhausted. Terminal rows
// stay in the queue with their last status so dead inboxes remain visible.
func applyDeliveryResult(store DeliveryQueueStore, item *domain.DeliveryQueueItem, err error) {
	if err == nil {
		log.Printf("DeliveryWorker: Successfully delivered to %s", item.InboxURI)
		store.DeleteDelivery(item.Id)
		return
	}

	status := 0
	var de *domain.DeliveryError
	if errors.As(err, &de) {
		status = de.Status
	}

	if domain.IsPermanentDelivery(err) {
		log.Printf("DeliveryWorker: Permanent failure delivering to %s (status %d), giving up", item.InboxURI, status)
		store.MarkDeliveryUnrecoverable(item.Id, status)
		return
	}

	item.Attempts++
	backoff := backoffMinutes[min(item.Attempts-1, len(backoffMinutes)-1)]
	item.NextRetryAt = time.Now().Add(time.Duration(backoff) * time.Minute)

	if item.Attempts >= maxDeliveryAttempts {
		log.Printf("DeliveryWorker: Abandoning delivery to %s after %d attempts", item.InboxURI, item.Attempts)
		store.MarkDeliveryUnrecoverable(item.Id, status)
	} else {
		log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
			item.InboxURI, item.Attempts, backoff, err)
		store.UpdateDeliveryAttempt(item.Id, item.Attempts, item.NextRetryAt, status)
	}
}

// processRelationship fans a follow state change out to the remote side.
func processRelationship(database *db.DB, conf *util.AppConfig, rel *db.RelationshipJobRow) {
	err := deliverRelationship(database, conf, &rel.Data)
	if err == nil {
		if !rel.Data.Silent {
			log.Printf("DeliveryWorker: Relationship update %s -> %s delivered", rel.Data.From, rel.Data.To)
		}
		database.DeleteRelationshipJob(rel.Id)
		return
	}

	rel.Attempts++
	if rel.Attempts >= maxDeliveryAttempts {
		log.Printf("DeliveryWorker: Giving up on relationship job %s -> %s: %v", rel.Data.From, rel.Data.To, err)
		database.DeleteRelationshipJob(rel.Id)
		return
	}
	backoff := backoffMinutes[min(rel.Attempts-1, len(backoffMinutes)-1)]
	database.UpdateRelationshipJobAttempt(rel.Id, rel.Attempts, time.Now().Add(time.Duration(backoff)*time.Minute))
}

// deliverActivity attempts to deliver a single activity to an inbox
func deliverActivity(item *domain.DeliveryQueueItem, conf *util.AppConfig) error {
	// Parse the activity JSON
	var activity map[string]interface{}
	if err := json.Unmarshal([]byte(item.ActivityJSON), &activity); err != nil {
		return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("failed to parse activity JSON: %w", err)}
	}

	username := item.FromUsername
	if username == "" {
		// Older rows carry no sender column, fall back to the actor URI
		actor, ok := activity["actor"].(string)
		if !ok {
			return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("activity missing actor field")}
		}
		parts := strings.Split(actor, "/")
		username = parts[len(parts)-1]
	}

	// Get local account
	database := db.GetDB()
	err, localAccount := database.ReadAccByUsername(username)
	if err != nil {
		return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("failed to get local account: %w", err)}
	}

	// Parse private key
	privateKey, err := ParsePrivateKey(localAccount.WebPrivateKey)
	if err != nil {
		return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("failed to parse private key: %w", err)}
	}

	// Create HTTP request
	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader([]byte(item.ActivityJSON)))
	if err != nil {
		return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "anancus/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	// Sign request
	keyID := fmt.Sprintf("https://%s/users/%s#main-key", conf.Conf.SslDomain, username)
	if err := SignRequest(req, privateKey, keyID); err != nil {
		return &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("failed to sign request: %w", err)}
	}

	return postActivity(req)
}

// postActivity executes one signed POST and classifies the outcome.
func postActivity(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		// Timeout, DNS failure, connection refused: transient
		return &domain.DeliveryError{Permanent: false, Err: err}
	}
	defer resp.Body.Close()

	return ClassifyResponse(resp.StatusCode)
}

// ClassifyResponse maps an HTTP status to the retry policy: 2xx is success,
// 4xx is permanent (payload rejected or recipient gone), everything else is
// transient.
func ClassifyResponse(status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status >= 400 && status < 500 {
		return &domain.DeliveryError{Status: status, Permanent: true, Err: fmt.Errorf("remote server returned status: %d", status)}
	}
	return &domain.DeliveryError{Status: status, Permanent: false, Err: fmt.Errorf("remote server returned status: %d", status)}
}

// relationshipActivity builds the wire form of a relationship job: an Undo
// of the pending request when RequestId is set, a fresh Follow otherwise.
// The Follow id comes from followActivityID, matching the row SendFollow
// stored.
func relationshipActivity(data *domain.RelationshipJobData, remoteUsername string) map[string]interface{} {
	if data.RequestId != "" {
		return map[string]interface{}{
			"@context": "https://www.w3.org/ns/activitystreams",
			"id":       data.From + "#undo-" + extractUsername(data.RequestId),
			"type":     "Undo",
			"actor":    data.From,
			"object": map[string]interface{}{
				"id":     data.RequestId,
				"type":   "Follow",
				"actor":  data.From,
				"object": data.To,
			},
		}
	}
	return map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       followActivityID(data.From, remoteUsername),
		"type":     "Follow",
		"actor":    data.From,
		"object":   data.To,
	}
}

// deliverRelationship pushes a Follow or Undo(Follow) to the remote actor
// the job names.
func deliverRelationship(database *db.DB, conf *util.AppConfig, data *domain.RelationshipJobData) error {
	err, remote := database.ReadRemoteAccountByURI(data.To)
	if err != nil || remote == nil {
		remote, err = GetOrFetchActor(data.To)
		if err != nil {
			return fmt.Errorf("relationship target unresolvable: %w", err)
		}
	}

	fromUsername := extractUsername(data.From)
	activity := relationshipActivity(data, remote.Username)

	activityJSON, err2 := json.Marshal(activity)
	if err2 != nil {
		return err2
	}

	item := &domain.DeliveryQueueItem{
		FromUsername: fromUsername,
		InboxURI:     remote.InboxURI,
		ActivityJSON: string(activityJSON),
	}
	return deliverActivity(item, conf)
}

// min returns the minimum of two integers
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
