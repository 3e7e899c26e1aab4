package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
)

// ActivityEnvelope is the generic shape of an incoming activity. The object
// stays raw until the handler knows what to expect.
type ActivityEnvelope struct {
	Context interface{}     `json:"@context"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object"`
	Target  string          `json:"target,omitempty"`
	To      StringList      `json:"to,omitempty"`
	Cc      StringList      `json:"cc,omitempty"`
}

// InboxProcessor drives the side effects of incoming activities. Signature
// verification happens upstream in the HTTP handler; by the time an activity
// reaches ProcessActivity the sender is authenticated.
type InboxProcessor struct {
	conf     *util.AppConfig
	resolver *Resolver
	moves    *MoveCoordinator
	polls    *PollSyncService
	bus      *EventBus
}

func NewInboxProcessor(conf *util.AppConfig, resolver *Resolver, moves *MoveCoordinator, polls *PollSyncService, bus *EventBus) *InboxProcessor {
	return &InboxProcessor{
		conf:     conf,
		resolver: resolver,
		moves:    moves,
		polls:    polls,
		bus:      bus,
	}
}

// ProcessActivity handles one verified activity addressed to username. The
// activities log doubles as the dedup table: an activity id we have already
// processed is acknowledged and dropped.
func (p *InboxProcessor) ProcessActivity(ctx context.Context, username string, remoteActor *domain.RemoteAccount, body []byte) error {
	var activity ActivityEnvelope
	if err := json.Unmarshal(body, &activity); err != nil {
		return domain.NewValidationError("invalid activity JSON: %v", err)
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)

	database := db.GetDB()

	// Deduplicate on the activity id
	if activity.ID != "" {
		err, existing := database.ReadActivityByURI(activity.ID)
		if err == nil && existing != nil && existing.Processed {
			log.Printf("Inbox: Activity %s already processed, skipping", activity.ID)
			return nil
		}
	}

	activityRecord := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  activity.ID,
		ActivityType: activity.Type,
		ActorURI:     activity.Actor,
		ObjectURI:    objectURIOf(activity.Object),
		RawJSON:      string(body),
		Processed:    false,
		Local:        false,
		CreatedAt:    time.Now(),
	}
	if err := database.CreateActivity(activityRecord); err != nil {
		log.Printf("Inbox: Failed to store activity: %v", err)
		// Don't fail the request, we'll process it anyway
	}

	var err error
	switch activity.Type {
	case "Follow":
		err = p.handleFollow(&activity, username, remoteActor)
	case "Undo":
		err = p.handleUndo(&activity, remoteActor)
	case "Accept":
		err = p.handleAccept(&activity)
	case "Like":
		err = p.handleLike(&activity, remoteActor)
	case "Create":
		err = p.handleCreate(ctx, &activity, username, remoteActor, body)
	case "Update":
		err = p.handleUpdate(ctx, &activity, body)
	case "Move":
		err = p.handleMove(&activity, remoteActor)
	case "Delete":
		err = p.handleDelete(&activity)
	default:
		log.Printf("Inbox: Unsupported activity type: %s", activity.Type)
	}
	if err != nil {
		return err
	}

	activityRecord.Processed = true
	database.UpdateActivity(activityRecord)
	return nil
}

// objectURIOf extracts the object id whether the object is a bare URI or an
// embedded document.
func objectURIOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(raw, &uri); err == nil {
		return uri
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// handleFollow records the follow and answers with an Accept.
func (p *InboxProcessor) handleFollow(activity *ActivityEnvelope, username string, remoteActor *domain.RemoteAccount) error {
	database := db.GetDB()
	err, localAccount := database.ReadAccByUsername(username)
	if err != nil {
		return fmt.Errorf("local account not found: %w", err)
	}

	err, existing := database.ReadFollowByAccountIds(remoteActor.Id, localAccount.Id)
	if err == nil && existing != nil {
		log.Printf("Inbox: %s@%s already follows %s", remoteActor.Username, remoteActor.Domain, username)
		return domain.ErrAlreadyFollowing
	}

	followRecord := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       remoteActor.Id,  // The follower
		TargetAccountId: localAccount.Id, // The target being followed
		URI:             activity.ID,
		Accepted:        true, // Auto-accept for now
		CreatedAt:       time.Now(),
	}
	if err := database.CreateFollow(followRecord); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}

	if err := SendAccept(localAccount, remoteActor, activity.ID, p.conf); err != nil {
		return fmt.Errorf("failed to send Accept: %w", err)
	}

	log.Printf("Inbox: Accepted follow from %s@%s", remoteActor.Username, remoteActor.Domain)
	return nil
}

// handleUndo reverses a previously delivered Follow or Like.
func (p *InboxProcessor) handleUndo(activity *ActivityEnvelope, remoteActor *domain.RemoteAccount) error {
	var obj struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(activity.Object, &obj); err != nil {
		return domain.NewValidationError("invalid Undo object: %v", err)
	}

	database := db.GetDB()
	switch obj.Type {
	case "Follow":
		if err := database.DeleteFollowByURI(obj.ID); err != nil {
			return fmt.Errorf("failed to delete follow: %w", err)
		}
		log.Printf("Inbox: Removed follow from %s@%s", remoteActor.Username, remoteActor.Domain)
	case "Like":
		if err := database.DeleteLikeByURI(obj.ID); err != nil {
			// "not reacted" is a well-formed no-op, not a processing failure
			if err == domain.ErrNotReacted {
				log.Printf("Inbox: Undo Like for unknown like %s, ignoring", obj.ID)
				return nil
			}
			return fmt.Errorf("failed to delete like: %w", err)
		}
		log.Printf("Inbox: Removed like from %s@%s", remoteActor.Username, remoteActor.Domain)
	default:
		log.Printf("Inbox: Unsupported Undo object type: %s", obj.Type)
	}
	return nil
}

// handleAccept confirms one of our outgoing follow requests.
func (p *InboxProcessor) handleAccept(activity *ActivityEnvelope) error {
	var followObj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(activity.Object, &followObj); err != nil {
		return domain.NewValidationError("invalid Accept object: %v", err)
	}

	database := db.GetDB()
	err, follow := database.ReadFollowByURI(followObj.ID)
	if err != nil || follow == nil {
		log.Printf("Inbox: Accept for unknown follow %s", followObj.ID)
		return domain.ErrRequestNotFound
	}
	if err := database.AcceptFollowByURI(followObj.ID); err != nil {
		return fmt.Errorf("failed to accept follow: %w", err)
	}

	log.Printf("Inbox: Follow %s was accepted by %s", followObj.ID, activity.Actor)
	return nil
}

// handleLike records a like on a local note.
func (p *InboxProcessor) handleLike(activity *ActivityEnvelope, remoteActor *domain.RemoteAccount) error {
	noteURI := objectURIOf(activity.Object)
	if noteURI == "" {
		return domain.NewValidationError("Like without object")
	}

	database := db.GetDB()
	err, note := database.ReadNoteByObjectURI(noteURI)
	if err != nil || note == nil {
		log.Printf("Inbox: Like for unknown note %s, ignoring", noteURI)
		return nil
	}

	err, existing := database.ReadLikeByAccountAndNote(remoteActor.Id, note.Id)
	if err == nil && existing != nil {
		log.Printf("Inbox: %s@%s already liked note %s", remoteActor.Username, remoteActor.Domain, note.Id)
		return nil
	}

	like := &domain.Like{
		Id:        uuid.New(),
		AccountId: remoteActor.Id,
		NoteId:    note.Id,
		URI:       activity.ID,
		CreatedAt: time.Now(),
	}
	if err := database.CreateLike(like); err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	log.Printf("Inbox: %s@%s liked note %s", remoteActor.Username, remoteActor.Domain, note.Id)
	return nil
}

// handleCreate ingests an incoming post. A Note replying to a local poll
// whose name matches one of the poll's choices is a vote, not a post.
func (p *InboxProcessor) handleCreate(ctx context.Context, activity *ActivityEnvelope, username string, remoteActor *domain.RemoteAccount, body []byte) error {
	obj, err := p.resolver.ResolveValue(activity.Object)
	if err != nil {
		return err
	}

	database := db.GetDB()

	if obj.Type == "Note" && obj.InReplyTo != "" && obj.Name != "" {
		err, parent := database.ReadNoteByObjectURI(obj.InReplyTo)
		if err == nil && parent != nil && parent.HasPoll() {
			return p.handleVote(obj, parent, remoteActor)
		}
	}

	// Only accept posts from actors someone here follows
	err, localAccount := database.ReadAccByUsername(username)
	if err != nil {
		return fmt.Errorf("failed to get local account: %w", err)
	}
	err, follow := database.ReadFollowByAccountIds(localAccount.Id, remoteActor.Id)
	if err != nil || follow == nil {
		log.Printf("Inbox: Rejecting Create from %s - not following", activity.Actor)
		return domain.NewValidationError("not following this actor")
	}

	note := &domain.Note{
		Id:           uuid.New(),
		CreatedBy:    remoteActor.Username + "@" + remoteActor.Domain,
		Message:      obj.Content,
		ObjectURI:    obj.ID,
		InReplyToURI: obj.InReplyTo,
		Federated:    true,
		CreatedAt:    time.Now(),
	}
	aud := ParseAudience(ctx, p.lookup(), domain.ActorFromRemote(remoteActor), obj.To, obj.Cc)
	note.Visibility = aud.Visibility

	if obj.Type == "Question" {
		options, multiple := obj.Choices()
		for _, opt := range options {
			note.PollChoices = append(note.PollChoices, opt.Name)
			count := 0
			if opt.Replies != nil && opt.Replies.TotalItems != nil {
				count = *opt.Replies.TotalItems
			}
			note.PollVotes = append(note.PollVotes, count)
		}
		note.PollMultiple = multiple
	}

	if err := database.CreateFederatedNote(note, remoteActor.Id); err != nil {
		return fmt.Errorf("failed to store federated note: %w", err)
	}

	log.Printf("Inbox: Accepted post from followed user %s@%s", remoteActor.Username, remoteActor.Domain)
	return nil
}

// handleVote counts a remote vote on a local poll. Voting twice on a
// single-choice poll is a conflict; on a multiple-choice poll, a second
// distinct choice is fine but repeating the same choice is not.
func (p *InboxProcessor) handleVote(obj *Object, parent *domain.Note, remoteActor *domain.RemoteAccount) error {
	choiceIdx := -1
	for i, choice := range parent.PollChoices {
		if choice == obj.Name {
			choiceIdx = i
			break
		}
	}
	if choiceIdx < 0 {
		return domain.NewValidationError("vote for unknown choice %q", obj.Name)
	}

	database := db.GetDB()
	err, existing := database.ReadVotesByAccountAndNote(remoteActor.Id, parent.Id)
	if err == nil && existing != nil {
		for _, v := range *existing {
			if !parent.PollMultiple || v.Choice == obj.Name {
				log.Printf("Inbox: %s@%s already voted on note %s", remoteActor.Username, remoteActor.Domain, parent.Id)
				return domain.ErrAlreadyVoted
			}
		}
	}

	vote := &domain.Vote{
		Id:        uuid.New(),
		AccountId: remoteActor.Id,
		NoteId:    parent.Id,
		Choice:    obj.Name,
		URI:       obj.ID,
		CreatedAt: time.Now(),
	}
	if err := database.CreateVote(vote); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	votes := make([]int, len(parent.PollChoices))
	copy(votes, parent.PollVotes)
	votes[choiceIdx]++
	if err := database.UpdatePollVotes(parent.Id, votes); err != nil {
		return fmt.Errorf("failed to update poll counts: %w", err)
	}

	log.Printf("Inbox: Counted vote %q from %s@%s on note %s", obj.Name, remoteActor.Username, remoteActor.Domain, parent.Id)
	if p.bus != nil {
		p.bus.Publish(NoteUpdated{NoteId: parent.Id})
	}
	return nil
}

// handleUpdate dispatches on the updated object's type: profile updates
// refresh the actor cache and may reveal a move, Question updates pull new
// poll counts, Note updates edit the stored copy.
func (p *InboxProcessor) handleUpdate(ctx context.Context, activity *ActivityEnvelope, body []byte) error {
	var objectType struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(activity.Object, &objectType); err != nil {
		return domain.NewValidationError("invalid Update object: %v", err)
	}

	log.Printf("Inbox: Processing Update for %s (type: %s) from %s", objectType.ID, objectType.Type, activity.Actor)

	database := db.GetDB()

	switch objectType.Type {
	case "Person", "Application", "Service":
		actor, err := RefreshActor(activity.Actor)
		if err != nil {
			return fmt.Errorf("failed to fetch updated actor: %w", err)
		}
		if p.bus != nil {
			p.bus.Publish(ActorRefreshed{URI: actor.URI})
			p.bus.Publish(CacheInvalidate{URI: actor.URI})
		}
		log.Printf("Inbox: Updated profile for %s", actor.URI)

		if actor.MovedToURI != "" {
			outcome, err := p.moves.Move(actor, nil)
			if err != nil {
				return err
			}
			log.Printf("Inbox: Move of %s: %s", actor.URI, outcome)
		}

	case "Question":
		changed, err := p.polls.Update(ctx, objectType.ID)
		if err != nil {
			return err
		}
		log.Printf("Inbox: Poll sync for %s, changed=%v", objectType.ID, changed)

	case "Note", "Article":
		err, existingActivity := database.ReadActivityByObjectURI(objectType.ID)
		if err != nil || existingActivity == nil {
			log.Printf("Inbox: Note/Article %s not found for update, ignoring", objectType.ID)
			return nil
		}
		existingActivity.RawJSON = string(body)
		if err := database.UpdateActivity(existingActivity); err != nil {
			return fmt.Errorf("failed to update activity: %w", err)
		}

		// Mirror the edit onto the stored note, if we materialized one
		obj, rerr := p.resolver.ResolveValue(activity.Object)
		if rerr == nil {
			err, note := database.ReadNoteByObjectURI(objectType.ID)
			if err == nil && note != nil {
				if uerr := database.UpdateNoteMessage(note.Id, obj.Content); uerr != nil {
					return fmt.Errorf("failed to edit note: %w", uerr)
				}
				if p.bus != nil {
					p.bus.Publish(NoteUpdated{NoteId: note.Id})
				}
			}
		}
		log.Printf("Inbox: Updated Note/Article %s", objectType.ID)

	default:
		log.Printf("Inbox: Unsupported Update object type: %s", objectType.Type)
	}
	return nil
}

// handleMove runs the migration coordinator for an explicit Move activity.
func (p *InboxProcessor) handleMove(activity *ActivityEnvelope, remoteActor *domain.RemoteAccount) error {
	srcURI := objectURIOf(activity.Object)
	if srcURI == "" {
		srcURI = activity.Actor
	}
	if srcURI != activity.Actor {
		return domain.NewValidationError("Move object %s does not match actor %s", srcURI, activity.Actor)
	}

	// Re-fetch so movedTo/alsoKnownAs reflect what the origin says now
	actor, err := RefreshActor(srcURI)
	if err != nil {
		return err
	}
	if activity.Target != "" && actor.MovedToURI != activity.Target {
		return domain.NewValidationError("Move target %s does not match actor movedTo %s", activity.Target, actor.MovedToURI)
	}

	outcome, err := p.moves.Move(actor, nil)
	if err != nil {
		return err
	}
	log.Printf("Inbox: Move of %s: %s", srcURI, outcome)
	return nil
}

// handleDelete removes a remote post, or a whole remote account when the
// deleted object is the actor itself.
func (p *InboxProcessor) handleDelete(activity *ActivityEnvelope) error {
	objectURI := objectURIOf(activity.Object)
	if objectURI == "" {
		return domain.NewValidationError("could not determine object URI from Delete activity")
	}

	log.Printf("Inbox: Processing Delete for %s from %s", objectURI, activity.Actor)

	database := db.GetDB()

	if objectURI == activity.Actor {
		// Actor deletion - remove all their activities and follows
		log.Printf("Inbox: Actor %s deleted their account", activity.Actor)
		err, remoteAcc := database.ReadRemoteAccountByURI(objectURI)
		if err == nil && remoteAcc != nil {
			database.DeleteFollowsByRemoteAccountId(remoteAcc.Id)
			database.DeleteRemoteAccount(remoteAcc.Id)
			if p.bus != nil {
				p.bus.Publish(CacheInvalidate{URI: objectURI})
			}
			log.Printf("Inbox: Removed actor %s and all associated data", objectURI)
		}
		return nil
	}

	err, act := database.ReadActivityByObjectURI(objectURI)
	if err != nil || act == nil {
		log.Printf("Inbox: Activity with object %s not found for deletion, ignoring", objectURI)
		return nil
	}
	if err := database.DeleteActivity(act.Id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	log.Printf("Inbox: Deleted activity containing object %s", objectURI)
	return nil
}

// lookup adapts the actor cache into the audience parser's interface.
func (p *InboxProcessor) lookup() ActorLookup {
	return ActorLookupFunc(func(ctx context.Context, uri string) (*domain.Actor, error) {
		database := db.GetDB()
		err, actor := database.ReadActorByURI(uri, p.conf.BaseURL())
		if err == nil && actor != nil {
			return actor, nil
		}
		remote, ferr := GetOrFetchActor(uri)
		if ferr != nil {
			return nil, ferr
		}
		return domain.ActorFromRemote(remote), nil
	})
}
