package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/federation"
	"github.com/deemkeen/anancus/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func Router(conf *util.AppConfig, processor *federation.InboxProcessor) error {
	log.Printf("Starting web server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// RSS Feed
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		username := c.Query("username")
		rss, err := GetRSS(conf, username)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		name := c.Param("id")
		feedId, err := uuid.Parse(name)
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}

		rssItem, err := GetRSSItem(conf, feedId)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rssItem})
		}
	})

	// Endpoints for the ActivityPub functionality
	if conf.Conf.WithAp {
		// Stricter rate limit for ActivityPub endpoints: 5 req/sec per IP
		apLimiter := NewRateLimiter(rate.Limit(5), 10)

		// Max 1MB request body size for ActivityPub activities
		maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

		// Serve individual notes as ActivityPub objects
		g.GET("/notes/:id", func(c *gin.Context) {
			c.Header("Content-Type", "application/activity+json; charset=utf-8")

			noteIdStr := c.Param("id")
			noteId, err := uuid.Parse(noteIdStr)
			if err != nil {
				c.JSON(404, gin.H{"error": "Invalid note ID"})
				return
			}

			err, note := GetNoteObject(noteId, conf)
			if err != nil {
				c.JSON(404, gin.H{"error": "Note not found"})
			} else {
				c.Render(200, render.String{Format: note})
			}
		})

		g.GET("/users/:actor", func(c *gin.Context) {
			c.Header("Content-Type", "application/activity+json; charset=utf-8")
			err, actor := GetActor(c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: actor})
			} else {
				c.Render(200, render.String{Format: actor})
			}
		})

		g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
			log.Println("POST /inbox (shared inbox)")
			// Shared inbox - route to a local user from the addressing
			body, err := c.GetRawData()
			if err != nil {
				log.Printf("Shared inbox: Failed to read body: %v", err)
				c.Status(400)
				return
			}

			targetUsername := sharedInboxTarget(body, conf)
			if targetUsername == "" {
				log.Printf("Shared inbox: Could not determine target user")
				c.Status(202) // Accept anyway to be nice
				return
			}

			log.Printf("Shared inbox: Routing to user %s", targetUsername)
			// Replay the body for the per-user handler
			req := c.Request.Clone(c.Request.Context())
			req.Body = io.NopCloser(bytes.NewReader(body))
			HandleInbox(c.Writer, req, targetUsername, processor)
		})

		g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
			actor := c.Param("actor")
			log.Printf("POST /users/%s/inbox", actor)
			HandleInbox(c.Writer, c.Request, actor, processor)
		})

		g.GET("/users/:actor/outbox", func(c *gin.Context) {
			c.Header("Content-Type", "application/activity+json; charset=utf-8")
			page := ParsePageParam(c.Query("page"))
			err, outbox := GetOutbox(c.Param("actor"), page, conf)
			if err != nil {
				c.Render(404, render.String{Format: "{}"})
			} else {
				c.Render(200, render.String{Format: outbox})
			}
		})

		g.GET("/users/:actor/followers", func(c *gin.Context) {
			c.Header("Content-Type", "application/activity+json; charset=utf-8")
			err, collection := GetFollowers(c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: "{}"})
			} else {
				c.Render(200, render.String{Format: collection})
			}
		})

		g.GET("/users/:actor/following", func(c *gin.Context) {
			c.Header("Content-Type", "application/activity+json; charset=utf-8")
			c.Render(200, render.String{Format: "{}"})
		})

		g.GET("/.well-known/webfinger", func(c *gin.Context) {
			c.Header("Content-Type", "application/json; charset=utf-8")

			resource := c.Query("resource")
			if resource == "" || !strings.HasPrefix(resource, "acct:") {
				c.Render(404, render.String{Format: GetWebFingerNotFound()})
				return
			}
			resource = strings.TrimPrefix(resource, "acct:")
			resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.SslDomain))
			err, resp := GetWebfinger(resource, conf)
			if err != nil {
				c.Render(404, render.String{Format: GetWebFingerNotFound()})
			} else {
				c.Render(200, render.String{Format: resp})
			}
		})
	}

	return g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
}

// sharedInboxTarget picks the local user an activity in the shared inbox is
// meant for, looking at to, cc, the object, and finally at who follows the
// sending actor.
func sharedInboxTarget(body []byte, conf *util.AppConfig) string {
	var activity map[string]interface{}
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Shared inbox: Failed to parse activity: %v", err)
		return ""
	}

	extractLocal := func(uri string) string {
		// Our users look like https://domain/users/username
		if strings.Contains(uri, conf.Conf.SslDomain) && strings.Contains(uri, "/users/") {
			parts := strings.Split(uri, "/")
			for i, part := range parts {
				if part == "users" && i+1 < len(parts) {
					username := parts[i+1]
					// Strip /followers or /following suffixes
					if slashIdx := strings.Index(username, "/"); slashIdx > 0 {
						username = username[:slashIdx]
					}
					return username
				}
			}
		}
		return ""
	}

	fromList := func(key string) string {
		arr, ok := activity[key].([]interface{})
		if !ok {
			return ""
		}
		for _, entry := range arr {
			if uri, ok := entry.(string); ok {
				if username := extractLocal(uri); username != "" {
					return username
				}
			}
		}
		return ""
	}

	if username := fromList("to"); username != "" {
		return username
	}
	if username := fromList("cc"); username != "" {
		return username
	}
	if objStr, ok := activity["object"].(string); ok {
		if username := extractLocal(objStr); username != "" {
			return username
		}
	}

	// Create/Update/Delete carry no local addressee: route to the first
	// local follower of the sending actor
	actorURI, _ := activity["actor"].(string)
	if actorURI == "" {
		return ""
	}
	database := db.GetDB()
	err, remoteActor := database.ReadRemoteAccountByURI(actorURI)
	if err != nil || remoteActor == nil {
		log.Printf("Shared inbox: Remote actor %s not found in cache", actorURI)
		return ""
	}
	err, follower := database.ReadFirstFollowerAccountOf(remoteActor.Id)
	if err != nil || follower == nil {
		log.Printf("Shared inbox: No local followers found for %s", actorURI)
		return ""
	}
	return follower.Username
}
