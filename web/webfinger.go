package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/util"
)

func GetWebfinger(user string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccByUsername(user)
	if err != nil {
		return err, GetWebFingerNotFound()
	}

	actorURI := conf.BaseURL() + "/users/" + acc.Username
	resp := map[string]interface{}{
		"subject": "acct:" + acc.Username + "@" + conf.Conf.SslDomain,
		"aliases": []string{actorURI},
		"links": []map[string]interface{}{
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": actorURI,
			},
		},
	}

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return err, GetWebFingerNotFound()
	}
	return nil, string(jsonBytes)
}

func GetWebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}

// WebFingerResponse is the subset of RFC 7033 we need to discover an
// actor URI from a handle.
type WebFingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []WebFingerLink `json:"links"`
}

type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

// ResolveWebFinger queries the remote instance for user@domain and returns
// the actor URI advertised by its self link.
func ResolveWebFinger(username string, domain string) (string, error) {
	url := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s@%s", domain, username, domain)

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/jrd+json")
	req.Header.Set("User-Agent", "anancus/1.0 ActivityPub")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webfinger lookup for %s@%s returned status %d", username, domain, resp.StatusCode)
	}

	var wfr WebFingerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&wfr); err != nil {
		return "", err
	}

	for _, link := range wfr.Links {
		if link.Rel == "self" && link.Type == "application/activity+json" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("no ActivityPub self link for %s@%s", username, domain)
}
