package federation

import "encoding/json"

// Well-known spellings of the ActivityStreams Public collection. All three
// appear in the wild.
var publicURIs = []string{
	"https://www.w3.org/ns/activitystreams#Public",
	"as:Public",
	"Public",
}

// IsPublicURI reports whether uri addresses the Public collection.
func IsPublicURI(uri string) bool {
	for _, p := range publicURIs {
		if uri == p {
			return true
		}
	}
	return false
}

// StringList unmarshals an ActivityStreams value that may be a single string
// or an array of strings ("to", "cc", "alsoKnownAs" all vary by server).
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = StringList(many)
	return nil
}

// Image is an AS image attachment (actor icon etc.). Some servers send the
// icon as a bare URI instead of an embedded document; ref records that so
// the resolver knows to dereference it.
type Image struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url"`

	ref bool
}

func (im *Image) UnmarshalJSON(data []byte) error {
	var uri string
	if err := json.Unmarshal(data, &uri); err == nil {
		*im = Image{URL: uri, ref: true}
		return nil
	}
	type image Image
	var full image
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*im = Image(full)
	return nil
}

// ReplyCollection is the reply counter attached to a poll choice. TotalItems
// is a pointer so a missing count is distinguishable from zero. A collection
// given by reference unmarshals to just its ID, to be dereferenced by the
// resolver.
type ReplyCollection struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type,omitempty"`
	TotalItems *int   `json:"totalItems,omitempty"`
}

func (rc *ReplyCollection) UnmarshalJSON(data []byte) error {
	var uri string
	if err := json.Unmarshal(data, &uri); err == nil {
		*rc = ReplyCollection{ID: uri}
		return nil
	}
	type replyCollection ReplyCollection
	var full replyCollection
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*rc = ReplyCollection(full)
	return nil
}

// ChoiceOption is one entry of a Question's oneOf/anyOf list.
type ChoiceOption struct {
	Type    string           `json:"type,omitempty"`
	Name    string           `json:"name"`
	Replies *ReplyCollection `json:"replies,omitempty"`
}

// Object is the subset of an ActivityStreams object this core inspects.
type Object struct {
	Context      interface{}    `json:"@context,omitempty"`
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Name         string         `json:"name,omitempty"`
	Content      string         `json:"content,omitempty"`
	Published    string         `json:"published,omitempty"`
	AttributedTo string         `json:"attributedTo,omitempty"`
	InReplyTo    string         `json:"inReplyTo,omitempty"`
	To           StringList     `json:"to,omitempty"`
	Cc           StringList     `json:"cc,omitempty"`
	OneOf        []ChoiceOption `json:"oneOf,omitempty"`
	AnyOf        []ChoiceOption `json:"anyOf,omitempty"`
	EndTime      string         `json:"endTime,omitempty"`
	Icon         *Image         `json:"icon,omitempty"`
	MediaType    string         `json:"mediaType,omitempty"`
	URL          string         `json:"url,omitempty"`
	TotalItems   *int           `json:"totalItems,omitempty"`
	MovedTo      string         `json:"movedTo,omitempty"`
	AlsoKnownAs  StringList     `json:"alsoKnownAs,omitempty"`
}

// Choices returns the Question's option list: oneOf for single-choice polls,
// anyOf for multiple-choice.
func (o *Object) Choices() ([]ChoiceOption, bool) {
	if len(o.OneOf) > 0 {
		return o.OneOf, false
	}
	return o.AnyOf, true
}
