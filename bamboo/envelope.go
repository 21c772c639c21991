package bamboo

import (
	"encoding/json"
)

// StatusAllArtifactsMissing is reported by QueryJobForArtifacts when none of
// the requested artifact names could be resolved. It is not an HTTP status the
// Bamboo server ever sends.
const StatusAllArtifactsMissing = 444

// ArtifactIndex maps an artifact's display name to its absolute download URL.
type ArtifactIndex map[string]string

type fieldSet uint8

const (
	fieldSuccess fieldSet = 1 << iota
	fieldStatusCode
	fieldContent
	fieldURL
	fieldArtifacts
)

// Envelope is the uniform result returned by every operation of the client.
// Only the fields that were packed into it are considered present; a
// precondition failure, for instance, carries nothing but Content.
type Envelope struct {
	Success    bool
	StatusCode int
	Content    any
	URL        string
	Artifacts  ArtifactIndex

	fields fieldSet
}

// Field packs a single named value into an Envelope.
type Field func(*Envelope)

// Pack builds an Envelope holding exactly the given fields. The order of the
// fields does not matter.
func Pack(fields ...Field) Envelope {
	var e Envelope
	for _, f := range fields {
		f(&e)
	}
	return e
}

// Success sets the success flag.
func Success(ok bool) Field {
	return func(e *Envelope) {
		e.Success = ok
		e.fields |= fieldSuccess
	}
}

// StatusCode sets the HTTP status code.
func StatusCode(code int) Field {
	return func(e *Envelope) {
		e.StatusCode = code
		e.fields |= fieldStatusCode
	}
}

// Content sets the payload: decoded JSON, raw text or a *Response.
func Content(content any) Field {
	return func(e *Envelope) {
		e.Content = content
		e.fields |= fieldContent
	}
}

// URL sets the URL the envelope originated from.
func URL(url string) Field {
	return func(e *Envelope) {
		e.URL = url
		e.fields |= fieldURL
	}
}

// Artifacts sets the discovered artifact index.
func Artifacts(index ArtifactIndex) Field {
	return func(e *Envelope) {
		e.Artifacts = index
		e.fields |= fieldArtifacts
	}
}

// HasSuccess reports whether a success flag was packed.
func (e Envelope) HasSuccess() bool { return e.fields&fieldSuccess != 0 }

// HasStatusCode reports whether a status code was packed.
func (e Envelope) HasStatusCode() bool { return e.fields&fieldStatusCode != 0 }

// HasContent reports whether a content payload was packed, even a nil one.
func (e Envelope) HasContent() bool { return e.fields&fieldContent != 0 }

// HasURL reports whether a URL was packed.
func (e Envelope) HasURL() bool { return e.fields&fieldURL != 0 }

// HasArtifacts reports whether an artifact index was packed.
func (e Envelope) HasArtifacts() bool { return e.fields&fieldArtifacts != 0 }

// Fields returns the packed values keyed by their wire names.
func (e Envelope) Fields() map[string]any {
	out := make(map[string]any, 5)
	if e.HasSuccess() {
		out["success"] = e.Success
	}
	if e.HasStatusCode() {
		out["status_code"] = e.StatusCode
	}
	if e.HasContent() {
		out["content"] = e.contentValue()
	}
	if e.HasURL() {
		out["url"] = e.URL
	}
	if e.HasArtifacts() {
		out["artifacts"] = e.Artifacts
	}
	return out
}

// MarshalJSON only emits the packed fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields())
}

func (e Envelope) contentValue() any {
	if r, ok := e.Content.(*Response); ok && r != nil {
		return string(r.Body)
	}
	return e.Content
}

func preconditionFailed(msg string) Envelope {
	return Pack(Content(msg))
}
