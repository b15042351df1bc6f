// Package gqlrequest decodes and inspects GraphQL HTTP payloads before execution.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// MaxBodyBytes caps the request body read for analysis.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a POST body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("graphql request body too large")

// Envelope is the transport-level view of a GraphQL request.
type Envelope struct {
	Method        string
	ContentType   string
	Query         string
	OperationName string
	HasVariables  bool

	DocumentSizeBytes int
}

// DecodeEnvelope extracts GraphQL payload fields from an HTTP request and
// restores the body so the GraphQL handler can read it again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch {
	case r.Method == http.MethodGet:
		q := r.URL.Query()
		env.Query = q.Get("query")
		env.OperationName = q.Get("operationName")
		env.HasVariables = strings.TrimSpace(q.Get("variables")) != ""
	case r.Method == http.MethodPost && r.Body != nil:
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return env, err
		}
		if len(body) > MaxBodyBytes {
			return env, ErrBodyTooLarge
		}
		if err := env.decodeBody(body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func (env *Envelope) decodeBody(body []byte) error {
	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	vars := bytes.TrimSpace(payload.Variables)
	env.HasVariables = len(vars) > 0 && !bytes.Equal(vars, []byte("null")) && !bytes.Equal(vars, []byte("{}"))
	return nil
}
