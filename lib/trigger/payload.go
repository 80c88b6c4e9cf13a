// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Environment variables derived from push payloads.
const (
	EnvRef        = "LITTLECI_GIT_REF"
	EnvBranch     = "LITTLECI_GIT_BRANCH"
	EnvTag        = "LITTLECI_GIT_TAG"
	EnvBefore     = "LITTLECI_GIT_BEFORE"
	EnvAfter      = "LITTLECI_GIT_AFTER"
	EnvRepository = "LITTLECI_GIT_REPOSITORY"
)

// PayloadKind tags the schema a payload was parsed with.
type PayloadKind int

const (
	PayloadGeneric PayloadKind = iota
	PayloadGitHub
	PayloadGitea
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadGeneric:
		return "generic"
	case PayloadGitHub:
		return "github"
	case PayloadGitea:
		return "gitea"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Payload is a parsed trigger body. Exactly one of Push (service push
// events) or Fields (generic bodies) is meaningful, selected by Kind.
// Push is nil for service events other than pushes (ping, issues).
type Payload struct {
	Kind   PayloadKind
	Event  string
	Push   *PushEvent
	Fields map[string]string
}

// PushEvent is the part of a GitHub or Gitea push payload LittleCI
// uses. Exactly one of Branch and Tag is set.
type PushEvent struct {
	Ref        string
	Branch     string
	Tag        string
	Before     string
	After      string
	Repository string
}

// Data projects the payload into job environment.
func (p Payload) Data() map[string]string {
	data := map[string]string{}
	if p.Kind == PayloadGeneric {
		for key, value := range p.Fields {
			data[key] = value
		}
		return data
	}
	if p.Push == nil {
		return data
	}
	data[EnvRef] = p.Push.Ref
	data[EnvBefore] = p.Push.Before
	data[EnvAfter] = p.Push.After
	if p.Push.Branch != "" {
		data[EnvBranch] = p.Push.Branch
	}
	if p.Push.Tag != "" {
		data[EnvTag] = p.Push.Tag
	}
	if p.Push.Repository != "" {
		data[EnvRepository] = p.Push.Repository
	}
	return data
}

// servicePush is the subset of the GitHub and Gitea push schemas
// LittleCI reads. Both services use the same field names.
type servicePush struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Secret     string `json:"secret"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// parseServicePush parses a push body. The ref must name a branch or
// a tag.
func parseServicePush(body []byte) (servicePush, *PushEvent, error) {
	var push servicePush
	if err := json.Unmarshal(body, &push); err != nil {
		return push, nil, fmt.Errorf("parsing push payload: %w", err)
	}
	event := &PushEvent{
		Ref:        push.Ref,
		Before:     push.Before,
		After:      push.After,
		Repository: push.Repository.FullName,
	}
	switch {
	case strings.HasPrefix(push.Ref, "refs/heads/") && len(push.Ref) > len("refs/heads/"):
		event.Branch = strings.TrimPrefix(push.Ref, "refs/heads/")
	case strings.HasPrefix(push.Ref, "refs/tags/") && len(push.Ref) > len("refs/tags/"):
		event.Tag = strings.TrimPrefix(push.Ref, "refs/tags/")
	default:
		return push, nil, fmt.Errorf("push ref %q is neither a branch nor a tag", push.Ref)
	}
	return push, event, nil
}

// FlattenJSON turns a JSON object into string key/value pairs. Strings
// are taken as-is, numbers keep their literal form, booleans become
// "true"/"false", null becomes the empty string, and arrays or objects
// are re-encoded as compact JSON. An empty body yields an empty map.
func FlattenJSON(body []byte) (map[string]string, error) {
	fields := map[string]string{}
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var object map[string]any
	if err := decoder.Decode(&object); err != nil {
		return nil, fmt.Errorf("trigger body must be a JSON object: %w", err)
	}
	if object == nil {
		return nil, fmt.Errorf("trigger body must be a JSON object, got null")
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return nil, fmt.Errorf("field name %q cannot be an environment variable", key)
		}
		switch value := object[key].(type) {
		case nil:
			fields[key] = ""
		case string:
			fields[key] = value
		case json.Number:
			fields[key] = value.String()
		case bool:
			if value {
				fields[key] = "true"
			} else {
				fields[key] = "false"
			}
		default:
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("re-encoding field %q: %w", key, err)
			}
			fields[key] = string(encoded)
		}
	}
	return fields, nil
}
