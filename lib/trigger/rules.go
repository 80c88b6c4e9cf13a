// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"slices"

	"github.com/littleci/littleci/lib/store"
)

// Rule kinds and git sub-kinds as stored in a repository's triggers.
const (
	RuleAny = "any"
	RuleGit = "git"

	GitAny  = "any"
	GitHead = "head"
	GitTag  = "tag"
)

// DefaultRules apply when a repository has no trigger rules: build
// pushes to master.
var DefaultRules = []store.TriggerRule{{Kind: RuleGit, Git: GitHead, Refs: []string{"master"}}}

// ValidateRules reports the first malformed rule.
func ValidateRules(rules []store.TriggerRule) error {
	for i, rule := range rules {
		switch rule.Kind {
		case RuleAny:
		case RuleGit:
			switch rule.Git {
			case GitAny, GitTag:
			case GitHead:
				if len(rule.Refs) == 0 {
					return fmt.Errorf("trigger rule %d: git head rule needs at least one ref", i)
				}
			default:
				return fmt.Errorf("trigger rule %d: unknown git rule %q", i, rule.Git)
			}
		default:
			return fmt.Errorf("trigger rule %d: unknown kind %q", i, rule.Kind)
		}
	}
	return nil
}

// Matches reports whether a payload should start a build. Generic
// payloads always do; rules filter service events only.
func Matches(rules []store.TriggerRule, payload Payload) bool {
	if payload.Kind == PayloadGeneric {
		return true
	}
	if len(rules) == 0 {
		rules = DefaultRules
	}
	for _, rule := range rules {
		if rule.Kind == RuleAny {
			return true
		}
		if rule.Kind != RuleGit || payload.Push == nil {
			continue
		}
		switch rule.Git {
		case GitAny:
			return true
		case GitTag:
			if payload.Push.Tag != "" {
				return true
			}
		case GitHead:
			if payload.Push.Branch != "" && slices.Contains(rule.Refs, payload.Push.Branch) {
				return true
			}
		}
	}
	return false
}
