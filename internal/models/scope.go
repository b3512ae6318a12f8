package models

import (
	"sort"
	"strconv"
	"strings"
)

// RepoScope restricts analytics to a set of repositories.
// The zero value matches every repository. A restricted scope with no ids matches nothing.
type RepoScope struct {
	RepoIDs    []int64
	Restricted bool
}

// AllRepos returns an unrestricted scope
func AllRepos() RepoScope {
	return RepoScope{}
}

// Repos returns a scope restricted to ids (deduplicated and sorted)
func Repos(ids ...int64) RepoScope {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return RepoScope{RepoIDs: out, Restricted: true}
}

// IsEmpty reports whether the scope can match no repository at all
func (s RepoScope) IsEmpty() bool {
	return s.Restricted && len(s.RepoIDs) == 0
}

// Filter returns the id list to bind as a query parameter, nil meaning no filter
func (s RepoScope) Filter() []int64 {
	if !s.Restricted {
		return nil
	}
	return s.RepoIDs
}

// Key returns a stable identifier for cache keys
func (s RepoScope) Key() string {
	if !s.Restricted {
		return "all"
	}
	parts := make([]string, len(s.RepoIDs))
	for i, id := range s.RepoIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "repos:" + strings.Join(parts, ",")
}
