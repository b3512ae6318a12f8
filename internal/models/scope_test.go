package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoScope(t *testing.T) {
	tests := []struct {
		name       string
		scope      RepoScope
		wantEmpty  bool
		wantFilter []int64
		wantKey    string
	}{
		{"all repos", AllRepos(), false, nil, "all"},
		{"zero value", RepoScope{}, false, nil, "all"},
		{"restricted", Repos(3, 1, 3), false, []int64{1, 3}, "repos:1,3"},
		{"restricted empty", Repos(), true, []int64{}, "repos:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEmpty, tt.scope.IsEmpty())
			assert.Equal(t, tt.wantFilter, tt.scope.Filter())
			assert.Equal(t, tt.wantKey, tt.scope.Key())
		})
	}
}

func TestRepos_KeyIgnoresOrder(t *testing.T) {
	assert.Equal(t, Repos(5, 2, 9).Key(), Repos(9, 5, 2, 2).Key())
}
