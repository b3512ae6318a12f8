package models

import (
	"time"

	"github.com/google/uuid"
)

// Repository represents an indexed GitHub repository
type Repository struct {
	ID       int64  `json:"id" db:"id"`
	Owner    string `json:"owner" db:"owner"`
	Name     string `json:"name" db:"name"`
	FullName string `json:"full_name" db:"full_name"`
}

// AccountType distinguishes human accounts from bots and organizations
type AccountType string

const (
	AccountTypeUser         AccountType = "USER"
	AccountTypeBot          AccountType = "BOT"
	AccountTypeOrganization AccountType = "ORGANIZATION"
)

// Contributor represents a GitHub account that authored activity
type Contributor struct {
	ID    int64       `json:"id" db:"id"`
	Login string      `json:"login" db:"login"`
	Type  AccountType `json:"type" db:"type"`
}

// SegmentKind describes what a segment groups
type SegmentKind string

const (
	SegmentKindRepositories SegmentKind = "repositories"
	SegmentKindContributors SegmentKind = "contributors"
)

// Valid reports whether k is a known segment kind
func (k SegmentKind) Valid() bool {
	return k == SegmentKindRepositories || k == SegmentKindContributors
}

// Segment is a curated list of tracked repositories (or contributors)
type Segment struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Kind        SegmentKind `json:"kind" db:"kind"`
	RepoIDs     []int64     `json:"repo_ids" db:"-"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// CommitFact is a single commit row from the indexer, authored by a USER account
type CommitFact struct {
	SHA       string    `json:"sha" db:"sha"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	RepoID    int64     `json:"repo_id" db:"repo_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContributorMonth marks a calendar month in which a contributor had at least one commit
type ContributorMonth struct {
	AuthorID int64 `json:"author_id" db:"author_id"`
	Month    Month `json:"month"`
}

// PullRequestFact is a merged pull request row
type PullRequestFact struct {
	ID       int64     `json:"id" db:"id"`
	RepoID   int64     `json:"repo_id" db:"repo_id"`
	MergedAt time.Time `json:"merged_at" db:"merged_at"`
}

// PullRequestStatus is the lifecycle state recorded by the indexer
type PullRequestStatus string

const (
	PullRequestOpen   PullRequestStatus = "OPEN"
	PullRequestClosed PullRequestStatus = "CLOSED"
	PullRequestMerged PullRequestStatus = "MERGED"
)

// PullRequest is a full pull request row as written by the indexer
type PullRequest struct {
	ID       int64             `json:"id" db:"id"`
	AuthorID int64             `json:"author_id" db:"author_id"`
	RepoID   int64             `json:"repo_id" db:"repo_id"`
	Status   PullRequestStatus `json:"status" db:"status"`
	MergedAt *time.Time        `json:"merged_at,omitempty" db:"merged_at"`
}
