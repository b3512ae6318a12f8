package models

import "time"

// ContributorMonthSet buckets commit timestamps into distinct UTC
// (author, month) pairs, keeping first-seen order
type ContributorMonthSet struct {
	seen map[ContributorMonth]struct{}
	rows []ContributorMonth
}

func NewContributorMonthSet() *ContributorMonthSet {
	return &ContributorMonthSet{seen: make(map[ContributorMonth]struct{})}
}

// Add records a commit by authorID at t
func (s *ContributorMonthSet) Add(authorID int64, t time.Time) {
	cm := ContributorMonth{AuthorID: authorID, Month: MonthOf(t)}
	if _, ok := s.seen[cm]; ok {
		return
	}
	s.seen[cm] = struct{}{}
	s.rows = append(s.rows, cm)
}

func (s *ContributorMonthSet) Rows() []ContributorMonth {
	return s.rows
}
