package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContributorMonthSet(t *testing.T) {
	// Same instant as 2024-04-01T02:00Z
	eastern := time.Date(2024, 3, 31, 22, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	// Same instant as 2024-02-29T23:30Z
	ahead := time.Date(2024, 3, 1, 8, 30, 0, 0, time.FixedZone("JST", 9*3600))

	set := NewContributorMonthSet()
	set.Add(1, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))
	set.Add(1, time.Date(2024, 3, 28, 9, 0, 0, 0, time.UTC))
	set.Add(1, eastern)
	set.Add(2, ahead)
	set.Add(2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	got := make([]string, 0, len(set.Rows()))
	for _, r := range set.Rows() {
		got = append(got, fmt.Sprintf("%d@%s", r.AuthorID, r.Month))
	}
	assert.Equal(t, []string{"1@2024-03", "1@2024-04", "2@2024-02"}, got)
}

func TestContributorMonthSet_Empty(t *testing.T) {
	assert.Empty(t, NewContributorMonthSet().Rows())
}
