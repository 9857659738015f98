package replan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBySubjectOrdersGroupsAndSessions(t *testing.T) {
	overdue := []Session{
		pending(9, "Physics", day(-1)),
		pending(4, "Math", day(-2)),
		pending(2, "Math", day(-2)),
		pending(7, "Math", day(-6)),
		pending(1, "Art", day(-3)),
	}

	groups := GroupBySubject(overdue)

	require.Len(t, groups, 3)
	assert.Equal(t, "Art", groups[0].Subject)
	assert.Equal(t, "Math", groups[1].Subject)
	assert.Equal(t, "Physics", groups[2].Subject)

	var ids []int64
	for _, s := range groups[1].Sessions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{7, 2, 4}, ids)
}

func TestGroupBySubjectEmpty(t *testing.T) {
	assert.Empty(t, GroupBySubject(nil))
}

func TestEarliestFuture(t *testing.T) {
	future := []Session{
		pending(1, "Math", day(8)),
		pending(2, "Math", day(3)),
		pending(3, "Biology", day(0)),
	}

	earliest := EarliestFuture(future)

	assert.Equal(t, day(3), earliest["Math"])
	assert.Equal(t, day(0), earliest["Biology"])
	_, ok := earliest["Physics"]
	assert.False(t, ok)
}
