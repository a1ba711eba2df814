package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDifferenceReportsMissingEntries(t *testing.T) {
	a := []string{"n1", "n2", "n3"}
	b := []string{"n1", "n3"}
	assert.Equal(t, []string{"n2"}, setDifference(a, b))
}

func TestSetDifferenceEmptyWhenEqual(t *testing.T) {
	a := []string{"n1", "n2"}
	b := []string{"n2", "n1"}
	assert.Empty(t, setDifference(a, b))
}
