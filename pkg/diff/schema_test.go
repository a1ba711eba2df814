package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionTableNamesDedupesAndSorts(t *testing.T) {
	perNode := map[string][]string{
		"n1": {"orders", "customers"},
		"n2": {"customers", "invoices"},
	}
	assert.Equal(t, []string{"customers", "invoices", "orders"}, unionTableNames(perNode))
}

func TestContains(t *testing.T) {
	list := []string{"a", "b", "c"}
	assert.True(t, contains(list, "b"))
	assert.False(t, contains(list, "z"))
	assert.False(t, contains(nil, "z"))
}
