package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectAliasesSingleTable(t *testing.T) {
	from := TableRef{Table: "users", Alias: "u"}
	aliasToTable, tableToAlias := CollectAliases(from)
	assert.Equal(t, "users", aliasToTable["u"])
	assert.Equal(t, "u", tableToAlias["users"])
}

func TestCollectAliasesJoin(t *testing.T) {
	from := JoinClause{
		Left:  TableRef{Table: "users", Alias: "u"},
		Right: TableRef{Table: "orders", Alias: "o"},
	}
	aliasToTable, tableToAlias := CollectAliases(from)
	assert.Equal(t, "users", aliasToTable["u"])
	assert.Equal(t, "orders", aliasToTable["o"])
	assert.Equal(t, "u", tableToAlias["users"])
	assert.Equal(t, "o", tableToAlias["orders"])
}

func TestCollectAliasesSkipsUnaliasedTables(t *testing.T) {
	from := TableRef{Table: "users"}
	aliasToTable, tableToAlias := CollectAliases(from)
	assert.Empty(t, aliasToTable)
	assert.Empty(t, tableToAlias)
}
