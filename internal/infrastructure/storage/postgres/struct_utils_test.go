package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
)

func TestExtractDBColumns_Order(t *testing.T) {
	cols := ExtractDBColumns[orders.Order]()

	assert.Equal(t, []string{
		"id", "version",
		"created_at", "updated_at", "created_by", "updated_by",
		"name", "supplier_id", "state", "starts", "ends", "end_action",
		"foodcoop_result", "selected_article_ids",
	}, cols)
	assert.NotContains(t, cols, "lines")
}

func TestExtractDBColumns_NonStruct(t *testing.T) {
	assert.Nil(t, ExtractDBColumns[int]())
}

func TestStructToMap_Order(t *testing.T) {
	now := time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)
	result := types.MustMoney("4.5")
	o := &orders.Order{
		BaseDocument: entity.NewBaseDocument("alice", now),
		Name:         "week 10",
		SupplierID:   id.New(),
		State:        orders.StateFinished,
		Starts:       now.Add(-72 * time.Hour),
		Ends:         &now,
		EndAction:    orders.EndActionAutoClose,

		FoodcoopResult:     &result,
		SelectedArticleIDs: []id.ID{id.New()},
	}

	m := StructToMap(o)

	assert.Equal(t, o.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "alice", m["created_by"])
	assert.Equal(t, orders.StateFinished, m["state"])
	assert.Equal(t, &now, m["ends"])
	assert.Equal(t, &result, m["foodcoop_result"])
	assert.Len(t, m, len(ExtractDBColumns[orders.Order]()))

	var nilOrder *orders.Order
	assert.Nil(t, StructToMap(nilOrder))
}
