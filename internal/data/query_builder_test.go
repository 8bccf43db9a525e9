package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_QueryBuilder(t *testing.T) {
	t.Run("Test AddCondition", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM bookings")

		qb.AddCondition("service_name = ?", "Garden maintenance")
		actual, params := qb.Build()

		expectedQuery := "SELECT * FROM bookings WHERE 1=1 AND service_name = ?"

		assert.Equal(t, expectedQuery, actual)
		assert.Equal(t, []interface{}{"Garden maintenance"}, params)
	})

	t.Run("Test AddCondition multiple params", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM providers")

		qb.AddCondition("(id ILIKE ? OR email ILIKE ? OR phone_number ILIKE ?)", "id", "mock@email.com", "+9999999")
		actual, params := qb.Build()

		expectedQuery := "SELECT * FROM providers WHERE 1=1 AND (id ILIKE ? OR email ILIKE ? OR phone_number ILIKE ?)"

		assert.Equal(t, expectedQuery, actual)
		assert.Equal(t, []interface{}{"id", "mock@email.com", "+9999999"}, params)
	})

	t.Run("Test AddSorting", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM payments p")

		qb.AddSorting("created_at", "DESC", "p")
		actual, _ := qb.Build()

		expectedQuery := "SELECT * FROM payments p ORDER BY p.created_at DESC"
		assert.Equal(t, expectedQuery, actual)
	})

	t.Run("Test AddPagination", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM payments p")

		qb.AddPagination(2, 20)
		actual, params := qb.Build()

		expectedQuery := "SELECT * FROM payments p LIMIT ? OFFSET ?"
		assert.Equal(t, expectedQuery, actual)
		assert.Equal(t, []interface{}{20, 20}, params)
	})

	t.Run("Test Full query", func(t *testing.T) {
		qb := NewQueryBuilder("SELECT * FROM payments p")
		qb.AddCondition("status = ?", "ESCROW")
		qb.AddSorting("created_at", "DESC", "p")
		qb.AddPagination(2, 20)
		actual, params := qb.Build()

		expectedQuery := "SELECT * FROM payments p WHERE 1=1 AND status = ? ORDER BY p.created_at DESC LIMIT ? OFFSET ?"
		assert.Equal(t, expectedQuery, actual)
		assert.Equal(t, []interface{}{"ESCROW", 20, 20}, params)
	})
}
