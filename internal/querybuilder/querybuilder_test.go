package querybuilder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SkipsAbsentFilters(t *testing.T) {
	var status *string
	sql, args := New().
		Where("s.id", Eq, int64(0)).
		Where("s.status", Eq, status).
		Where("c.name", Contains, "").
		Build()

	assert.Equal(t, "", sql)
	assert.Empty(t, args)
}

func TestBuild_PointerToZeroIsApplied(t *testing.T) {
	zero := 0
	sql, args := New().Where("cp.quantity", Gte, &zero).Build()

	assert.Equal(t, " WHERE cp.quantity >= ?", sql)
	assert.Equal(t, []any{0}, args)
}

func TestBuild_AndChainGroupOrderPage(t *testing.T) {
	sql, args := New().
		Where("p.code", Prefix, "A1").
		Where("c.name", Contains, "ana").
		Where("p.name", Suffix, "blusa").
		Where("s.total_value", Lte, 100).
		GroupBy("p.id").
		OrderBy("p.name", true).
		Page(10, 20).
		Build()

	assert.Equal(t,
		" WHERE LOWER(p.code) LIKE LOWER(?) ESCAPE '\\' AND LOWER(c.name) LIKE LOWER(?) ESCAPE '\\'"+
			" AND LOWER(p.name) LIKE LOWER(?) ESCAPE '\\' AND s.total_value <= ?"+
			" GROUP BY p.id ORDER BY p.name ASC LIMIT ? OFFSET ?",
		sql)
	assert.Equal(t, []any{"A1%", "%ana%", "%blusa", 100, 10, 20}, args)
}

func TestBuild_EscapesWildcardsInUserInput(t *testing.T) {
	_, args := New().Where("p.code", Contains, `50%_off\`).Build()
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestBuild_PlainLikeKeepsCallerWildcards(t *testing.T) {
	sql, args := New().Where("p.code", Like, "A_1%").Build()
	assert.Equal(t, " WHERE LOWER(p.code) LIKE LOWER(?)", sql)
	assert.Equal(t, []any{"A_1%"}, args)
}

func TestBuildCount_OmitsOrderAndPage(t *testing.T) {
	sql, args := New().Where("s.status", Eq, "confirmed").OrderBy("s.id", false).Page(5, 5).BuildCount()
	assert.Equal(t, " WHERE s.status = ?", sql)
	assert.Equal(t, []any{"confirmed"}, args)
}

func TestBuild_OffsetWithoutLimitIgnored(t *testing.T) {
	sql, args := New().OrderBy("id", false).Page(0, 40).Build()
	assert.Equal(t, " ORDER BY id DESC", sql)
	assert.Empty(t, args)
}

func TestResolve(t *testing.T) {
	allowed := map[string]string{"name": "p.name", "code": "p.code"}

	col, err := Resolve(allowed, "", "p.id")
	require.NoError(t, err)
	assert.Equal(t, "p.id", col)

	col, err = Resolve(allowed, "code", "p.id")
	require.NoError(t, err)
	assert.Equal(t, "p.code", col)

	_, err = Resolve(allowed, "p.id; DROP TABLE products", "p.id")
	assert.True(t, errors.Is(err, ErrUnknownOrder))
}
