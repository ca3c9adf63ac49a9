package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogMembership(t *testing.T) {
	assert.Len(t, Modules(), 12)
	assert.Len(t, Teachers(), 8)

	assert.True(t, IsModule("Droit du numérique"))
	assert.True(t, IsTeacher("Prof. Martin DUPONT"))

	assert.False(t, IsModule("droit du numérique"))
	assert.False(t, IsTeacher(""))
}

func TestModulesReturnsCopy(t *testing.T) {
	m := Modules()
	m[0] = "changed"
	assert.Equal(t, "Droit du numérique", Modules()[0])
}
