package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func TestNewDefaults(t *testing.T) {
	o := New("김민지", "010-1234-5678", "1호", "초코", "2025-12-24", "10:00")
	assert.Equal(t, DefaultText, o.DesignDesc)
	assert.Equal(t, DefaultText, o.Lettering)
	assert.False(t, o.HasColor)
	assert.False(t, o.HasImage)
	assert.Zero(t, o.ObjectCount)
	assert.Equal(t, "주문제작", o.Decoration)
}

func TestPatchApplyIsShallowOverride(t *testing.T) {
	current := New("김민지", "010-1234-5678", "1호", "초코", "2025-12-24", "10:00")
	current.DesignDesc = "A"
	current.Lettering = "B"

	patch := Patch{DesignDesc: strPtr("C")}
	updated := patch.Apply(current)

	assert.Equal(t, "C", updated.DesignDesc)
	assert.Equal(t, "B", updated.Lettering)
}

func TestPatchApplyDoesNotMutateInput(t *testing.T) {
	current := New("김민지", "010-1234-5678", "1호", "초코", "2025-12-24", "10:00")
	current.DesignDesc = "original"

	patch := Patch{
		DesignDesc:  strPtr("replaced"),
		HasColor:    boolPtr(true),
		ObjectCount: intPtr(2),
	}
	updated := patch.Apply(current)

	assert.Equal(t, "original", current.DesignDesc)
	assert.False(t, current.HasColor)
	assert.Zero(t, current.ObjectCount)

	assert.Equal(t, "replaced", updated.DesignDesc)
	assert.True(t, updated.HasColor)
	assert.Equal(t, 2, updated.ObjectCount)
}

func TestPatchApplyClampsNegativeObjectCount(t *testing.T) {
	current := New("김민지", "010-1234-5678", "1호", "초코", "2025-12-24", "10:00")
	updated := Patch{ObjectCount: intPtr(-3)}.Apply(current)
	assert.Zero(t, updated.ObjectCount)
}

func TestPatchIsZero(t *testing.T) {
	assert.True(t, Patch{}.IsZero())
	assert.False(t, Patch{Lettering: strPtr("생일 축하해")}.IsZero())
}
