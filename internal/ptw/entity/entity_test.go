package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScanMalformed(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan([]byte(`{"not":"an array"`)))
	assert.Equal(t, StringArray{}, a)

	require.NoError(t, a.Scan(nil))
	assert.Equal(t, StringArray{}, a)

	require.NoError(t, a.Scan([]byte(`["fire","fumes"]`)))
	assert.Equal(t, StringArray{"fire", "fumes"}, a)
}

func TestPersonnelListScanMalformed(t *testing.T) {
	var p PersonnelList
	require.NoError(t, p.Scan([]byte(`broken`)))
	assert.Equal(t, PersonnelList{}, p)

	require.NoError(t, p.Scan([]byte(`[{"name":"A. Demir","role":"welder"}]`)))
	require.Len(t, p, 1)
	assert.Equal(t, "A. Demir", p[0].Name)
	assert.Equal(t, "welder", p[0].Role)
}

func TestStringArrayValueNeverNull(t *testing.T) {
	var a StringArray
	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)
}

func TestRequiresAtmosphericTest(t *testing.T) {
	assert.True(t, RequiresAtmosphericTest(PermitTypeConfinedSpace, ""))
	assert.True(t, RequiresAtmosphericTest(PermitTypeHotWork, ""))
	assert.True(t, RequiresAtmosphericTest(PermitTypeColdWork, "Kapalı Mekanda Çalışma"))
	assert.True(t, RequiresAtmosphericTest(PermitTypeElectrical, "Ateşli İşler"))
	assert.False(t, RequiresAtmosphericTest(PermitTypeColdWork, "Genel Bakım"))
	assert.False(t, RequiresAtmosphericTest(PermitTypeExcavation, ""))
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	p := &Permit{
		Status:     PermitStatusActive,
		ValidFrom:  now.Add(-2 * time.Hour),
		ValidUntil: now.Add(time.Hour),
	}
	assert.Equal(t, PermitStatusActive, p.EffectiveStatus(now))
	assert.Equal(t, PermitStatusExpired, p.EffectiveStatus(p.ValidUntil))
	assert.Equal(t, PermitStatusExpired, p.EffectiveStatus(p.ValidUntil.Add(time.Minute)))

	p.Status = PermitStatusApproved
	assert.Equal(t, PermitStatusExpired, p.EffectiveStatus(p.ValidUntil.Add(time.Minute)))

	// terminal statuses never report expired
	p.Status = PermitStatusCompleted
	assert.Equal(t, PermitStatusCompleted, p.EffectiveStatus(p.ValidUntil.Add(time.Minute)))

	p.Status = PermitStatusDraft
	assert.Equal(t, PermitStatusDraft, p.EffectiveStatus(p.ValidUntil.Add(time.Minute)))
}

func TestMandatoryChecklistCoversAllTypes(t *testing.T) {
	for _, typ := range []string{
		PermitTypeHotWork,
		PermitTypeConfinedSpace,
		PermitTypeElectrical,
		PermitTypeWorkingAtHeights,
		PermitTypeMobileCrane,
		PermitTypeExcavation,
	} {
		assert.NotEmpty(t, MandatoryChecklist(typ), "type %s", typ)
	}
	assert.Empty(t, MandatoryChecklist(PermitTypeColdWork))
}
