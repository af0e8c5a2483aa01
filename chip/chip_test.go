package chip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/chip"
)

func TestDeriveOccupancyMatchesFormula(t *testing.T) {
	// scalar demand 30 (+2 VCC = 32, round8 -> 32), vector demand 20
	// (round4 -> 20). RDNA2 total scalar = 512.
	got := chip.DeriveOccupancy(chip.RDNA2, 30, 20)
	want := 10
	if byVector := 256 / 20; byVector < want {
		want = byVector
	}
	if bySc := 512 / 32; bySc < want {
		want = bySc
	}
	assert.Equal(t, want, got)
}

func TestSelectWaveTableEntryS3(t *testing.T) {
	// S3: max live scalar = 30, vector = 20 -> smallest entry that fits
	// is (46, 24).
	e, ok := chip.SelectWaveTableEntry(30, 20)
	assert.True(t, ok)
	assert.Equal(t, 46, e.MaxSGPR)
	assert.Equal(t, 24, e.MaxVGPR)
}

func TestSelectWaveTableEntryResourceExhaustion(t *testing.T) {
	_, ok := chip.SelectWaveTableEntry(200, 300)
	assert.False(t, ok)
}

func TestSelectByVectorBoundIgnoresScalarColumn(t *testing.T) {
	e, ok := chip.SelectByVectorBound(120)
	assert.True(t, ok)
	assert.Equal(t, 100, e.MaxSGPR)
	assert.Equal(t, 256, e.MaxVGPR)

	_, ok = chip.SelectByVectorBound(300)
	assert.False(t, ok)
}

func TestTotalScalarFootprintAddsVCCReservation(t *testing.T) {
	e, ok := chip.SelectWaveTableEntry(30, 20)
	assert.True(t, ok)
	assert.Equal(t, 48, e.TotalScalarFootprint())
}

func TestTotalScalarRegsPerChipClass(t *testing.T) {
	assert.Equal(t, 512, chip.TotalScalarRegs(chip.RDNA2))
	assert.Equal(t, 104, chip.MaxAddressableScalarIndex(chip.RDNA2))
	assert.Equal(t, 800, chip.TotalScalarRegs(chip.CDNA2))
	assert.Equal(t, 102, chip.MaxAddressableScalarIndex(chip.CDNA2))
}
