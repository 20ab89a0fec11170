package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

func intPtr(v int) *int { return &v }

func medWithDoses(n int) medication.Medication {
	doses := make([]medication.Dose, n)
	for i := range doses {
		doses[i] = medication.Dose{TimeOfDay: medication.TimeOfDay{Hour: 8 + i}}
	}
	return medication.Medication{ID: "med-1", Name: "Metformin", Doses: doses}
}

func TestComputeDaysRemaining(t *testing.T) {
	med := medWithDoses(2)
	med.RemainingStock = intPtr(10)

	f := Compute(med)
	assert.Equal(t, 2, f.DosesPerDay)
	require.NotNil(t, f.DaysRemaining)
	assert.Equal(t, 5, *f.DaysRemaining)
	assert.False(t, f.IsLowStock)
}

func TestComputeTruncatesPartialDays(t *testing.T) {
	med := medWithDoses(3)
	med.RemainingStock = intPtr(10)

	f := Compute(med)
	require.NotNil(t, f.DaysRemaining)
	assert.Equal(t, 3, *f.DaysRemaining)
}

func TestComputeUnknownStock(t *testing.T) {
	f := Compute(medWithDoses(2))
	assert.Nil(t, f.DaysRemaining)
	assert.False(t, f.IsLowStock)
}

func TestComputeNoDoses(t *testing.T) {
	med := medWithDoses(0)
	med.RemainingStock = intPtr(30)

	f := Compute(med)
	assert.Equal(t, 0, f.DosesPerDay)
	assert.Nil(t, f.DaysRemaining)
	assert.False(t, f.IsLowStock)
}

func TestComputeZeroStock(t *testing.T) {
	med := medWithDoses(2)
	med.RemainingStock = intPtr(0)
	med.LowStockThreshold = intPtr(3)

	f := Compute(med)
	require.NotNil(t, f.DaysRemaining)
	assert.Equal(t, 0, *f.DaysRemaining)
	assert.True(t, f.IsLowStock)
}

func TestComputeHalfUsedPackage(t *testing.T) {
	med := medWithDoses(2) // 09:00 and 21:00
	med.Quantity = intPtr(30)
	med.RemainingStock = intPtr(10)

	med.LowStockThreshold = intPtr(7)
	f := Compute(med)
	require.NotNil(t, f.DaysRemaining)
	assert.Equal(t, 5, *f.DaysRemaining)
	assert.True(t, f.IsLowStock)

	med.LowStockThreshold = intPtr(3)
	assert.False(t, Compute(med).IsLowStock)
}

func TestComputeLowStockThreshold(t *testing.T) {
	med := medWithDoses(2)
	med.RemainingStock = intPtr(30) // 15 days
	med.LowStockThreshold = intPtr(15)

	f := Compute(med)
	assert.True(t, f.IsLowStock, "threshold is inclusive")

	med.LowStockThreshold = intPtr(14)
	assert.False(t, Compute(med).IsLowStock)

	med.LowStockThreshold = nil
	assert.False(t, Compute(med).IsLowStock)
}
