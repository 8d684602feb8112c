package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

func TestSnapshotReadings(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Pass:       PassUpdate,
		Data:       entities.InitialSystemData(now),
		FromDevice: map[entities.SensorKind]bool{entities.KindTemperature: true},
		At:         now,
	}

	r := snap.Readings()
	require.Len(t, r, 3)
	assert.Equal(t, "humid-001", r[0].SensorID)
	assert.Equal(t, "simulated", r[0].Source)
	assert.Equal(t, "device", r[2].Source)
	assert.Equal(t, now, r[2].Timestamp)

	snap.Pass = PassJitter
	assert.Equal(t, "simulated", snap.Readings()[2].Source)
}
