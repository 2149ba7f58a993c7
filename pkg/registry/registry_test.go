// pkg/registry/registry_test.go
package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:          "calculate-health-score",
				DisplayName: "Calculate Health Score",
				Category:    "deal",
				TaskType:    "calculate-health-score",
			},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")

	require.NoError(t, SaveRegistry(sampleRegistry(), path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, loaded.Activities, 1)
	assert.Equal(t, "calculate-health-score", loaded.Activities[0].ID)
	assert.NotEmpty(t, loaded.LastUpdated)
}

func TestFind(t *testing.T) {
	reg := sampleRegistry()

	assert.NotNil(t, reg.Find("calculate-health-score"))
	assert.Nil(t, reg.Find("unknown-task"))
}

func TestUpsert_ReplacesExistingByID(t *testing.T) {
	reg := sampleRegistry()

	reg.Upsert(Activity{
		ID:          "calculate-health-score",
		DisplayName: "Calculate Health Score",
		Category:    "deal",
		TaskType:    "calculate-health-score",
		Version:     "1.1.0",
	})
	reg.Upsert(Activity{
		ID:          "persist-health-score",
		DisplayName: "Persist Health Score",
		Category:    "deal",
		TaskType:    "persist-health-score",
	})

	require.Len(t, reg.Activities, 2)
	assert.Equal(t, "1.1.0", reg.Activities[0].Version)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ActivityRegistry)
		wantErr string
	}{
		{
			name:   "valid registry",
			mutate: func(*ActivityRegistry) {},
		},
		{
			name:    "empty registry",
			mutate:  func(r *ActivityRegistry) { r.Activities = nil },
			wantErr: "no activities",
		},
		{
			name: "duplicate id",
			mutate: func(r *ActivityRegistry) {
				r.Activities = append(r.Activities, r.Activities[0])
			},
			wantErr: "duplicate activity ID",
		},
		{
			name: "missing task type",
			mutate: func(r *ActivityRegistry) {
				r.Activities[0].TaskType = ""
			},
			wantErr: "missing required field: TaskType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := sampleRegistry()
			tt.mutate(reg)

			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
