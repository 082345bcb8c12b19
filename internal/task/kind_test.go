package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{"planning", "planning", KindPlanning, false},
		{"implementation", "implementation", KindImplementation, false},
		{"verification", "verification", KindVerification, false},
		{"resume is not a kind", "resume", "", true},
		{"empty", "", "", true},
		{"unknown", "deploy", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_TemplateName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plan", KindPlanning.TemplateName())
	assert.Equal(t, "implement", KindImplementation.TemplateName())
	assert.Equal(t, "verify", KindVerification.TemplateName())
}

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds {
		assert.True(t, k.Valid(), "kind %s", k)
	}
	assert.False(t, Kind("resume").Valid())
	assert.False(t, Kind("").Valid())
}

func TestFeatureID(t *testing.T) {
	t.Parallel()

	id1 := FeatureID("add-auth")
	id2 := FeatureID("add-auth")
	assert.Equal(t, id1, id2, "same name must yield same id")
	assert.Len(t, id1, 4)
	assert.True(t, ValidFeatureID(id1))

	id3 := FeatureID("different-feature")
	assert.NotEqual(t, id1, id3)
}

func TestValidFeatureID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidFeatureID("0007"))
	assert.True(t, ValidFeatureID("9999"))
	assert.False(t, ValidFeatureID("007"))
	assert.False(t, ValidFeatureID("00070"))
	assert.False(t, ValidFeatureID("abcd"))
	assert.False(t, ValidFeatureID(""))
}
