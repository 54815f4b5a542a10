package entity_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/pkg/entity"
)

func TestTristateZeroValueIsUnknown(t *testing.T) {
	var ts entity.Tristate
	assert.True(t, ts.IsUnknown())
	assert.False(t, ts.IsFalse(), "unknown must not collapse to false")
}

func TestTristateJSON(t *testing.T) {
	type doc struct {
		Active entity.Tristate `json:"active"`
	}

	tests := []struct {
		name string
		in   entity.Tristate
		want string
	}{
		{"true", entity.True, `{"active":true}`},
		{"false", entity.False, `{"active":false}`},
		{"unknown is null", entity.Unknown, `{"active":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(doc{Active: tt.in})
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			var out doc
			require.NoError(t, json.Unmarshal(b, &out))
			assert.Equal(t, tt.in, out.Active)
		})
	}
}

func TestTristateRejectsStrings(t *testing.T) {
	var ts entity.Tristate
	err := json.Unmarshal([]byte(`"true"`), &ts)
	assert.Error(t, err, "string encodings are rejected at the boundary")
}

func TestTristateOmittedFieldStaysUnknown(t *testing.T) {
	type doc struct {
		Active entity.Tristate `json:"active"`
	}
	var out doc
	require.NoError(t, json.Unmarshal([]byte(`{}`), &out))
	assert.True(t, out.Active.IsUnknown())
}

func TestTristatePtrRoundTrip(t *testing.T) {
	assert.Nil(t, entity.Unknown.Ptr())
	require.NotNil(t, entity.True.Ptr())
	assert.True(t, *entity.True.Ptr())

	assert.Equal(t, entity.Unknown, entity.TristateFromPtr(nil))
	v := false
	assert.Equal(t, entity.False, entity.TristateFromPtr(&v))
}
