package rosmsg

import (
	"testing"
	"time"

	"github.com/roadscope/scene-processing-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolvesDependencies(t *testing.T) {
	s, err := Parse(testutil.TwistStampedType, testutil.TwistStampedDef)
	require.NoError(t, err)

	assert.Equal(t, testutil.TwistStampedType, s.Root.Name)
	require.Len(t, s.Root.Fields, 2)
	assert.Equal(t, "std_msgs/Header", s.Root.Fields[0].Type)
	assert.Equal(t, "geometry_msgs/Twist", s.Root.Fields[1].Type)
	assert.Contains(t, s.specs, "geometry_msgs/Vector3")
}

func TestParseSkipsConstantsAndComments(t *testing.T) {
	s, err := Parse(testutil.NavSatFixType, testutil.NavSatFixDef)
	require.NoError(t, err)

	var names []string
	for _, f := range s.Root.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"header", "status", "latitude", "longitude", "altitude", "position_covariance", "position_covariance_type"}, names)
	assert.Equal(t, 9, s.Root.Fields[5].Len)

	status := s.specs["sensor_msgs/NavSatStatus"]
	require.NotNil(t, status)
	assert.Len(t, status.Fields, 2)
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse("pkg/Thing", "Missing value\n")
	assert.ErrorIs(t, err, ErrDefinition)
}

func TestDecodeNavSatFix(t *testing.T) {
	s, err := Parse(testutil.NavSatFixType, testutil.NavSatFixDef)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 250000000)
	m, err := s.Decode(testutil.NavSatFix(ts, 48.137, 11.575, 519.5))
	require.NoError(t, err)

	lat, ok := Float(m, "latitude")
	require.True(t, ok)
	assert.InDelta(t, 48.137, lat, 1e-9)

	service, ok := Float(m, "status.service")
	require.True(t, ok)
	assert.Equal(t, 1.0, service)

	frame, ok := String(m, "header.frame_id")
	require.True(t, ok)
	assert.Equal(t, "gps", frame)

	stamp, ok := HeaderStamp(m)
	require.True(t, ok)
	assert.InDelta(t, 1700000000.25, stamp, 1e-6)
}

func TestDecodePointCloudByteArrayAliases(t *testing.T) {
	s, err := Parse(testutil.PointCloud2Type, testutil.PointCloud2Def)
	require.NoError(t, err)

	m, err := s.Decode(testutil.PointCloud2(time.Unix(10, 0), 5))
	require.NoError(t, err)

	data, ok := m["data"].([]byte)
	require.True(t, ok)
	assert.Len(t, data, 60)

	fields, ok := m["fields"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 3)
	name, _ := String(fields[2].(map[string]any), "name")
	assert.Equal(t, "z", name)
}

func TestDecodeTruncated(t *testing.T) {
	s, err := Parse(testutil.NavSatFixType, testutil.NavSatFixDef)
	require.NoError(t, err)

	payload := testutil.NavSatFix(time.Unix(1, 0), 1, 2, 3)
	_, err = s.Decode(payload[:len(payload)-20])
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeRejectsHugeArrayCount(t *testing.T) {
	s, err := Parse("pkg/Ranges", "float32[] ranges\n")
	require.NoError(t, err)

	var w testutil.Writer
	w.Uint32(1 << 30)
	_, err = s.Decode(w.Bytes())
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float32(1.5), 1.5, true},
		{int8(-3), -3, true},
		{uint64(7), 7, true},
		{true, 1, true},
		{Time{Sec: 2, Nsec: 500000000}, 2.5, true},
		{"speed", 0, false},
		{[]byte{1}, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%T", tt.in)
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}
}
