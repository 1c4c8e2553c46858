package extraction

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/infra/rosbag"
	"github.com/roadscope/scene-processing-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bagSource(t *testing.T, bag *testutil.Bag) *rosbag.MessageIterator {
	t.Helper()
	data, err := bag.Bytes()
	require.NoError(t, err)
	r, err := rosbag.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	it, err := r.Messages(nil)
	require.NoError(t, err)
	return it
}

func TestDispatcherExtractsTelemetryAmongNoise(t *testing.T) {
	bag := testutil.NewBag()
	gps := bag.AddConnection("/gps/fix", testutil.NavSatFixType, testutil.NavSatFixDef)
	noise := bag.AddConnection("/rosout", "rosgraph_msgs/Log", "string msg\n")
	lidar := bag.AddConnection("/velodyne_points", testutil.PointCloud2Type, testutil.PointCloud2Def)

	base := time.Unix(1700000000, 0)
	const n = 25
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		bag.AddMessage(noise, ts, []byte{1, 0, 0, 0, 'x'})
		bag.AddMessage(gps, ts, testutil.NavSatFix(ts, 48+float64(i)*0.001, 11.5, 520))
		if i%5 == 0 {
			bag.AddMessage(lidar, ts, testutil.PointCloud2(ts, 4))
		}
	}

	d := NewDispatcher(nil, zap.NewNop())
	res, err := d.Extract(context.Background(), bagSource(t, bag), "scene-1")
	require.NoError(t, err)

	assert.Equal(t, "scene-1", res.SceneID)
	require.Len(t, res.Telemetry, n)
	assert.Equal(t, n, res.TelemetryPointCount)
	for i, p := range res.Telemetry {
		require.NotNil(t, p.Latitude)
		assert.InDelta(t, 48+float64(i)*0.001, *p.Latitude, 1e-9)
		assert.InDelta(t, 11.5, *p.Longitude, 1e-9)
		assert.InDelta(t, 520, *p.Altitude, 1e-9)
		if i > 0 {
			assert.Greater(t, p.Timestamp, res.Telemetry[i-1].Timestamp)
		}
	}

	require.Len(t, res.Lidar, 5)
	assert.Equal(t, 4, res.Lidar[0].PointCount)
	assert.Equal(t, []string{"x", "y", "z"}, res.Lidar[0].Fields)

	assert.Equal(t, n, res.Stats.Unknown)
	assert.Equal(t, n+n+5, res.Stats.Messages)
	assert.Equal(t, n+5, res.Stats.Records)
	assert.Zero(t, res.Stats.DecodeErrors)
	assert.False(t, res.Stats.Truncated)
	assert.Empty(t, res.Camera)
	assert.Empty(t, res.Vehicle)
}

func TestDispatcherSkipsCorruptMessages(t *testing.T) {
	bag := testutil.NewBag()
	gps := bag.AddConnection("/gps/fix", testutil.NavSatFixType, testutil.NavSatFixDef)
	broken := bag.AddConnection("/imu", "sensor_msgs/Imu", "Quaternion orientation\n")

	ts := time.Unix(1700000000, 0)
	bag.AddMessage(gps, ts, testutil.NavSatFix(ts, 1, 2, 3))
	bag.AddMessage(gps, ts, []byte{0x01, 0x02})
	bag.AddMessage(broken, ts, []byte{0x00})
	bag.AddMessage(gps, ts.Add(time.Second), testutil.NavSatFix(ts, 4, 5, 6))

	res, err := NewDispatcher(nil, zap.NewNop()).Extract(context.Background(), bagSource(t, bag), "s")
	require.NoError(t, err)

	assert.Len(t, res.Telemetry, 2)
	assert.Equal(t, 2, res.Stats.DecodeErrors)
	assert.Equal(t, 4, res.Stats.Messages)
}

func TestDispatcherCompressedImageNotDecoded(t *testing.T) {
	img := testutil.JPEG(4, 4)
	src := &testutil.SliceSource{Messages: []*entity.RawMessage{
		{
			Topic:      "/camera/front/image_raw/compressed",
			Type:       testutil.CompressedImageType,
			Definition: "this definition does not parse",
			Timestamp:  time.Unix(1700000000, 500000000),
			Data:       append([]byte{0, 0, 0}, img...),
		},
	}}

	res, err := NewDispatcher(nil, zap.NewNop()).Extract(context.Background(), src, "s")
	require.NoError(t, err)

	require.Len(t, res.Camera, 1)
	frame := res.Camera[0]
	assert.True(t, frame.Compressed)
	assert.Equal(t, "jpeg", frame.Format)
	assert.Equal(t, len(img)+3, frame.ByteLength)
	assert.InDelta(t, 1700000000.5, frame.Timestamp, 1e-6)
	assert.Equal(t, 1, res.FrameCount)
	assert.Zero(t, res.Stats.DecodeErrors)
}

func TestDispatcherVehicleState(t *testing.T) {
	bag := testutil.NewBag()
	vs := bag.AddConnection("/vehicle/state", testutil.VehicleStateType, testutil.VehicleStateDef)
	tw := bag.AddConnection("/vehicle/twist", testutil.TwistStampedType, testutil.TwistStampedDef)

	ts := time.Unix(1700000000, 0)
	bag.AddMessage(vs, ts, testutil.VehicleState(ts, 12.5, 0.25, 3))
	bag.AddMessage(tw, ts, testutil.TwistStamped(ts, 8, 0.1))

	res, err := NewDispatcher(nil, zap.NewNop()).Extract(context.Background(), bagSource(t, bag), "s")
	require.NoError(t, err)
	require.Len(t, res.Vehicle, 2)

	state := res.Vehicle[0]
	require.NotNil(t, state.Speed)
	require.NotNil(t, state.SteeringAngle)
	assert.InDelta(t, 12.5, *state.Speed, 1e-6)
	assert.InDelta(t, 0.25, *state.SteeringAngle, 1e-6)
	assert.InDelta(t, 3, state.Values["gear"], 1e-9)
	assert.NotContains(t, state.Values, "header.seq")

	twist := res.Vehicle[1]
	require.NotNil(t, twist.Speed)
	assert.InDelta(t, 8, *twist.Speed, 1e-9)
	assert.Nil(t, twist.SteeringAngle)
}

func TestDispatcherTruncatedSource(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	src := &testutil.SliceSource{
		Messages: []*entity.RawMessage{{
			Topic:      "/gps/fix",
			Type:       testutil.NavSatFixType,
			Definition: testutil.NavSatFixDef,
			Timestamp:  ts,
			Data:       testutil.NavSatFix(ts, 1, 2, 3),
		}},
		Err: errors.New("unexpected EOF"),
	}

	res, err := NewDispatcher(nil, zap.NewNop()).Extract(context.Background(), src, "s")
	require.NoError(t, err)
	assert.True(t, res.Stats.Truncated)
	assert.Len(t, res.Telemetry, 1)
}

func TestDispatcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDispatcher(nil, zap.NewNop()).Extract(ctx, &testutil.SliceSource{}, "s")
	assert.ErrorIs(t, err, context.Canceled)
}
