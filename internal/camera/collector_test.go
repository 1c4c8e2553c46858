package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func frameMsg(topic string, ts time.Time, data []byte) *entity.RawMessage {
	return &entity.RawMessage{
		Topic:     topic,
		Type:      testutil.CompressedImageType,
		Timestamp: ts,
		Data:      testutil.CompressedImage(ts, "jpeg", data),
	}
}

func TestCollectorCollect(t *testing.T) {
	base := time.Unix(1700000000, 0)
	front := entity.CameraTopic{Topic: "/camera/front/image_raw/compressed", Name: "front"}
	rear := entity.CameraTopic{Topic: "/camera/rear/image_raw/compressed", Name: "rear"}

	src := &testutil.SliceSource{Messages: []*entity.RawMessage{
		frameMsg(front.Topic, base.Add(200*time.Millisecond), testutil.JPEG(8, 8)),
		{Topic: "/gps/fix", Type: testutil.NavSatFixType, Timestamp: base, Data: testutil.NavSatFix(base, 1, 2, 3)},
		frameMsg(front.Topic, base, testutil.PNG(8, 8)),
		frameMsg(front.Topic, base.Add(100*time.Millisecond), []byte("corrupt")),
		frameMsg(front.Topic, base.Add(100*time.Millisecond), testutil.JPEG(8, 8)),
	}}

	dir := t.TempDir()
	c := NewCollector(90, zap.NewNop())
	got, err := c.Collect(context.Background(), src, []entity.CameraTopic{front, rear}, dir)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "front", got[0].Topic.Name)
	assert.Len(t, got[0].Frames, 3)
	assert.Equal(t, 1, got[0].Misses)
	assert.Empty(t, got[1].Frames)
	assert.Zero(t, got[1].Misses)

	set, err := got[0].Sequence()
	require.NoError(t, err)
	assert.Equal(t, "front", set.Camera)
	require.Len(t, set.Frames, 3)
	for i, f := range set.Frames {
		assert.Equal(t, i, f.Sequence)
		assert.Equal(t, filepath.Join(dir, "front", fmt.Sprintf(FramePattern, i)), f.Path)
		if i > 0 {
			assert.Greater(t, f.Timestamp, set.Frames[i-1].Timestamp)
		}

		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		_, format, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	}
}

func TestCollectorKeepsFramesOnReadError(t *testing.T) {
	front := entity.CameraTopic{Topic: "/cam/front/compressed", Name: "front"}
	ts := time.Unix(1700000000, 0)
	src := &testutil.SliceSource{
		Messages: []*entity.RawMessage{frameMsg(front.Topic, ts, testutil.JPEG(4, 4))},
		Err:      errors.New("unexpected EOF"),
	}

	got, err := NewCollector(0, zap.NewNop()).Collect(context.Background(), src, []entity.CameraTopic{front}, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, got[0].Frames, 1)
}

func TestCollectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCollector(90, zap.NewNop()).Collect(ctx, &testutil.SliceSource{}, nil, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
