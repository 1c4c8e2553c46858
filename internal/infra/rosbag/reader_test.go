package rosbag

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/roadscope/scene-processing-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBag(compression string) *testutil.Bag {
	bag := testutil.NewBag()
	bag.Compression = compression
	cam := bag.AddConnection("/camera/front/image_raw/compressed", testutil.CompressedImageType, testutil.CompressedImageDef)
	gps := bag.AddConnection("/gps/fix", testutil.NavSatFixType, testutil.NavSatFixDef)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		bag.AddMessage(cam, ts, testutil.CompressedImage(ts, "jpeg", []byte{0xFF, 0xD8, byte(i)}))
		bag.AddMessage(gps, ts, testutil.NavSatFix(ts, 48.1, 11.5, 520))
	}
	return bag
}

func TestReaderMessagesInOrder(t *testing.T) {
	for _, compression := range []string{"none", "lz4"} {
		t.Run(compression, func(t *testing.T) {
			data, err := sampleBag(compression).Bytes()
			require.NoError(t, err)

			r, err := NewReader(bytes.NewReader(data))
			require.NoError(t, err)

			it, err := r.Messages(nil)
			require.NoError(t, err)

			var topics []string
			var last time.Time
			for {
				msg, err := it.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				assert.False(t, msg.Timestamp.Before(last))
				last = msg.Timestamp
				topics = append(topics, msg.Topic)
			}

			assert.Len(t, topics, 6)
			assert.Equal(t, "/camera/front/image_raw/compressed", topics[0])
			assert.Equal(t, "/gps/fix", topics[1])
			assert.Zero(t, it.SkippedChunks)
		})
	}
}

func TestReaderFilter(t *testing.T) {
	data, err := sampleBag("none").Bytes()
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	it, err := r.Messages(func(c *Connection) bool { return c.Topic == "/gps/fix" })
	require.NoError(t, err)

	count := 0
	for {
		msg, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, testutil.NavSatFixType, msg.Type)
		assert.Contains(t, msg.Definition, "float64 latitude")
		count++
	}
	assert.Equal(t, 3, count)
	assert.Len(t, it.Connections(), 2)
}

func TestReaderConnections(t *testing.T) {
	for _, unindexed := range []bool{false, true} {
		bag := sampleBag("none")
		bag.Unindexed = unindexed
		data, err := bag.Bytes()
		require.NoError(t, err)

		r, err := NewReader(bytes.NewReader(data))
		require.NoError(t, err)

		conns, err := r.Connections()
		require.NoError(t, err)
		require.Len(t, conns, 2)
		assert.Equal(t, "/camera/front/image_raw/compressed", conns[0].Topic)
		assert.Equal(t, testutil.CompressedImageType, conns[0].Type)
		assert.Equal(t, "/gps/fix", conns[1].Topic)

		// Listing connections must not disturb a later pass.
		it, err := r.Messages(nil)
		require.NoError(t, err)
		_, err = it.Next()
		require.NoError(t, err)
	}
}

func TestNewReaderRejectsNonBag(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not a bag at all")))
	assert.ErrorIs(t, err, ErrNotBag)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bag"))
	assert.Error(t, err)
}

func TestReaderTruncatedBag(t *testing.T) {
	data, err := sampleBag("none").Bytes()
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(data[:len(data)/2]))
	require.NoError(t, err)

	it, err := r.Messages(nil)
	require.NoError(t, err)

	var got int
	var lastErr error
	for {
		_, err := it.Next()
		if err != nil {
			lastErr = err
			break
		}
		got++
	}
	assert.Less(t, got, 6)
	assert.NotErrorIs(t, lastErr, io.EOF)
}
