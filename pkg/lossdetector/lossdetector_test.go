package lossdetector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLossDetector(t *testing.T) {
	d := &LossDetector{}

	p, i := d.Process(1, 1)
	require.Equal(t, uint64(0), p)
	require.Equal(t, uint64(0), i)

	p, i = d.Process(2, 1)
	require.Equal(t, uint64(0), p)
	require.Equal(t, uint64(0), i)

	p, i = d.Process(5, 1)
	require.Equal(t, uint64(2), p)
	require.Equal(t, uint64(1), i)

	p, i = d.Process(10, 3)
	require.Equal(t, uint64(4), p)
	require.Equal(t, uint64(3), i)

	require.Equal(t, uint64(11), d.ExpectedPacketNumber())
}

func TestLossDetectorDuplicate(t *testing.T) {
	d := &LossDetector{}

	d.Process(1, 1)
	d.Process(2, 1)

	p, _ := d.Process(2, 1)
	require.Equal(t, uint64(0), p)

	p, _ = d.Process(1, 1)
	require.Equal(t, uint64(0), p)
	require.Equal(t, uint64(2), d.ExpectedPacketNumber())
}

func TestLossDetectorImageNumberDecreasing(t *testing.T) {
	d := &LossDetector{}

	d.Process(1, 10)

	p, i := d.Process(20, 2)
	require.Equal(t, uint64(18), p)
	require.Equal(t, uint64(0), i)
}

func TestLossDetectorJoinMidStream(t *testing.T) {
	d := &LossDetector{}

	p, i := d.Process(500, 40)
	require.Equal(t, uint64(499), p)
	require.Equal(t, uint64(41), i)

	d.Reset()

	p, i = d.Process(1, 1)
	require.Equal(t, uint64(0), p)
	require.Equal(t, uint64(0), i)
}

func TestLossDetectorMaxPacketNumber(t *testing.T) {
	d := &LossDetector{}

	d.Process(0xFFFFFFFE, 1)

	p, _ := d.Process(0xFFFFFFFF, 1)
	require.Equal(t, uint64(0), p)
}
