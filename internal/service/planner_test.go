package service

import (
	"path/filepath"
	"testing"

	"coldvault-go/internal/model"
	"coldvault-go/pkg/checksum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

func TestRanges(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		chunk     int64
		wantSizes []int64
	}{
		{"12MiB in 5MiB chunks", 12 * mib, 5 * mib, []int64{5 * mib, 5 * mib, 2 * mib}},
		{"exact multiple", 10, 5, []int64{5, 5}},
		{"smaller than chunk", 1, 5, []int64{1}},
		{"empty", 0, 5, nil},
		{"invalid chunk", 10, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := Ranges(tt.size, tt.chunk)
			require.Len(t, ranges, len(tt.wantSizes))
			for i, r := range ranges {
				assert.Equal(t, i, r.Index)
				assert.Equal(t, tt.wantSizes[i], r.End-r.Start)
			}
		})
	}
}

func TestRanges_CoverWithoutGaps(t *testing.T) {
	for size := int64(1); size <= 64; size++ {
		for chunk := int64(1); chunk <= 9; chunk++ {
			ranges := Ranges(size, chunk)
			require.Len(t, ranges, int((size+chunk-1)/chunk), "size=%d chunk=%d", size, chunk)
			var next int64
			for _, r := range ranges {
				require.Equal(t, next, r.Start)
				require.LessOrEqual(t, r.End-r.Start, chunk)
				require.Greater(t, r.End, r.Start)
				next = r.End
			}
			require.Equal(t, size, next)
		}
	}
}

func TestPlanner_TwelveMiBArchive(t *testing.T) {
	h := newHarness(t, 5*mib)
	content := payload(12 * mib)
	a := h.createArchive(content)

	parts := h.parts(a.ID)
	require.Len(t, parts, 3)
	local := filepath.Join(h.root, a.Path())
	wantSizes := []int64{5 * mib, 5 * mib, 2 * mib}
	for i, p := range parts {
		assert.Equal(t, i, p.PartIndex)
		assert.Equal(t, wantSizes[i], p.Size())
		sum, err := checksum.Range(local, p.StartByte, p.EndByte)
		require.NoError(t, err)
		assert.Equal(t, sum, p.Checksum)
		assert.Equal(t, checksum.Bytes(content[p.StartByte:p.EndByte]), p.Checksum)
		assert.False(t, p.Uploaded)
		assert.False(t, p.Cached)
	}

	jobs := h.scheduled()
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.Equal(t, model.DirectionUpload, j.Direction)
		assert.Equal(t, parts[i].ID, j.PartID)
	}
}

func TestPlanner_InitializeTwiceIsRejected(t *testing.T) {
	h := newHarness(t, 4)
	a := h.createArchive([]byte("0123456789"))

	_, err := h.planner.Initialize(h.ctx, a, 4)
	assert.ErrorIs(t, err, ErrAlreadyPlanned)
	assert.Len(t, h.parts(a.ID), 3)
	assert.Len(t, h.scheduled(), 3)
}

func TestPlanner_PlanIsPure(t *testing.T) {
	h := newHarness(t, 4)
	a := h.createArchive([]byte("0123456789"))

	planned, err := h.planner.Plan(a, 3)
	require.NoError(t, err)
	require.Len(t, planned, 4)
	assert.Equal(t, checksum.Bytes([]byte("9")), planned[3].Checksum)
	// 只读计算，不改变已保存的分片
	assert.Len(t, h.parts(a.ID), 3)

	_, err = h.planner.Plan(a, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
