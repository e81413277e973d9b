package service

import (
	"context"
	"fmt"
	"path/filepath"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/checksum"

	"go.uber.org/zap"
)

// PartRange 是一个分片的字节区间 [Start, End)。
type PartRange struct {
	Index int
	Start int64
	End   int64
}

// Ranges 把 size 字节按 chunkSize 切分，共 ceil(size/chunkSize) 段。
func Ranges(size, chunkSize int64) []PartRange {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}
	n := (size + chunkSize - 1) / chunkSize
	ranges := make([]PartRange, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * chunkSize
		ranges = append(ranges, PartRange{
			Index: int(i),
			Start: start,
			End:   min(size, start+chunkSize),
		})
	}
	return ranges
}

// Planner 在归档创建时生成分片元数据与上传任务。
type Planner struct {
	parts repository.PartRepository
	root  string
	log   *zap.SugaredLogger
}

// NewPlanner 创建一个新的 Planner。
func NewPlanner(parts repository.PartRepository, root string, log *zap.SugaredLogger) *Planner {
	return &Planner{parts: parts, root: root, log: log}
}

// Plan 计算分片区间及各自区间的校验和，不写数据库。
func (p *Planner) Plan(archive *model.Archive, chunkSize int64) ([]model.ArchivePartMeta, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidInput, chunkSize)
	}
	local := filepath.Join(p.root, archive.Path())
	ranges := Ranges(archive.Size, chunkSize)
	parts := make([]model.ArchivePartMeta, 0, len(ranges))
	for _, r := range ranges {
		sum, err := checksum.Range(local, r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("checksum part %d of %s: %w", r.Index, archive.ID, err)
		}
		parts = append(parts, model.ArchivePartMeta{
			ArchiveID: archive.ID,
			PartIndex: r.Index,
			StartByte: r.Start,
			EndByte:   r.End,
			Checksum:  sum,
		})
	}
	return parts, nil
}

// Initialize 为归档生成分片并为每个分片安排一个上传任务。
// 已经有分片的归档返回 ErrAlreadyPlanned。
func (p *Planner) Initialize(ctx context.Context, archive *model.Archive, chunkSize int64) ([]model.ArchivePartMeta, error) {
	n, err := p.parts.CountByArchive(ctx, archive.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s has %d parts", ErrAlreadyPlanned, archive.ID, n)
	}
	parts, err := p.Plan(archive, chunkSize)
	if err != nil {
		return nil, err
	}
	if err := p.parts.CreateWithUploadJobs(ctx, parts); err != nil {
		return nil, fmt.Errorf("save parts of %s: %w", archive.ID, err)
	}
	p.log.Infof("[Planner] 归档 %s 已切分为 %d 个分片，已安排上传任务", archive.ID, len(parts))
	return parts, nil
}
