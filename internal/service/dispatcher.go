package service

import (
	"context"
	"errors"
	"time"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/internal/transfer"
	"coldvault-go/pkg/kafka"
	"coldvault-go/pkg/lock"
	"coldvault-go/pkg/tasks"

	"go.uber.org/zap"
)

// Dispatcher 轮询 scheduled 任务并按获取顺序逐个执行。
type Dispatcher struct {
	jobs      repository.JobRepository
	remote    *RemoteResolver
	publisher kafka.Publisher
	locker    lock.Locker
	settings  Settings
	log       *zap.SugaredLogger
	now       func() time.Time
}

// NewDispatcher 创建一个新的 Dispatcher。
func NewDispatcher(jobs repository.JobRepository, remote *RemoteResolver, publisher kafka.Publisher, locker lock.Locker, settings Settings, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		jobs:      jobs,
		remote:    remote,
		publisher: publisher,
		locker:    locker,
		settings:  settings,
		log:       log,
		now:       time.Now,
	}
}

// RunOnce 执行一轮分发，返回成功完成的任务数。
// 单个任务的失败只记录日志，任务保持 scheduled 等待下一轮。
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	completed := 0
	err := runLocked(ctx, d.locker, PassTransfer, d.settings.LockTTL, d.log, func(ctx context.Context) error {
		var err error
		completed, err = d.dispatch(ctx)
		return err
	})
	return completed, err
}

func (d *Dispatcher) dispatch(ctx context.Context) (int, error) {
	conn, store, err := d.remote.Active(ctx)
	if errors.Is(err, ErrNoActiveConnection) {
		d.log.Info("[Dispatcher] 没有活跃的远端连接")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	records, err := d.jobs.FindScheduled(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		d.log.Debug("[Dispatcher] 没有待执行的任务")
		return 0, nil
	}

	env := transfer.Env{
		Store:   store,
		Conn:    conn,
		Jobs:    d.jobs,
		Root:    d.settings.Root,
		Timeout: d.settings.RemoteTimeout,
		Now:     d.now,
	}
	completed := 0
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		rec := &records[i]
		job, err := transfer.New(rec, env)
		if err != nil {
			d.log.Errorf("[Dispatcher] 无法构造任务 %d: %v", rec.ID, err)
			continue
		}
		desc := transfer.Describe(job)
		if err := job.Validate(ctx); err != nil {
			d.log.Warnf("[Dispatcher] 任务 %d 预检未通过 (%s): %v", rec.ID, desc, err)
			continue
		}
		d.log.Infof("[Dispatcher] 任务 %d: %s", rec.ID, desc)
		if err := job.Execute(ctx); err != nil {
			d.log.Errorf("[Dispatcher] 任务 %d 执行失败: %v", rec.ID, err)
			continue
		}
		completed++
		d.log.Infof("[Dispatcher] 任务 %d 已完成", rec.ID)
		d.publish(ctx, rec, job)
	}
	return completed, nil
}

func (d *Dispatcher) publish(ctx context.Context, rec *model.PersistentTransferJob, job transfer.Job) {
	ev := tasks.TransferEvent{
		Type:        tasks.EventTransferCompleted,
		JobID:       rec.ID,
		ArchiveID:   rec.Part.ArchiveID,
		Owner:       rec.Part.Archive.Owner,
		PartIndex:   rec.Part.PartIndex,
		Direction:   rec.Direction,
		Source:      job.Source(),
		Destination: job.Destination(),
		CompletedAt: d.now(),
	}
	pctx, cancel := withTimeout(ctx, d.settings.RemoteTimeout)
	defer cancel()
	if err := d.publisher.Publish(pctx, ev); err != nil {
		d.log.Warnf("[Dispatcher] 发布传输事件失败: %v", err)
	}
}

// Run 持续分发直到 ctx 结束；没有完成任何任务时休眠一个心跳间隔。
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Infof("[Dispatcher] 启动, heartbeat=%s", d.settings.Heartbeat)
	for ctx.Err() == nil {
		n, err := d.RunOnce(ctx)
		if err != nil {
			d.log.Errorf("[Dispatcher] 本轮分发失败: %v", err)
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(d.settings.Heartbeat):
		}
	}
	d.log.Info("[Dispatcher] 已停止")
}
