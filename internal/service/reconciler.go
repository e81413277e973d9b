package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/lock"
	"coldvault-go/pkg/storage"

	"go.uber.org/zap"
)

// ReconcileReport 汇总一次对账的结果。
type ReconcileReport struct {
	Healthy        int
	Unhealthy      int
	RemoteDeleted  int
	UploadsQueued  int
	OrphansDeleted int
	Errors         int
}

// Reconciler 让数据库中的分片记录、本地归档文件与远端对象保持一致。
type Reconciler struct {
	parts    repository.PartRepository
	jobs     repository.JobRepository
	remote   *RemoteResolver
	locker   lock.Locker
	settings Settings
	log      *zap.SugaredLogger
}

// NewReconciler 创建一个新的 Reconciler。
func NewReconciler(parts repository.PartRepository, jobs repository.JobRepository, remote *RemoteResolver, locker lock.Locker, settings Settings, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{parts: parts, jobs: jobs, remote: remote, locker: locker, settings: settings, log: log}
}

// Run 在传输锁内执行一次完整对账，与分发互斥。
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	err := runLocked(ctx, r.locker, PassTransfer, r.settings.LockTTL, r.log, func(ctx context.Context) error {
		var err error
		report, err = r.reconcile(ctx)
		return err
	})
	return report, err
}

// HasHealthyRemote 判断分片的远端对象是否存在且摘要与记录一致。
func (r *Reconciler) HasHealthyRemote(ctx context.Context, store storage.ObjectStore, bucket string, part *model.ArchivePartMeta) (bool, error) {
	_, healthy, err := r.remoteState(ctx, store, bucket, part)
	return healthy, err
}

func (r *Reconciler) remoteState(ctx context.Context, store storage.ObjectStore, bucket string, part *model.ArchivePartMeta) (exists, healthy bool, err error) {
	rctx, cancel := withTimeout(ctx, r.settings.RemoteTimeout)
	defer cancel()
	info, err := store.Head(rctx, bucket, remoteKey(part))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, storage.NormalizeETag(info.Checksum) == part.Checksum, nil
}

func remoteKey(part *model.ArchivePartMeta) string {
	return model.RemoteKey(part.Archive.Owner, part.ArchiveID, part.PartIndex)
}

func (r *Reconciler) localPresent(archive *model.Archive) bool {
	info, err := os.Stat(filepath.Join(r.settings.Root, archive.Path()))
	return err == nil && info.Mode().IsRegular()
}

func (r *Reconciler) reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	conn, store, err := r.remote.Active(ctx)
	if errors.Is(err, ErrNoActiveConnection) {
		r.log.Info("[Reconciler] 没有活跃的远端连接，跳过对账")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	bucket := conn.Bucket()

	parts, err := r.parts.FindAllWithArchive(ctx)
	if err != nil {
		return report, err
	}
	r.log.Infof("[Reconciler] 开始对账, bucket=%s, 分片数=%d", bucket, len(parts))

	for i := range parts {
		if err := r.reconcilePart(ctx, store, bucket, &parts[i], &report); err != nil {
			report.Errors++
			r.log.Warnf("[Reconciler] 分片 %s 对账失败: %v", remoteKey(&parts[i]), err)
		}
	}

	// 远端状态未知时清理孤儿对象可能误删健康数据
	if report.Errors > 0 {
		r.log.Warnf("[Reconciler] 本轮有 %d 个分片对账失败，跳过孤儿对象清理", report.Errors)
		return report, nil
	}
	if err := r.sweepOrphans(ctx, store, bucket, &report); err != nil {
		return report, err
	}
	r.log.Infof("[Reconciler] 对账完成: healthy=%d, unhealthy=%d, remoteDeleted=%d, uploadsQueued=%d, orphansDeleted=%d",
		report.Healthy, report.Unhealthy, report.RemoteDeleted, report.UploadsQueued, report.OrphansDeleted)
	return report, nil
}

func (r *Reconciler) reconcilePart(ctx context.Context, store storage.ObjectStore, bucket string, part *model.ArchivePartMeta, report *ReconcileReport) error {
	exists, healthy, err := r.remoteState(ctx, store, bucket, part)
	if err != nil {
		return err
	}
	key := remoteKey(part)

	if healthy {
		report.Healthy++
		if !part.Uploaded {
			return r.parts.SetUploaded(ctx, part.ID, true)
		}
		return nil
	}

	report.Unhealthy++
	if exists {
		rctx, cancel := withTimeout(ctx, r.settings.RemoteTimeout)
		err := store.Delete(rctx, bucket, key)
		cancel()
		if err != nil {
			return err
		}
		report.RemoteDeleted++
		r.log.Warnf("[Reconciler] 远端对象 %s 摘要不一致，已删除", key)
	}
	if part.Uploaded {
		if err := r.parts.SetUploaded(ctx, part.ID, false); err != nil {
			return err
		}
	}

	if !r.localPresent(part.Archive) {
		r.log.Errorf("[Reconciler] 分片 %s 没有健康的远端副本，且本地归档文件不存在，无法重新上传", key)
		return nil
	}
	created, err := r.jobs.ScheduleIfAbsent(ctx, part.ID, model.DirectionUpload)
	if err != nil {
		return err
	}
	if created {
		report.UploadsQueued++
		r.log.Infof("[Reconciler] 已为分片 %s 重新安排上传任务", key)
	}
	return nil
}

// sweepOrphans 删除不对应任何 uploaded=true 分片的远端对象。
func (r *Reconciler) sweepOrphans(ctx context.Context, store storage.ObjectStore, bucket string, report *ReconcileReport) error {
	uploaded, err := r.parts.FindUploadedWithArchive(ctx)
	if err != nil {
		return err
	}
	expected := make(map[string]struct{}, len(uploaded))
	for i := range uploaded {
		expected[remoteKey(&uploaded[i])] = struct{}{}
	}

	rctx, cancel := withTimeout(ctx, r.settings.RemoteTimeout)
	objects, err := store.List(rctx, bucket)
	cancel()
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if _, ok := expected[obj.Key]; ok {
			continue
		}
		dctx, cancel := withTimeout(ctx, r.settings.RemoteTimeout)
		err := store.Delete(dctx, bucket, obj.Key)
		cancel()
		if err != nil {
			r.log.Warnf("[Reconciler] 删除孤儿对象 %s 失败: %v", obj.Key, err)
			continue
		}
		report.OrphansDeleted++
		r.log.Infof("[Reconciler] 已删除孤儿对象 %s", obj.Key)
	}
	return nil
}
