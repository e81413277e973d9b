package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coldvault-go/pkg/lock"

	"go.uber.org/zap"
)

// 后台任务锁名。分发与对账共用 PassTransfer：孤儿清理基于已上传分片的快照，
// 与上传并发时会把刚写入的对象当作孤儿删除。
const (
	PassTransfer = "transfer"
	PassAssemble = "assemble"
)

// runLocked 持有名为 name 的锁执行 fn；锁被其他实例持有时记录日志并返回 nil。
func runLocked(ctx context.Context, locker lock.Locker, name string, ttl time.Duration, log *zap.SugaredLogger, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	release, err := locker.Acquire(ctx, name, ttl)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Infof("[%s] 另一个实例正在执行，跳过本轮", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", name, err)
	}
	defer release()
	return fn(ctx)
}

// Every 立即执行一次 fn，之后按 interval 重复，直到 ctx 结束。
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// withTimeout 为一次远端调用设置超时，timeout<=0 时不限制。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
