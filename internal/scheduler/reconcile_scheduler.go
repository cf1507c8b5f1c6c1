package scheduler

import (
	"context"
	"sync"
	"time"

	"plgshop/internal/service"
	"plgshop/pkg/logger"
)

// Sweeper 对账扫描
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// ReconcileScheduler 定时接管过期claim
type ReconcileScheduler struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
	quit     chan struct{}
	wg       sync.WaitGroup
	stop     sync.Once
}

// NewReconcileScheduler 创建对账调度器
func NewReconcileScheduler(sweeper Sweeper, interval time.Duration, logger *logger.Logger) *ReconcileScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconcileScheduler{
		sweeper:  sweeper,
		interval: interval,
		timeout:  90 * time.Second,
		logger:   logger,
		quit:     make(chan struct{}),
	}
}

// Start 启动对账调度器
func (s *ReconcileScheduler) Start() {
	s.wg.Add(1)
	go s.reconcileScheduler()
	s.logger.Info("对账调度器启动", "interval", s.interval.String())
}

// Stop 停止调度器并等待当前扫描结束
func (s *ReconcileScheduler) Stop() {
	s.stop.Do(func() {
		close(s.quit)
		s.wg.Wait()
		s.logger.Info("对账调度器停止")
	})
}

func (s *ReconcileScheduler) reconcileScheduler() {
	defer s.wg.Done()

	// 启动时先跑一次，接管上次进程中断留下的claim
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.quit:
			return
		}
	}
}

func (s *ReconcileScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("对账扫描失败", "error", err)
		return
	}
	if report.Failed > 0 {
		s.logger.Warn("部分交易对账失败，租约过期后重试", "failed", report.Failed)
	}
}
