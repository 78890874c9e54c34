// Package scheduler 提供定时任务调度
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
)

// 单次任务最长执行时间
const taskTimeout = 5 * time.Minute

// Scheduler 定时任务调度器，cron 表达式带秒字段
type Scheduler struct {
	cron    *cron.Cron
	tasks   []*Task
	metrics *metrics.Metrics
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Task 定时任务
type Task struct {
	Name    string
	Spec    string
	Handler func(ctx context.Context) error
	entryID cron.EntryID
}

// NewScheduler 创建调度器
func NewScheduler(loc *time.Location, m *metrics.Metrics) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		tasks:   make([]*Task, 0),
		metrics: m,
		log:     logger.Named("scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTask 添加任务，spec 为六段 cron 表达式
func (s *Scheduler) AddTask(name, spec string, handler func(ctx context.Context) error) error {
	task := &Task{Name: name, Spec: spec, Handler: handler}
	id, err := s.cron.AddFunc(spec, func() { s.executeTask(task) })
	if err != nil {
		return err
	}
	task.entryID = id
	s.tasks = append(s.tasks, task)
	return nil
}

// Tasks 已注册的任务
func (s *Scheduler) Tasks() []*Task {
	return s.tasks
}

// Next 任务下次执行时间
func (s *Scheduler) Next(name string) (time.Time, bool) {
	for _, task := range s.tasks {
		if task.Name == name {
			return s.cron.Entry(task.entryID).Next, true
		}
	}
	return time.Time{}, false
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.log.Info("scheduler starting", zap.Int("tasks", len(s.tasks)))
	s.cron.Start()
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.log.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// RunNow 立即执行一次指定任务
func (s *Scheduler) RunNow(name string) bool {
	for _, task := range s.tasks {
		if task.Name == name {
			s.executeTask(task)
			return true
		}
	}
	return false
}

// executeTask 执行任务
func (s *Scheduler) executeTask(task *Task) {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", zap.String("task", task.Name), zap.Any("panic", r))
			s.metrics.RecordJobRun(task.Name, errPanic)
		}
	}()

	start := time.Now()
	err := task.Handler(ctx)
	s.metrics.RecordJobRun(task.Name, err)
	if err != nil {
		s.log.Error("task failed", zap.String("task", task.Name), zap.Error(err))
		return
	}
	s.log.Info("task completed", zap.String("task", task.Name), zap.Duration("elapsed", time.Since(start)))
}
