package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"payengine/internal/config"
	"payengine/internal/csvio"
	"payengine/internal/infrastructure/cache"
	"payengine/internal/infrastructure/database"
	"payengine/internal/infrastructure/dedup"
	"payengine/internal/infrastructure/mq"
	"payengine/internal/job"
	"payengine/internal/model"
	"payengine/internal/repository"
	"payengine/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const flushTimeout = 10 * time.Second

// Report 一次运行的结果，实现 handler.SnapshotProvider
type Report struct {
	RunID    string
	accounts []model.Account
	stats    service.Stats
}

func (r *Report) Accounts() []model.Account {
	out := make([]model.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

func (r *Report) Stats() service.Stats {
	return r.stats
}

// Runner 组装引擎、输入输出和可选的外部依赖
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	sender      job.MessageSender
	redisClient *redis.Client
	db          *gorm.DB
	newRunID    func() string
}

type Option func(*Runner)

// WithMessageSender 替换 Kafka 生产者，kafka.enabled 时生效
func WithMessageSender(sender job.MessageSender) Option {
	return func(r *Runner) { r.sender = sender }
}

// WithRedisClient 使用已有的 Redis 客户端做交易ID去重
func WithRedisClient(client *redis.Client) Option {
	return func(r *Runner) { r.redisClient = client }
}

// WithSnapshotDB 使用已有的 gorm 连接导出快照
func WithSnapshotDB(db *gorm.DB) Option {
	return func(r *Runner) { r.db = db }
}

func WithRunID(id string) Option {
	return func(r *Runner) { r.newRunID = func() string { return id } }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 处理 inputPath 中的全部记录，把账户快照写到 output.path，未配置时写到 stdout
func (r *Runner) Run(ctx context.Context, inputPath string, stdout io.Writer) (*Report, error) {
	runID := r.newRunID()
	log := r.logger.With(zap.String("run_id", runID))

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("打开输入文件失败: %w", err)
	}
	defer f.Close()

	stats := service.NewStatsCollector()
	observers := service.Observers{service.NewLogObserver(log), stats}

	events, err := r.setupEvents(runID, log)
	if err != nil {
		return nil, err
	}
	if events != nil {
		defer events.close()
		observers = append(observers, events.recorder)
		events.start(ctx)
	}

	snapshots, err := r.setupSnapshots()
	if err != nil {
		return nil, err
	}

	engine, err := r.newEngine(ctx, runID, observers)
	if err != nil {
		return nil, err
	}

	reader := csvio.NewReader(f, r.cfg.Input.HasHeader)
	if r.cfg.Engine.Mode == config.ModeBatch {
		err = applyBatch(ctx, reader, engine)
	} else {
		err = applyStream(ctx, reader, engine, stats, log)
	}
	if closeErr := engine.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("等待分片处理完成失败: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    runID,
		accounts: engine.Accounts(),
		stats:    stats.Snapshot(),
	}

	if err := r.writeSnapshot(stdout, report.accounts); err != nil {
		return nil, err
	}

	if snapshots != nil {
		if err := snapshots.SaveAll(ctx, runID, report.accounts); err != nil {
			return nil, fmt.Errorf("导出账户快照失败: %w", err)
		}
		log.Info("账户快照已导出", zap.Int("accounts", len(report.accounts)))
	}

	if events != nil {
		if err := events.flush(ctx); err != nil {
			return nil, err
		}
	}

	log.Info("处理完成",
		zap.String("mode", r.cfg.Engine.Mode),
		zap.Int("workers", r.cfg.Engine.Workers),
		zap.Int("processed", report.stats.Processed),
		zap.Int("accepted", report.stats.Accepted),
		zap.Int("rejected", report.stats.Rejected),
		zap.Int("malformed", report.stats.Malformed),
		zap.Int("accounts", len(report.accounts)),
	)
	return report, nil
}

// applyStream 格式错误的行记日志后跳过
func applyStream(ctx context.Context, reader *csvio.Reader, engine service.Engine, stats *service.StatsCollector, log *zap.Logger) error {
	for {
		tx, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var rowErr *csvio.RowError
			if errors.As(err, &rowErr) {
				stats.RecordMalformed()
				log.Warn("跳过格式错误的输入行", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
				continue
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}
		if err := engine.Apply(ctx, tx); err != nil {
			return fmt.Errorf("处理交易失败: %w", err)
		}
	}
}

// applyBatch 先解析全部输入，任何一行格式错误都不会处理任何记录
func applyBatch(ctx context.Context, reader *csvio.Reader, engine service.Engine) error {
	txs, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("解析输入失败: %w", err)
	}
	for _, tx := range txs {
		if err := engine.Apply(ctx, tx); err != nil {
			return fmt.Errorf("处理交易失败: %w", err)
		}
	}
	return nil
}

func (r *Runner) newEngine(ctx context.Context, runID string, observer service.Observer) (service.Engine, error) {
	if r.cfg.Engine.Workers <= 1 {
		return service.NewSequentialEngine(service.NewInMemoryProcessor(), observer), nil
	}

	guard, err := r.newGuard(ctx, runID)
	if err != nil {
		return nil, err
	}
	engine, err := service.NewShardedEngine(ctx, r.cfg.Engine.Workers, r.cfg.Engine.QueueSize, guard, observer)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (r *Runner) newGuard(ctx context.Context, runID string) (service.TxIDGuard, error) {
	if r.cfg.Dedup.Backend != config.DedupBackendRedis {
		return service.NewMemoryGuard(), nil
	}
	client := r.redisClient
	if client == nil {
		var err error
		client, err = cache.InitRedis(ctx, &r.cfg.Redis)
		if err != nil {
			return nil, err
		}
		r.redisClient = client
	}
	return dedup.NewRedisGuard(client, r.cfg.Dedup.KeyPrefix, runID, r.cfg.Dedup.TTL), nil
}

func (r *Runner) setupSnapshots() (*repository.SnapshotRepository, error) {
	if !r.cfg.MySQL.Enabled {
		return nil, nil
	}
	db := r.db
	if db == nil {
		var err error
		db, err = database.InitMySQL(&r.cfg.MySQL)
		if err != nil {
			return nil, err
		}
		r.db = db
	}
	return repository.NewSnapshotRepository(db), nil
}

func (r *Runner) writeSnapshot(stdout io.Writer, accounts []model.Account) error {
	if r.cfg.Output.Path == "" {
		if err := csvio.WriteSnapshot(stdout, accounts); err != nil {
			return fmt.Errorf("写出账户快照失败: %w", err)
		}
		return nil
	}

	out, err := os.Create(r.cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if err := csvio.WriteSnapshot(out, accounts); err != nil {
		out.Close()
		return fmt.Errorf("写出账户快照失败: %w", err)
	}
	return out.Close()
}

// eventPipeline 发件箱 + 后台投递任务
type eventPipeline struct {
	recorder  *service.EventRecorder
	publisher *job.EventPublisher
	outbox    *repository.OutboxRepository
	closer    io.Closer
	stop      context.CancelFunc
	wg        sync.WaitGroup
	log       *zap.Logger
}

func (r *Runner) setupEvents(runID string, log *zap.Logger) (*eventPipeline, error) {
	if !r.cfg.Kafka.Enabled {
		return nil, nil
	}

	p := &eventPipeline{
		outbox: repository.NewOutboxRepository(),
		log:    log,
	}
	sender := r.sender
	if sender == nil {
		producer, err := mq.NewSyncProducer(&r.cfg.Kafka)
		if err != nil {
			return nil, err
		}
		publisher := mq.NewPublisher(producer)
		sender = publisher
		p.closer = publisher
	}

	p.recorder = service.NewEventRecorder(p.outbox, r.cfg.Kafka.Topic.Events, runID)
	p.publisher = job.NewEventPublisher(p.outbox, sender, r.cfg.Business.MaxRetryCount, log)
	return p, nil
}

func (p *eventPipeline) start(ctx context.Context) {
	jobCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.publisher.Start(jobCtx)
	}()
}

// flush 停止后台任务后投递剩余消息
func (p *eventPipeline) flush(ctx context.Context) error {
	p.halt()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := p.publisher.Flush(flushCtx); err != nil {
		return fmt.Errorf("投递处理事件失败: %w", err)
	}

	if failed := p.outbox.CountByStatus(model.OutboxStatusFailed); failed > 0 {
		p.log.Warn("部分处理事件投递失败", zap.Int("failed", failed))
	}
	return nil
}

func (p *eventPipeline) halt() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.wg.Wait()
}

func (p *eventPipeline) close() {
	p.halt()
	if p.closer != nil {
		if err := p.closer.Close(); err != nil {
			p.log.Warn("关闭 Kafka 生产者失败", zap.Error(err))
		}
	}
}
