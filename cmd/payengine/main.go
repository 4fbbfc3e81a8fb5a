package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payengine/internal/app"
	"payengine/internal/config"
	"payengine/internal/handler"
	"payengine/pkg/idgen"
	"payengine/pkg/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("payengine", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "用法: payengine [flags] <transactions.csv>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}

	// 加载配置
	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return exitUsage
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return exitUsage
	}
	defer log.Sync()

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		log.Error("初始化ID生成器失败", zap.Error(err))
		return exitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := app.New(cfg, log).Run(ctx, flags.Arg(0), os.Stdout)
	if err != nil {
		log.Error("运行失败", zap.Error(err))
		return exitFatal
	}

	if !cfg.Server.Enabled {
		return exitOK
	}
	if err := serve(ctx, cfg.Server.Port, report, log); err != nil {
		log.Error("查询服务异常", zap.Error(err))
		return exitFatal
	}
	return exitOK
}

// serve 提供只读查询，直到收到中断信号
func serve(ctx context.Context, port int, report *app.Report, log *zap.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRouter(report, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("查询服务启动", zap.Int("port", port), zap.String("run_id", report.RunID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("正在关闭服务...")

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务关闭异常: %w", err)
	}

	log.Info("服务已关闭")
	return nil
}
