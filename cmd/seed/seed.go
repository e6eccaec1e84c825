package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notifiit/backend/config"
	"notifiit/backend/internal/repository"
	"notifiit/backend/internal/service"
	"notifiit/backend/internal/sheet"
	"notifiit/backend/internal/uniapi"
	"notifiit/backend/pkg/database"
	applogger "notifiit/backend/pkg/logger"
	"notifiit/backend/pkg/redis"
)

var errNoSourceFlag = errors.New("至少指定 --sheet 或 --api 之一")

type seedOptions struct {
	configPath string
	fromSheet  bool
	fromAPI    bool
	groups     []int
	reseed     bool
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "采集课表并写入数据库",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateSeedOptions(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")
	cmd.Flags().BoolVar(&opts.fromSheet, "sheet", false, "从课表电子表格采集")
	cmd.Flags().BoolVar(&opts.fromAPI, "api", false, "从学校课表接口采集")
	cmd.Flags().IntSliceVar(&opts.groups, "groups", nil, "只采集这些组，例如 240801,240802")
	cmd.Flags().BoolVar(&opts.reseed, "reseed", false, "入库前清空目标范围内的课程")

	return cmd
}

func validateSeedOptions(opts seedOptions) error {
	if !opts.fromSheet && !opts.fromAPI {
		return errNoSourceFlag
	}
	for _, g := range opts.groups {
		if g < 100000 || g > 999999 {
			return fmt.Errorf("无效的组号 %d: 必须为 6 位数字", g)
		}
	}
	return nil
}

func runSeed(ctx context.Context, opts seedOptions, out io.Writer) error {
	// 1. 配置：抓取前先校验数据源凭据
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSources(opts.fromSheet, opts.fromAPI); err != nil {
		return err
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	calendar, err := service.CalendarFromConfig(&cfg.Semester)
	if err != nil {
		return err
	}

	// 2. 数据库与迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return err
	}

	// 3. Redis（可选）：采集锁与组目录缓存
	var (
		locker service.ReseedLocker
		cache  uniapi.GroupCache
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，采集锁与组目录缓存不可用", zap.Error(err))
		} else {
			defer rdb.Close()
			locker, cache = rdb, rdb
		}
	}

	// 4. 数据源
	deps := service.IngestDeps{
		Locker:    locker,
		BatchSize: cfg.Ingest.BatchSize,
		LockTTL:   cfg.Ingest.LockTTL,
	}
	if opts.fromSheet {
		collector, err := sheet.NewCollectorFromConfig(ctx, &cfg.Sheets, logger)
		if err != nil {
			return err
		}
		deps.Sheet = collector
	}
	if opts.fromAPI {
		client := uniapi.NewClient(cfg.UniAPI.BaseURL, cfg.UniAPI.Timeout)
		deps.API = uniapi.NewIngester(client, cache, calendar, uniapi.OptionsFromConfig(&cfg.UniAPI), logger.Named("uniapi"))
	}

	// 5. 采集
	svc := service.NewIngestService(repository.NewRepository(db), deps, logger)
	report, runErr := svc.Run(ctx, service.IngestOptions{
		FromSheet: opts.fromSheet,
		FromAPI:   opts.fromAPI,
		Groups:    opts.groups,
		Reseed:    opts.reseed,
	})
	if report != nil {
		if err := printReport(out, report); err != nil {
			return err
		}
	}
	return runErr
}

func printReport(out io.Writer, report *service.IngestReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
