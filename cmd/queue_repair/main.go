package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"

	"reelcv-ai-go/internal/config"
	"reelcv-ai-go/internal/storage"
	"reelcv-ai-go/internal/storage/models"
)

// 修复工具：将卡在processing状态超过阈值的分析记录重置为pending，
// 并把对应的调度队列项重新置为PENDING，使其被中继服务重新投递。
func main() {
	var (
		configPath   string
		stuckMinutes int
		dryRun       bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.IntVar(&stuckMinutes, "stuck-minutes", 60, "processing状态超过该分钟数视为卡死")
	pflag.BoolVar(&dryRun, "dry-run", false, "只统计不修改")
	pflag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	if storageManager.MySQL == nil {
		log.Fatal("MySQL未初始化，无法执行修复")
	}

	cutoff := time.Now().Add(-time.Duration(stuckMinutes) * time.Minute)
	log.Printf("查找 %s 之前开始且仍在processing的分析记录", cutoff.Format(time.RFC3339))

	if dryRun {
		var count int64
		err := storageManager.MySQL.DB().WithContext(ctx).
			Model(&models.VideoAnalysis{}).
			Where("processing_status = ? AND processing_started_at < ?", "processing", cutoff).
			Count(&count).Error
		if err != nil {
			log.Fatalf("统计卡死记录失败: %v", err)
		}
		fmt.Printf("dry-run: 共 %d 条卡死的分析记录，未做任何修改\n", count)
		return
	}

	reset, err := storageManager.MySQL.ResetStuckAnalyses(ctx, cutoff)
	if err != nil {
		log.Fatalf("重置卡死记录失败: %v", err)
	}

	fmt.Printf("已重置 %d 条卡死的分析记录，等待中继服务重新投递\n", reset)
}
