// @title CoderEdu 学习分析服务 API
// @version 1.0
// @description CoderEdu学习平台的行为模式检测与预测服务。

// @host localhost:8081
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"coder_edu_analytics/internal/app"
	"coder_edu_analytics/internal/config"
	"coder_edu_analytics/pkg/logger"
	"flag"
	"log"
)

func main() {
	configPath := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg, *configPath)
	defer logger.Log.Sync()

	application.Run()
}
