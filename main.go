package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zhukovaskychina/xmysql-server/engine/engconf"
	"github.com/zhukovaskychina/xmysql-server/engine/enginecli"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

const help = `
******************************************************************************************

 __   ____  __        _____  ____  _          _____ ______ _______      ________ _____
 \ \ / /  \/  |      / ____|/ __ \| |        / ____|  ____|  __ \ \    / /  ____|  __ \
  \ V /| \  / |_   _| (___ | |  | | |  _____| (___ | |__  | |__) \ \  / /| |__  | |__) |
   > < | |\/| | | | |\___ \| |  | | | |______\___ \|  __| |  _  / \ \/ / |  __| |  _  /
  / . \| |  | | |_| |____) | |__| | |____    ____) | |____| | \ \  \  /  | |____| | \ \
 /_/ \_\_|  |_|\__, |_____/ \___\_\______|  |_____/|______|_|  \_\  \/   |______|_|  \_\
                __/ |
               |___/
******************************************************************************************
*帮助:
*1. -- help
*2. -- configPath   指定引擎配置文件（ini 格式，[storage] 段）
*3. -- dataDir      指定数据目录（未指定 configPath 时使用）
******************************************************************************************
`

func main() {
	fmt.Println("Starting XMySQL storage engine...")

	var configPath, dataDir string
	flag.StringVar(&configPath, "configPath", "", "engine config file path")
	flag.StringVar(&dataDir, "dataDir", ".", "data directory (used when configPath is unset)")
	flag.Parse()

	var cfg engconf.Config
	if configPath != "" {
		loaded, err := engconf.Load(configPath)
		if err != nil {
			logger.Errorf("failed to load config %s: %v", configPath, err)
			fmt.Println(help)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = engconf.Default(dataDir)
	}

	logger.Infof("engine config loaded: data_dir=%s buffer_kind=%v wal_sync_mode=%v",
		cfg.DataDir, cfg.BufferKind, cfg.WALSyncMode)

	db, err := enginecli.Open(cfg)
	if err != nil {
		logger.Errorf("failed to open database: %v", err)
		os.Exit(1)
	}
	logger.Info("storage engine ready")

	enginecli.RunREPL(db, os.Stdin, os.Stdout)
}
