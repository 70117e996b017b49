package commands

import (
	"fmt"
	"log/slog"
	"os"

	"hashvault/pkg/app"
	"hashvault/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	// 全局应用实例，供子命令使用
	HV *app.App
)

var rootCmd = &cobra.Command{
	Use:   "hv",
	Short: "HashVault: content hashing and incremental change detection",
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		// 统一初始化 App
		var err error
		HV, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize hashvault: %w", err)
		}
		return nil
	},
	// 子命令跑完统一收尾：停队列、还数据库连接
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return nil
		}
		return HV.Close()
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hv/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// 2. 定义 database.path 参数，并绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用 --db-path 覆盖
	rootCmd.PersistentFlags().String("db-path", "", "Path to the sqlite database file")
	err := viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db-path"))
	if err != nil {
		fmt.Println("Failed to bind flag:", err)
		os.Exit(1)
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
