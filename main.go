package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gchat/internal/api"
	"gchat/internal/session"
	"gchat/internal/token"
)

var rootCmd = &cobra.Command{
	Use:   "gchat",
	Short: "Terminal and local-web client for the gchat service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	},
}

var (
	flagAPIBase   string
	flagWSBase    string
	flagTokenFile string
	flagCacheDir  string
	flagVerbose   bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAPIBase, "api", api.DefaultBase, "REST API base URL")
	flags.StringVar(&flagWSBase, "ws", session.DefaultWSBase, "WebSocket gateway base URL")
	flags.StringVar(&flagTokenFile, "token-file", "", "path to the saved login token (default: user config dir)")
	flags.StringVar(&flagCacheDir, "cache-dir", "", "directory for the local message cache (empty to disable)")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func tokenStore() *token.FileStore {
	fs, err := token.NewFileStore(flagTokenFile)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve token store")
	}
	return fs
}

func apiClient() *api.Client {
	return api.New(flagAPIBase, tokenStore())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute command")
	}
}
