package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gchat/internal/api"
	"gchat/internal/protocol"
	"gchat/internal/session"
	"gchat/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a conversation in the terminal",
	RunE:  runChat,
}

var (
	flagGroupID  int64
	flagTempKey  string
	flagTempPass string
)

func init() {
	chatCmd.Flags().Int64Var(&flagGroupID, "group", 0, "group id to join")
	chatCmd.Flags().StringVar(&flagTempKey, "temp", "", "temporary group chat key")
	chatCmd.Flags().StringVar(&flagTempPass, "password", "", "temporary group password, when it has one")
	rootCmd.AddCommand(chatCmd)
}

// resolveConversation turns the --group/--temp flags into a conversation,
// asking the server for the temp group's numeric id and salt.
func resolveConversation(ctx context.Context, client *api.Client) (protocol.Conversation, error) {
	switch {
	case flagGroupID != 0 && flagTempKey != "":
		return protocol.Conversation{}, fmt.Errorf("--group and --temp are mutually exclusive")
	case flagGroupID != 0:
		return protocol.Group(flagGroupID), nil
	case flagTempKey != "":
		protected, err := client.TempGroupHasPassword(ctx, flagTempKey)
		if err != nil {
			return protocol.Conversation{}, fmt.Errorf("check temp group: %w", err)
		}
		if protected && flagTempPass == "" {
			return protocol.Conversation{}, fmt.Errorf("this temp group needs --password")
		}
		info, err := client.TempGroupInfo(ctx, flagTempKey, flagTempPass)
		if err != nil {
			return protocol.Conversation{}, fmt.Errorf("join temp group: %w", err)
		}
		return protocol.TempGroup(info.GroupID, info.TempChatKey, flagTempPass), nil
	default:
		return protocol.Conversation{}, fmt.Errorf("pass --group <id> or --temp <chat key>")
	}
}

func openCache() *store.Cache {
	if flagCacheDir == "" {
		return nil
	}
	cache, err := store.Open(flagCacheDir)
	if err != nil {
		log.Warn().Err(err).Msg("cache disabled")
		return nil
	}
	return cache
}

func printMessage(m protocol.Message) {
	fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.Username, m.Content)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiClient()
	conv, err := resolveConversation(ctx, client)
	if err != nil {
		return err
	}

	cache := openCache()
	if cache != nil {
		defer cache.Close()
	}

	s := session.New(session.Config{
		WSBase:  flagWSBase,
		Backoff: session.DefaultBackoff(),
		Cache:   cache,
	}, conv, tokenStore(), client)

	s.OnHistory(func(snapshot []protocol.Message, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "(history unavailable: %v)\n", err)
		}
		for _, m := range snapshot {
			printMessage(m)
		}
	})
	s.OnMessage(printMessage)
	s.OnStatus(func(st session.Status) {
		fmt.Fprintf(os.Stderr, "-- %s --\n", st)
	})

	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	// Stdin loop; closing stdin or ^C ends the conversation.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "/quit" {
				return nil
			}
			if err := s.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "(send failed: %v)\n", err)
			}
		}
	}
}
