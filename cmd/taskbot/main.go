package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"taskbot/internal/app"
	"taskbot/internal/bot"
	"taskbot/internal/config"
	"taskbot/internal/dialogue"
	"taskbot/internal/domain"
	taskmcp "taskbot/internal/mcp"
	apiserver "taskbot/internal/server"
	"taskbot/internal/telegram"
	taskbotsdk "taskbot/sdk/go"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "taskbot",
	Short: "Taskbot: a chat bot that keeps a task list",
	Long: `Taskbot keeps a single ordered task list and talks to it through chat.
- /add walks through title, description, category, due date and (optionally) a reminder time.
- /list shows the numbered list; /delete <number|id> removes an entry; /cancel drops an unfinished /add.
- Front ends: Telegram long polling and an HTTP chat API (taskbot serve), a local console (taskbot chat) and MCP tools over stdio (taskbot mcp).
- Storage: tasks.json or taskbot.db in the data directory; damaged content is reset to an empty list.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./taskbot.yml if present)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(mcpCmd())
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram poller and/or the HTTP chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Enabled = true
				cfg.HTTP.Addr = addr
			}
			if err := cfg.RequireToken(); err != nil {
				return err
			}
			logger := app.NewLogger(os.Stderr, cfg.Log.Level)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			b := app.NewBot(cfg, st, logger)

			g, gctx := errgroup.WithContext(ctx)
			if cfg.Telegram.Enabled {
				api, err := telegram.Connect(telegram.Config{
					Token:       cfg.Telegram.Token,
					PollTimeout: cfg.Telegram.PollTimeout,
					Debug:       cfg.Telegram.Debug,
				})
				if err != nil {
					return err
				}
				logger.Info("telegram bot authorized", "username", api.Self.UserName)
				b.Username = api.Self.UserName
				poller := telegram.NewPoller(api, b, cfg.Telegram.PollTimeout, logger)
				g.Go(func() error { return poller.Run(gctx) })
			}
			if cfg.HTTP.Enabled {
				handler, err := apiserver.New(apiserver.Config{Bot: b, BasePath: "/v1", Logger: logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				g.Go(func() error {
					logger.Info("serving taskbot API", "url", "http://"+cfg.HTTP.Addr+"/v1", "openapi", "/v1/openapi.json")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "enable the HTTP API on this address")
	return cmd
}

func chatCmd() *cobra.Command {
	var serverURL, conversation string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot from the terminal",
		Long:  "Each input line is one chat message. Without --server the bot runs in-process against the local data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			send, closeFn, err := chatSender(ctx, serverURL)
			if err != nil {
				return err
			}
			defer closeFn()
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), conversation, send)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "send messages to a running taskbot API instead of the local store")
	cmd.Flags().StringVar(&conversation, "conversation", "console", "conversation id")
	return cmd
}

type sendFunc func(ctx context.Context, conversationID, text string) (string, error)

func chatSender(ctx context.Context, serverURL string) (sendFunc, func(), error) {
	if serverURL != "" {
		client := taskbotsdk.New(serverURL)
		return func(ctx context.Context, conv, text string) (string, error) {
			r, err := client.Send(ctx, conv, text)
			return r.Reply, err
		}, func() {}, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(os.Stderr, cfg.Log.Level)
	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	b := app.NewBot(cfg, st, logger)
	return func(ctx context.Context, conv, text string) (string, error) {
		return b.Handle(ctx, bot.Event{ConversationID: conv, Text: text}).Text, nil
	}, func() { st.Close() }, nil
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, conversation string, send sendFunc) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		reply, err := send(ctx, conversation, scanner.Text())
		if err != nil {
			return err
		}
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func tasksCmd() *cobra.Command {
	tasks := &cobra.Command{Use: "tasks", Short: "Inspect and edit the stored task list"}
	tasks.AddCommand(tasksListCmd())
	tasks.AddCommand(tasksDeleteCmd())
	return tasks
}

func tasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				items, err := b.Store.LoadAll(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printTaskTable(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	return cmd
}

func tasksDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <position|id>",
		Short: "Delete a task by 1-based position or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				t, err := b.DeleteRef(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", t.Title, t.ID)
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage taskbot.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var dir string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default taskbot.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(dir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write taskbot.yml into")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"storage":  cfg.Storage,
				"dialogue": cfg.Dialogue,
				"telegram": map[string]any{
					"enabled":      cfg.Telegram.Enabled,
					"poll_timeout": cfg.Telegram.PollTimeout.String(),
					"debug":        cfg.Telegram.Debug,
					"token_set":    cfg.Telegram.Token != "",
				},
				"http": cfg.HTTP,
				"log":  cfg.Log,
			})
		},
	}
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve task tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol
			logger := app.NewLogger(os.Stderr, cfg.Log.Level)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			st, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			s := taskmcp.NewServer(app.NewBot(cfg, st, logger), version)
			return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
		},
	}
	return cmd
}

// --- helpers ---

// loadConfig resolves taskbot.yml, then applies flag and environment
// overrides and the bot token.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := viper.GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOptional(config.Path("."))
	}
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	cfg.Telegram.Token = resolveToken(viper.GetString("telegram-token"), os.Getenv("TELEGRAM_TOKEN"), ".env")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveToken picks the first non-empty of the prefixed variable, the
// plain TELEGRAM_TOKEN variable and the same two keys in a dotenv file.
func resolveToken(prefixed, plain, envFile string) string {
	if prefixed != "" {
		return prefixed
	}
	if plain != "" {
		return plain
	}
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	if tok := v.GetString("TASKBOT_TELEGRAM_TOKEN"); tok != "" {
		return tok
	}
	return v.GetString("TELEGRAM_TOKEN")
}

func withBot(ctx context.Context, fn func(context.Context, *bot.Bot) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Stderr, cfg.Log.Level)
	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, app.NewBot(cfg, st, logger))
}

func printTaskTable(w io.Writer, tasks []domain.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "ID", "Title", "Category", "Due", "Reminder"})
	for i, t := range tasks {
		reminder := ""
		if t.HasReminder() {
			reminder = dialogue.FormatDue(t.ReminderTime)
		}
		tw.AppendRow(table.Row{i + 1, t.ID, t.Title, t.Category, bot.DueText(t), reminder})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
