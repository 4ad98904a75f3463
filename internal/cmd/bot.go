package cmd

import (
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/telegram"
)

// NewBotCommand creates the bot command
func NewBotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Poll Telegram for messages and answer /research, /fast, /ask, /image
and /refine commands. The bot token is read from the environment variable
named by telegram.token_env (default TELEGRAM_BOT_TOKEN).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			token, err := cfg.TelegramToken(os.Getenv)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			api, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return fmt.Errorf("failed to connect to Telegram: %w", err)
			}
			a.logger.Infof("telegram: authorized as @%s", api.Self.UserName)

			return telegram.New(api, a.svc, cfg.Telegram.MaxMessageChars, a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().Bool("cpu", false, "Force CPU image generation")

	return cmd
}
