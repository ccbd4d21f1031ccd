package cmds

import (
	"context"

	"github.com/go-go-golems/chatkit/pkg/client"
	"github.com/go-go-golems/chatkit/pkg/conversation"
	"github.com/go-go-golems/chatkit/pkg/conversation/serde"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a user message and print the resulting thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := getOutputSettings(cmd)
			if err != nil {
				return err
			}
			text, err := cmd.Flags().GetString("text")
			if err != nil {
				return err
			}
			if text == "" {
				return errors.New("--text is required")
			}
			threadFile, err := cmd.Flags().GetString("thread")
			if err != nil {
				return err
			}

			settings := client.SettingsFromViper(viper.GetViper())
			c, err := client.NewClient(settings, client.WithLogger(log.Logger))
			if err != nil {
				return err
			}

			threadOptions, err := out.threadOptions()
			if err != nil {
				return err
			}
			stateOptions := []conversation.StateOption{conversation.WithThreadOptions(threadOptions...)}
			if threadFile != "" {
				snap, err := serde.LoadSnapshot(threadFile)
				if err != nil {
					return errors.Wrapf(err, "could not load thread from %s", threadFile)
				}
				stateOptions = append([]conversation.StateOption{
					conversation.WithThread(conversation.NewThreadFromSnapshot(snap, threadOptions...)),
				}, stateOptions...)
			}
			state := conversation.NewState(stateOptions...)

			err = out.run(cmd.Context(), cmd.OutOrStdout(), viper.GetBool("verbose"), func(ctx context.Context) error {
				return c.SendMessage(ctx, text, state)
			})
			if err != nil {
				return err
			}

			return out.write(cmd.OutOrStdout(), state.Thread().Snapshot())
		},
	}

	cmd.Flags().String("text", "", "Message to send")
	cmd.Flags().String("thread", "", "Continue the thread saved in this snapshot file (.yaml or .json)")
	addOutputFlags(cmd)

	return cmd
}
