package cmds

import (
	"context"
	"io"
	"os"

	"github.com/go-go-golems/chatkit/pkg/conversation"
	"github.com/go-go-golems/chatkit/pkg/sse"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file|->",
		Short: "Reconstruct a thread from a captured event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := getOutputSettings(cmd)
			if err != nil {
				return err
			}
			chunkSize, err := cmd.Flags().GetInt("chunk-size")
			if err != nil {
				return err
			}

			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "could not open event stream")
				}
				defer func() {
					_ = f.Close()
				}()
				r = f
			}

			return replay(cmd.Context(), r, chunkSize, out, cmd.OutOrStdout(), viper.GetBool("verbose"))
		},
	}

	cmd.Flags().Int("chunk-size", sse.DefaultBufferSize, "Read size used to feed the stream decoder")
	addOutputFlags(cmd)

	return cmd
}

func replay(ctx context.Context, r io.Reader, chunkSize int, out *outputSettings, w io.Writer, verbose bool) error {
	threadOptions, err := out.threadOptions()
	if err != nil {
		return err
	}
	state := conversation.NewState(conversation.WithThreadOptions(threadOptions...))

	err = out.run(ctx, w, verbose, func(ctx context.Context) error {
		return sse.Stream(ctx, r, state.Handler(), sse.WithBufferSize(chunkSize), sse.WithLogger(log.Logger))
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("conversation_id", state.ID).
		Int64("version", state.Version()).
		Int("items", state.Thread().Len()).
		Msg("Replayed event stream")

	return out.write(w, state.Thread().Snapshot())
}
