package cmds

import (
	"context"
	"io"

	"github.com/go-go-golems/chatkit/pkg/conversation"
	"github.com/go-go-golems/chatkit/pkg/conversation/serde"
	"github.com/go-go-golems/chatkit/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const notificationTopic = "chat"

type outputSettings struct {
	Output  string
	Save    string
	Follow  bool
	Raw     bool
	GroupBy string
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output", "yaml", "Snapshot output format (yaml, json)")
	cmd.Flags().String("save", "", "Write the final snapshot to this YAML file")
	cmd.Flags().Bool("follow", false, "Print notifications while the stream is processed")
	cmd.Flags().Bool("raw-events", false, "With --follow, print notifications as JSON")
	cmd.Flags().String("group-by", "turn", "Item grouping (turn, id)")
}

func getOutputSettings(cmd *cobra.Command) (*outputSettings, error) {
	ret := &outputSettings{}
	var err error
	if ret.Output, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if ret.Output != "yaml" && ret.Output != "json" {
		return nil, errors.Errorf("unknown output format %q (expected yaml or json)", ret.Output)
	}
	if ret.Save, err = cmd.Flags().GetString("save"); err != nil {
		return nil, err
	}
	if ret.Follow, err = cmd.Flags().GetBool("follow"); err != nil {
		return nil, err
	}
	if ret.Raw, err = cmd.Flags().GetBool("raw-events"); err != nil {
		return nil, err
	}
	if ret.GroupBy, err = cmd.Flags().GetString("group-by"); err != nil {
		return nil, err
	}
	return ret, nil
}

func (o *outputSettings) threadOptions() ([]conversation.ThreadOption, error) {
	grouping, err := conversation.ParseItemGrouping(o.GroupBy)
	if err != nil {
		return nil, err
	}
	return []conversation.ThreadOption{
		conversation.WithItemGrouping(grouping),
		conversation.WithThreadLogger(log.Logger),
	}, nil
}

// run calls fn, and with --follow runs an event router next to it that
// prints the notifications fn's state publishes to the context sinks.
func (o *outputSettings) run(ctx context.Context, w io.Writer, verbose bool, fn func(ctx context.Context) error) error {
	if !o.Follow {
		return fn(ctx)
	}

	routerOptions := []events.EventRouterOption{}
	if verbose {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	if o.Raw {
		router.AddHandler("printer", notificationTopic, router.DumpRawEvents(w))
	} else {
		router.AddHandler("printer", notificationTopic, events.PrinterFunc("assistant", w))
	}

	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		ctx := events.WithEventSinks(ctx, router.Sink(notificationTopic))
		return fn(ctx)
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// write prints the snapshot and saves it when --save is set.
func (o *outputSettings) write(w io.Writer, snap conversation.ThreadSnapshot) error {
	var b []byte
	var err error
	switch o.Output {
	case "json":
		b, err = serde.ToJSON(snap)
	default:
		b, err = serde.ToYAML(snap)
	}
	if err != nil {
		return err
	}
	if _, err = w.Write(b); err != nil {
		return err
	}
	if o.Output == "json" {
		if _, err = io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	if o.Save != "" {
		if err := serde.SaveSnapshotYAML(o.Save, snap); err != nil {
			return errors.Wrapf(err, "could not save snapshot to %s", o.Save)
		}
		log.Info().Str("path", o.Save).Msg("Saved thread snapshot")
	}
	return nil
}
