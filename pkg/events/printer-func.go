package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// PrinterFunc returns a router handler that renders notifications for a
// terminal. Text deltas are written inline as they arrive, workflow and thread
// changes are printed as yaml.
func PrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	// midLine is true while deltas were written without a trailing newline
	midLine := false

	endLine := func() error {
		if !midLine {
			return nil
		}
		midLine = false
		_, err := fmt.Fprintln(w)
		return err
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventError:
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
			return err

		case *EventTextDelta:
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "\n%s: \n", name)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}
			midLine = !strings.HasSuffix(p_.Delta, "\n")

		case *EventContentPart:
			if p_.Type() == EventTypeContentPartDone {
				return endLine()
			}

		case *EventItem:
			if err := endLine(); err != nil {
				return err
			}
			switch p_.Type() {
			case EventTypeItemAdded:
				_, err = fmt.Fprintf(w, "--- %s %s\n", p_.ItemKind, p_.Metadata().ItemID)
			case EventTypeItemDone:
				_, err = fmt.Fprintf(w, "--- done %s\n", p_.Metadata().ItemID)
			case EventTypeItemUpdated:
			}
			if err != nil {
				return err
			}

		case *EventWorkflowUpdated:
			if err := endLine(); err != nil {
				return err
			}
			v_, err := yaml.Marshal(map[string]interface{}{
				"workflow": map[string]interface{}{
					"type":     p_.WorkflowKind,
					"tasks":    p_.Tasks,
					"summary":  p_.Summary,
					"expanded": p_.Expanded,
				},
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", v_)
			if err != nil {
				return err
			}

		case *EventThreadUpdated:
			if err := endLine(); err != nil {
				return err
			}
			v_, err := yaml.Marshal(map[string]interface{}{
				"thread": map[string]interface{}{
					"id":         p_.Metadata().ThreadID,
					"title":      p_.Title,
					"created_at": p_.CreatedAt,
					"status":     p_.Status,
				},
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", v_)
			if err != nil {
				return err
			}
		}

		return nil
	}
}
