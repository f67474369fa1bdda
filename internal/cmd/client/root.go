package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewRoot constructs a root Cobra command for the haywire client.
// It registers the queue and health command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "haywire",
		Short: "haywire client commands",
	}
	root.AddCommand(NewQueueCommand(baseURL))
	root.AddCommand(NewHealthCommand())
	return root
}
