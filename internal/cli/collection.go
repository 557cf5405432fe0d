package cli

import (
	"github.com/spf13/cobra"
)

func newAddCollectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-collection COLLECTION",
		Short: "Create a collection",
		Long: `Create a collection. SensorThings entity sets are fixed by the service, so the
SensorThings backend always reports that this is not implemented.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := getBackend(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.AddCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printResult(cmd, result{Operation: "add-collection", Collection: args[0], Result: true})
		},
	}
}

func newDeleteCollectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-collection COLLECTION",
		Short: "Delete every item in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := getBackend(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := b.DeleteCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd, result{Operation: "delete-collection", Collection: args[0], Result: ok})
		},
	}
}

func newHasCollectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has-collection COLLECTION",
		Short: "Check whether a collection exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := getBackend(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := b.HasCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd, result{Operation: "has-collection", Collection: args[0], Result: ok})
		},
	}
}
