package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tansive/sensorthings/internal/backend"
)

func newUpsertCmd() *cobra.Command {
	var (
		file   string
		method string
	)
	cmd := &cobra.Command{
		Use:   "upsert COLLECTION -f FILE [--method POST|PATCH|DELETE]",
		Short: "Create, update or delete items from a file",
		Long: `Apply the items in FILE to a collection, one request per item, stopping at the
first failure. FILE holds one or more YAML or JSON documents; each document is an
item, a list of items, or a SensorThings listing ({"value": [...]}). Use - to read
from stdin. PATCH and DELETE address items by their @iot.id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, perr := backend.ParseMethod(strings.ToUpper(strings.TrimSpace(method)))
			if perr != nil {
				return perr
			}
			items, err := LoadItems(file)
			if err != nil {
				return err
			}
			b, err := getBackend(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := b.UpsertCollectionItems(cmd.Context(), args[0], items, m)
			if err != nil {
				return err
			}
			return printResult(cmd, result{
				Operation:  fmt.Sprintf("upsert %s (%d items)", m, len(items)),
				Collection: args[0],
				Result:     ok,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Item file, or - for stdin")
	cmd.Flags().StringVarP(&method, "method", "m", string(backend.MethodPost), "POST, PATCH or DELETE")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-item COLLECTION ITEM_ID",
		Short: "Delete one item from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := getBackend(cmd.Context())
			if err != nil {
				return err
			}
			ok := b.DeleteCollectionItem(cmd.Context(), args[0], args[1])
			return printResult(cmd, result{
				Operation:  "delete-item",
				Collection: args[0],
				Item:       args[1],
				Result:     ok,
			})
		},
	}
}
