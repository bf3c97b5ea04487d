package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/finswitch/finswitch/config"
	"github.com/finswitch/finswitch/core/registry"
	"github.com/finswitch/finswitch/domain/field"
	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect channel schemas",
	Long: `Inspect the channel schemas the switch would load.

Examples:
  finswitch channels list
  finswitch channels show ATM_FISC_V1`,
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all channels",
	RunE:  runChannelsList,
}

var channelsShowCmd = &cobra.Command{
	Use:   "show <channel-id>",
	Short: "Show a channel's field layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsShow,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsShowCmd)
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	reg, err := registry.Load(cfg.Schemas.Path)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	return reg, nil
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	if reg.Len() == 0 {
		fmt.Println("No channels found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tVENDOR\tVERSION\tFIELDS\tACTIVE")
	fmt.Fprintln(w, "--\t----\t----\t------\t-------\t------\t------")

	for _, id := range reg.IDs() {
		resolved, ok := reg.Get(id)
		if !ok {
			continue
		}
		ch := resolved.Channel
		active := "no"
		if ch.Active {
			active = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			ch.ID, ch.Name, ch.Type, ch.Vendor, ch.Version, len(resolved.Tree.ByID), active)
	}
	return w.Flush()
}

func runChannelsShow(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	resolved, ok := reg.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown channel: %s", args[0])
	}

	ch := resolved.Channel
	fmt.Printf("Channel: %s (%s)\n", ch.ID, ch.Name)
	fmt.Printf("  Type: %s  Vendor: %s  Version: %s  Active: %v\n\n",
		ch.Type, ch.Vendor, ch.Version, ch.Active)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tNAME\tFORMAT\tENCODING\tTYPE\tLEN\tREQ")
	fmt.Fprintln(w, "-----\t----\t------\t--------\t----\t---\t---")

	ids := make([]int, 0, len(resolved.Tree.ByID))
	for id := range resolved.Tree.ByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		node := resolved.Tree.ByID[id]
		printFieldRow(w, node, id)
	}
	return w.Flush()
}

func printFieldRow(w *tabwriter.Writer, node *field.Node, id int) {
	def := node.Def
	length := fmt.Sprintf("%d", def.Length)
	if def.Format == field.FormatLLVar || def.Format == field.FormatLLLVar {
		length = fmt.Sprintf("..%d", def.MaxLength)
	}
	required := ""
	if def.Required {
		required = "yes"
	}
	indent := ""
	if node.Parent != nil {
		indent = "  "
	}
	fmt.Fprintf(w, "%s%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
		indent, id, def.Name, def.Format, def.Encoding, def.Type, length, required)
}
