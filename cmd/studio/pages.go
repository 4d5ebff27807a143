package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"studio/internal/store"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Inspect and move page data",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			pages, err := st.ListPages()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tUPDATED")
			for _, pg := range pages {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					pg.ID, pg.Name, pg.Template, pg.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var pagesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one page as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			pg, err := st.GetPage(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(pg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var pagesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a page document (pages, groups, components)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withStore(func(st *store.Store) error {
			if err := st.ImportDocument(data, cfg.Storage.ValidateOnImport); err != nil {
				return err
			}
			fmt.Println("imported", args[0])
			return nil
		})
	},
}

var pagesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the full page document (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			data, err := st.ExportDocument()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return os.WriteFile(args[0], data, 0o644)
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

// withStore opens the configured store for one command and closes it
// after.
func withStore(fn func(*store.Store) error) error {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func init() {
	pagesCmd.AddCommand(pagesListCmd)
	pagesCmd.AddCommand(pagesShowCmd)
	pagesCmd.AddCommand(pagesImportCmd)
	pagesCmd.AddCommand(pagesExportCmd)
}
