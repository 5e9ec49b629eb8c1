package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-acordeon/catalog"
	"go-acordeon/song"
)

func init() {
	rootCmd.AddCommand(songsCmd)
}

var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "List stored songs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := song.DefaultStore(catalog.Default())
		if err != nil {
			return err
		}
		infos, err := store.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Printf("no songs in %s\n", store.Dir)
			return nil
		}
		for _, info := range infos {
			marker := " "
			if info.ID == cfg.UI.LastSong {
				marker = "*"
			}
			fmt.Printf("%s %-24s %-32s %4d notes  (%s)\n", marker, info.ID, info.Title, info.Notes, info.Format)
		}
		return nil
	},
}
