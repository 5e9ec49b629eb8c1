package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"go-acordeon/catalog"
	"go-acordeon/song"
)

var importOpts struct {
	id        string
	title     string
	channel   int
	transpose int
}

func init() {
	importCmd.Flags().StringVar(&importOpts.id, "id", "", "song id (default: file name)")
	importCmd.Flags().StringVar(&importOpts.title, "title", "", "song title")
	importCmd.Flags().IntVar(&importOpts.channel, "channel", -1, "only import this MIDI channel (0-15)")
	importCmd.Flags().IntVar(&importOpts.transpose, "transpose", 0, "semitones added before mapping to buttons")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file.mid>",
	Short: "Convert a Standard MIDI File into a song",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		id := importOpts.id
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		cat := catalog.Default()
		res, err := song.ImportSMF(f, cat, song.ImportOptions{
			ID:        id,
			Title:     importOpts.title,
			Channel:   importOpts.channel,
			Transpose: importOpts.transpose,
		})
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		store, err := song.DefaultStore(cat)
		if err != nil {
			return err
		}
		if err := store.Save(res.Song); err != nil {
			return err
		}

		fmt.Printf("saved %s: %d notes\n", res.Song.ID, len(res.Song.Notes))
		if len(res.Unmapped) > 0 {
			fmt.Printf("skipped pitches no button plays: %v (try --transpose)\n", res.Unmapped)
		}
		return nil
	},
}
