package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yuanying/fastepub/internal/content"
	"github.com/yuanying/fastepub/internal/library"
	"github.com/yuanying/fastepub/internal/reader"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <book.epub>",
		Short: "Show book metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			doc, err := content.Open(cmd.Context(), args[0], opts.Content)
			if err != nil {
				return fmt.Errorf("failed to open book: %w", err)
			}
			return printInfo(cmd.OutOrStdout(), doc.Info())
		},
	}
}

func printInfo(w io.Writer, info content.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Title", info.Title},
		{"Author", info.Author},
		{"Language", info.Language},
		{"Identifier", info.Identifier},
		{"EPUB version", info.Version},
		{"Chapters", fmt.Sprint(info.ChapterCount)},
		{"TOC entries", fmt.Sprint(info.TOCEntries)},
		{"Image keys", fmt.Sprint(info.Images)},
		{"Cover", info.CoverPath},
		{"Description", info.Description},
	}
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", r.label, r.value)
	}
	return tw.Flush()
}

func newTOCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toc <book.epub>",
		Short: "Print the table of contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			doc, err := content.Open(cmd.Context(), args[0], opts.Content)
			if err != nil {
				return fmt.Errorf("failed to open book: %w", err)
			}

			w := cmd.OutOrStdout()
			for _, e := range doc.TOC() {
				spine := "-"
				if i, ok := doc.Index.SpineIndex(e.PlayOrder); ok {
					spine = fmt.Sprint(i)
				}
				fmt.Fprintf(w, "%4d  %s%s  (spine %s)\n", e.PlayOrder, strings.Repeat("  ", e.Depth), e.Label, spine)
			}
			return nil
		},
	}
}

func newChapterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter <book.epub>",
		Short: "Render a chapter as HTML or Markdown",
		Long: `Render a chapter with every image inlined.

Without a position flag the chapter at the saved reading position is shown.
The position reached is saved as the book's reading progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "html" && format != "markdown" {
				return fmt.Errorf("invalid --format %q (want html|markdown)", format)
			}
			output, _ := cmd.Flags().GetString("output")

			store := library.Open(opts.StateDir, library.Options{Logger: opts.Logger})
			session := reader.NewSession(store, store, opts.Content)

			ch, err := session.Open(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to open book: %w", err)
			}

			flags := cmd.Flags()
			next, _ := flags.GetBool("next")
			prev, _ := flags.GetBool("prev")
			switch {
			case flags.Changed("play-order"):
				playOrder, _ := flags.GetInt("play-order")
				ch, err = session.Goto(playOrder)
			case flags.Changed("spine"):
				spine, _ := flags.GetInt("spine")
				ch, err = session.GotoSpine(spine)
			case next:
				ch, err = session.Next()
			case prev:
				ch, err = session.Prev()
			}
			if err != nil {
				return err
			}
			if ch.Status != content.StatusOK {
				opts.Logger.Warn("chapter not available", "status", ch.Status.String(), "play_order", ch.PlayOrder, "spine_index", ch.SpineIndex)
			}

			rendered := ch.Content
			if format == "markdown" {
				rendered, err = content.Markdown(ch.Content)
				if err != nil {
					return err
				}
			}

			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), rendered)
				return err
			}
			if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("failed to write chapter: %w", err)
			}
			opts.Logger.Info("wrote chapter", "path", output, "id", ch.ID, "spine_index", ch.SpineIndex)
			return nil
		},
	}

	cmd.Flags().Int("play-order", 0, "Table of contents play-order to show")
	cmd.Flags().Int("spine", 0, "Spine (reading order) index to show")
	cmd.Flags().Bool("next", false, "Advance to the next chapter")
	cmd.Flags().Bool("prev", false, "Go back to the previous chapter")
	cmd.MarkFlagsMutuallyExclusive("play-order", "spine", "next", "prev")
	cmd.Flags().String("format", "html", "Output format (html|markdown)")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <book.epub>",
		Short: "Extract the cover image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			if width < 0 {
				return fmt.Errorf("invalid --width %d (must be >= 0)", width)
			}
			if height < 0 {
				return fmt.Errorf("invalid --height %d (must be >= 0)", height)
			}

			doc, err := content.Open(cmd.Context(), args[0], opts.Content)
			if err != nil {
				return fmt.Errorf("failed to open book: %w", err)
			}
			data, mediaType, ok := doc.Cover()
			if !ok {
				return fmt.Errorf("%s has no cover image", args[0])
			}

			ext := extensionFor(mediaType)
			if width > 0 || height > 0 {
				data, err = content.Thumbnail(data, width, height, opts.Content.JPEGQuality)
				if err != nil {
					return fmt.Errorf("failed to create thumbnail: %w", err)
				}
				ext = "jpg"
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = defaultCoverPath(args[0], ext)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write cover: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: <book>-cover.<ext>)")
	cmd.Flags().Int("width", 0, "Fit the cover into this width (0 keeps the original)")
	cmd.Flags().Int("height", 0, "Fit the cover into this height (0 keeps the original)")
	return cmd
}

func defaultCoverPath(inputPath, ext string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "-cover." + ext
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/svg+xml":
		return "svg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List opened books, most recently read first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			store := library.Open(opts.StateDir, library.Options{Logger: opts.Logger})

			books := store.Library()
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "library is empty")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LAST READ\tCHAPTER\tTITLE\tAUTHOR\tPATH")
			for _, b := range books {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
					b.LastRead.Local().Format("2006-01-02 15:04"), b.ChapterIndex+1, b.Title, b.Author, b.Path)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <book.epub>",
		Short: "Remove a book and its progress from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			store := library.Open(opts.StateDir, library.Options{Logger: opts.Logger})
			return store.RemoveFromLibrary(absPath(args[0]))
		},
	})
	return cmd
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress [book.epub]",
		Short: "Show the saved reading position (default: the last opened book)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			store := library.Open(opts.StateDir, library.Options{Logger: opts.Logger})
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				path, position, err := store.LastBook()
				if errors.Is(err, library.ErrNoState) {
					fmt.Fprintln(w, "no reading progress saved")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\tchapter %d\n", path, position+1)
				return nil
			}

			path := absPath(args[0])
			position, ok := store.GetProgress(path)
			if !ok {
				fmt.Fprintf(w, "no reading progress saved for %s\n", path)
				return nil
			}
			fmt.Fprintf(w, "%s\tchapter %d\n", path, position+1)
			return nil
		},
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
