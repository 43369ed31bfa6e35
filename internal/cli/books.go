package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/entities"
	"github.com/mrlokans/readinglog/internal/entrypoint"
)

func newBooksCommand(ctx *commandContext) *cobra.Command {
	booksCmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the library",
	}
	booksCmd.AddCommand(newBooksListCommand(ctx))
	booksCmd.AddCommand(newBooksAddCommand(ctx))
	return booksCmd
}

func newBooksListCommand(ctx *commandContext) *cobra.Command {
	var opts books.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(false, func(app *entrypoint.App) error {
				list, err := app.Books.ListAll(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), booksTable(list))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Genre, "genre", "", "Only list books of this genre")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Match name or author")
	return cmd
}

func booksTable(list []entities.Book) string {
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		total := "?"
		if b.HasPageCount() {
			total = strconv.Itoa(*b.TotalPages)
		}
		done := ""
		if b.IsComplete {
			done = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(b.ID), 10),
			b.Name,
			b.Author,
			b.Genre,
			fmt.Sprintf("%d/%s", b.PagesRead, total),
			done,
		})
	}
	return renderTable("",
		[]string{"ID", "Name", "Author", "Genre", "Pages", "Finished"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newBooksAddCommand(ctx *commandContext) *cobra.Command {
	var fields books.BookFields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(false, func(app *entrypoint.App) error {
				book, err := app.Books.Create(cmd.Context(), fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added book %d: %s by %s (%s)\n", book.ID, book.Name, book.Author, book.Genre)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fields.Name, "name", "", "Book title")
	cmd.Flags().StringVar(&fields.Author, "author", "", "Author")
	cmd.Flags().StringVar(&fields.Genre, "genre", "", "Genre")
	cmd.Flags().StringVar(&fields.ContentRef, "content", "", "Reference to the document")
	cmd.Flags().StringVar(&fields.CoverRef, "cover", "", "Reference to the cover image")
	cmd.Flags().Int64Var(&fields.SizeBytes, "size", 0, "Document size in bytes")
	return cmd
}
