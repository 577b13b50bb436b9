package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"pagebuilder/config"
	"pagebuilder/internal/markup"
	"pagebuilder/internal/pagedata"

	"github.com/spf13/cobra"
)

var (
	inPath    string
	outPath   string
	pretty    bool
	pageTitle string
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Short:   "Render a page document (JSON) to standalone HTML",
	Example: `  pagebuilder render --in page.json --out page.html
  cat page.json | pagebuilder render --pretty`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}
		doc, err := pagedata.Decode(data, time.Now())
		if err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		doc, problems := pagedata.NewOps().Normalize(doc)
		for _, p := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", p.Error())
		}
		out, err := markup.Render(doc, markup.Options{Title: pageTitle, Pretty: pretty})
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Convert HTML markup to a page document (JSON)",
	Long:  `Reads HTML produced by "render" and restores its page document, or
converts plain markup section by section.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}
		doc, err := markup.Parse(bytes.NewReader(data))
		if err != nil {
			return err
		}
		var out []byte
		if pretty {
			out, err = json.MarshalIndent(doc, "", "  ")
		} else {
			out, err = json.Marshal(doc)
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd, append(out, '\n'))
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the section and element templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg.TemplatesFile)
		if err != nil {
			return err
		}
		sections, elements := cat.Names()
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Sections:")
		for _, n := range sections {
			fmt.Fprintf(w, "  %s\n", n)
		}
		fmt.Fprintln(w, "Elements:")
		for _, n := range elements {
			fmt.Fprintf(w, "  %s\n", n)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{renderCmd, importCmd} {
		c.Flags().StringVar(&inPath, "in", "", "input file (default stdin)")
		c.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
		c.Flags().BoolVar(&pretty, "pretty", false, "indent the output")
	}
	renderCmd.Flags().StringVar(&pageTitle, "title", "", "page title")
}

func readInput(cmd *cobra.Command) ([]byte, error) {
	if inPath == "" || inPath == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(inPath)
}

func writeOutput(cmd *cobra.Command, out []byte) error {
	if outPath == "" || outPath == "-" {
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}
