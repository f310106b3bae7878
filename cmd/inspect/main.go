// Command inspect prints the relay's saved documents or its live room stats
// as tables.
//
//	inspect -db ./data/documents
//	inspect -stats http://localhost:3001
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/docstore"
	"github.com/AmoghxAnubis/Agora/internal/server"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and prints the requested view, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dbPath := flags.String("db", "", "Path to the Badger document store")
	statsURL := flags.String("stats", "", "Base URL of a running relay")
	limit := flags.Int("limit", 0, "Maximum number of documents to list (0 = all)")
	preview := flags.Int("preview", 40, "Number of content characters to show")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	var err error
	switch {
	case *dbPath != "":
		err = printDocuments(stdout, *dbPath, *limit, *preview)
	case *statsURL != "":
		err = printStats(stdout, *statsURL)
	default:
		flags.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, color.Red.Sprintf("inspect: %v", err))
		return 1
	}
	return 0
}

func printDocuments(out io.Writer, path string, limit, preview int) error {
	db, err := docstore.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	docs, err := docstore.List(db, limit)
	if err != nil {
		return err
	}

	header(out, fmt.Sprintf("%d document(s) in %s", len(docs), path))
	table := newTable(out, "Room", "Language", "Updated", "Size", "Content")
	for _, doc := range docs {
		table.Append([]string{
			doc.RoomID,
			doc.Language,
			doc.UpdatedAt.Format(time.RFC3339),
			strconv.Itoa(len(doc.Content)),
			truncate(doc.Content, preview),
		})
	}
	table.Render()
	return nil
}

func printStats(out io.Writer, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(baseURL, "/") + "/api/stats")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats server.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}

	summary := fmt.Sprintf("%d connection(s), %d room(s)", stats.Connections, len(stats.Rooms))
	if stats.Process != nil {
		summary += fmt.Sprintf(", pid %d, rss %.1f MiB, cpu %.1f%%",
			stats.Process.PID, float64(stats.Process.RSSBytes)/(1<<20), stats.Process.CPUPercent)
	}
	header(out, summary)

	table := newTable(out, "Room", "Members")
	for _, r := range stats.Rooms {
		table.Append([]string{string(r.ID), strconv.Itoa(r.Members)})
	}
	table.Render()
	return nil
}

func header(out io.Writer, text string) {
	fmt.Fprintln(out, color.New(color.BgBlack, color.FgGreen).Render("  ====== "+text+" ======"))
}

func newTable(out io.Writer, columns ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func truncate(content string, n int) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if n <= 0 || len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "…"
}
