// Package render formats search results, log groups and store contents.
package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/model"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/store"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/util"
)

// Format selects how log records are printed.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Records writes records in the given format. When proj is non-nil each
// message is replaced by its projection and records with an empty
// projection are dropped.
func Records(w io.Writer, records []model.LogRecord, format Format, proj *util.Projector) error {
	if proj != nil {
		projected := make([]model.LogRecord, 0, len(records))
		for _, r := range records {
			v, ok, err := proj.Apply(r.Message)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			r.Message = v
			projected = append(projected, r)
		}
		records = projected
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}

	bw := bufio.NewWriter(w)
	for _, r := range records {
		ts := r.Timestamp.UTC().Format(time.RFC3339)
		fmt.Fprintf(bw, "%s %s/%s %s\n", ts, r.LogGroup, r.LogStream, r.Message)
	}
	return bw.Flush()
}

// Groups prints log groups as a table. now anchors the relative ages.
func Groups(w io.Writer, groups []model.LogGroup, now time.Time) {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		retention := "never expire"
		if g.RetentionInDays > 0 {
			retention = strconv.Itoa(int(g.RetentionInDays)) + "d"
		}
		created := "-"
		if g.CreationTime.UnixMilli() > 0 {
			created = humanize.RelTime(g.CreationTime, now, "ago", "from now")
		}
		rows = append(rows, []string{
			g.Name,
			humanize.Bytes(uint64(max(g.StoredBytes, 0))),
			retention,
			created,
		})
	}
	fmt.Fprintln(w, renderTable(groupColumns, rows, groupsCaption(len(groups))))
}

var (
	groupColumns    = []column{{header: "Log Group"}, {header: "Stored", numeric: true}, {header: "Retention", numeric: true}, {header: "Created"}}
	favoriteColumns = []column{{header: "Keyword"}, {header: "Log Group"}}
	recentColumns   = []column{{header: "#", numeric: true}, {header: "Pattern"}}
)

func groupsCaption(n int) string {
	if n == 1 {
		return "1 log group"
	}
	return strconv.Itoa(n) + " log groups"
}

// Favorites prints keyword to log group mappings.
func Favorites(w io.Writer, favs []store.Favorite) {
	if len(favs) == 0 {
		fmt.Fprintln(w, "No favorites saved. Add one with: cwtail favorite <keyword> <logGroupName>")
		return
	}
	rows := make([][]string, 0, len(favs))
	for _, f := range favs {
		rows = append(rows, []string{f.Keyword, f.LogGroup})
	}
	fmt.Fprintln(w, renderTable(favoriteColumns, rows, ""))
}

// Recent prints recent filter patterns, most recent first.
func Recent(w io.Writer, patterns []string) {
	if len(patterns) == 0 {
		fmt.Fprintln(w, "No recent searches.")
		return
	}
	rows := make([][]string, 0, len(patterns))
	for i, p := range patterns {
		rows = append(rows, []string{strconv.Itoa(i + 1), p})
	}
	fmt.Fprintln(w, renderTable(recentColumns, rows, ""))
}
