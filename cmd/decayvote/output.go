package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"
)

func printOutcome(w io.Writer, o outcome, report bool) error {
	if report {
		table, err := renderTally(o)
		if err != nil {
			return fmt.Errorf("render tally: %w", err)
		}
		if _, err := fmt.Fprintln(w, table); err != nil {
			return err
		}
	}

	var line string
	if o.decision.Reached {
		line = pterm.Success.Sprintfln("Consensus: %s", o.decision.Value)
	} else {
		line = pterm.Warning.Sprintln("No consensus reached")
	}
	_, err := fmt.Fprint(w, line)
	return err
}

func renderTally(o outcome) (string, error) {
	data := pterm.TableData{{"Value", "Votes", "Weight", "Share"}}
	for _, v := range o.tally.Values {
		data = append(data, []string{
			v.Value,
			strconv.Itoa(v.Votes),
			strconv.FormatFloat(v.Weight, 'f', 4, 64),
			strconv.FormatFloat(v.Share*100, 'f', 1, 64) + "%",
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	summary := pterm.Sprintf("threshold %.1f%% of total weight %.4f, %d votes (%d dropped)",
		o.tally.Threshold*100, o.tally.Total, o.tally.VoteCount, o.dropped)
	return table + "\n" + summary, nil
}
