package main

import (
	"fmt"
	"text/tabwriter"
)

// queryCatalog prints the listings matching the query as a table.
func (cli *commandLine) queryCatalog(name, location, sort string, limit int) error {
	res, err := cli.catalog.Search(name, location, sort)
	if err != nil {
		return err
	}

	rows := res.Tuitions
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tRATING")
	for _, t := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\n", t.ID, t.Name, t.Location, t.Rating)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d of %d tuitions\n", len(rows), res.Total)
	return nil
}
